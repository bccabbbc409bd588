package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

func matchesFilter(row Row, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(row.Raw, filter)
}

func project(fields map[string]interface{}, names []string) map[string]interface{} {
	if len(names) == 0 {
		out := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			out[k] = v
		}
		return out
	}
	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		if v, ok := fields[name]; ok {
			out[name] = v
		}
	}
	return out
}

func stringForm(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// filterRows applies a substring filter across a session's rows, preserving
// file order.
func filterRows(rows []Row, filter string) []Row {
	if filter == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if matchesFilter(r, filter) {
			out = append(out, r)
		}
	}
	return out
}

// sortByField orders rows ascending by the string form of a single field,
// the way search's `sort` option compares values.
func sortByField(rows []Row, field string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return stringForm(rows[i].Fields[field]) < stringForm(rows[j].Fields[field])
	})
}

// sortByTimestamp orders rows ascending by their numeric `timestamp` field,
// the ordering timeline always applies.
func sortByTimestamp(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, _ := toFloat(rows[i].Fields["timestamp"])
		tj, _ := toFloat(rows[j].Fields["timestamp"])
		return ti < tj
	})
}

func limitRows(rows []Row, limit int) []Row {
	if limit <= 0 || limit >= len(rows) {
		return rows
	}
	return rows[:limit]
}

func projectedRows(rows []Row, fields []string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		out[i] = project(r.Fields, fields)
	}
	return out
}
