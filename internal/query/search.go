package query

import (
	"regexp"
	"time"

	"flowtrace/internal/metrics"
)

// Search filters by substring, optionally projects fields, sorts by a
// single field, and bounds the result count. Row order is file order
// unless Sort is supplied.
func (m *Manager) Search(sessionID string, opts SearchOptions) ([]map[string]interface{}, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("search", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	rows := filterRows(s.rows, opts.Filter)
	if opts.Sort != "" {
		rows = append([]Row(nil), rows...)
		sortByField(rows, opts.Sort)
	}
	rows = limitRows(rows, opts.Limit)
	return projectedRows(rows, opts.Fields), nil
}

// Timeline is Search with the result always ordered by ascending timestamp.
func (m *Manager) Timeline(sessionID string, opts SearchOptions) ([]map[string]interface{}, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("timeline", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	rows := filterRows(s.rows, opts.Filter)
	rows = append([]Row(nil), rows...)
	sortByTimestamp(rows)
	rows = limitRows(rows, opts.Limit)
	return projectedRows(rows, opts.Fields), nil
}

// Sample returns the head of matches up to limit, in file order.
func (m *Manager) Sample(sessionID string, opts SearchOptions) ([]map[string]interface{}, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("sample", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	rows := filterRows(s.rows, opts.Filter)
	rows = limitRows(rows, opts.Limit)
	return projectedRows(rows, nil), nil
}

var errorKeywordPattern = regexp.MustCompile(`(?i)(error|exception|fail|500|nok)`)

const errorsResultCap = 500

// Errors filters rows whose result field matches the error-keyword
// pattern, capped at 500 rows.
func (m *Manager) Errors(sessionID string, opts SearchOptions) ([]map[string]interface{}, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("errors", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	base := filterRows(s.rows, opts.Filter)
	matched := make([]Row, 0, len(base))
	for _, r := range base {
		result, _ := r.Fields["result"].(string)
		if result != "" && errorKeywordPattern.MatchString(result) {
			matched = append(matched, r)
			if len(matched) >= errorsResultCap {
				break
			}
		}
	}
	return projectedRows(matched, nil), nil
}

// SearchExpanded is Search, except every returned row carrying
// segmentation metadata is augmented with an `_expandedData` field holding
// the parsed sidecar content when autoExpand is set. Expansion failures
// are swallowed per-row; the row is returned unexpanded.
func (m *Manager) SearchExpanded(sessionID string, opts SearchExpandedOptions) ([]map[string]interface{}, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("searchExpanded", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	rows := filterRows(s.rows, opts.Filter)
	rows = limitRows(rows, opts.Limit)
	out := projectedRows(rows, opts.Fields)

	if opts.AutoExpand {
		for i, row := range rows {
			fullLogFile, _ := row.Fields["fullLogFile"].(string)
			if fullLogFile == "" {
				continue
			}
			full, err := s.readSidecar(fullLogFile)
			if err != nil {
				continue
			}
			out[i]["_expandedData"] = full
		}
	}
	return out, nil
}
