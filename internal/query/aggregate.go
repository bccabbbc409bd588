package query

import (
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"flowtrace/internal/metrics"
)

// aggBucket accumulates one group-by key's running totals. Buckets are
// keyed by the xxhash of the pipe-joined key rather than by the string
// itself; each bucket still carries the original key for output.
type aggBucket struct {
	key      string
	count    int
	numSum   float64
	numCount int
	numMax   float64
	numMin   float64
	sawNum   bool
}

func groupKey(fields map[string]interface{}, groupBy []string) string {
	parts := make([]string, len(groupBy))
	for i, f := range groupBy {
		parts[i] = stringForm(fields[f])
	}
	return strings.Join(parts, "|")
}

// Aggregate groups rows by the pipe-joined string forms of groupBy fields
// and computes one metric (count, sum, avg, max, min) over a numeric
// field. Rows whose field value is not numeric are excluded from
// numeric metrics but still counted for "count".
func (m *Manager) Aggregate(sessionID string, opts AggregateOptions) ([]AggregateRow, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("aggregate", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	buckets := make(map[uint64]*aggBucket)
	for _, row := range filterRows(s.rows, opts.Filter) {
		key := groupKey(row.Fields, opts.GroupBy)
		h := xxhash.Sum64String(key)
		b, ok := buckets[h]
		if !ok {
			b = &aggBucket{key: key}
			buckets[h] = b
		}
		b.count++

		if opts.Metric == "count" {
			continue
		}
		v, ok := toFloat(row.Fields[opts.Field])
		if !ok {
			continue
		}
		if !b.sawNum {
			b.numMax, b.numMin = v, v
			b.sawNum = true
		} else {
			if v > b.numMax {
				b.numMax = v
			}
			if v < b.numMin {
				b.numMin = v
			}
		}
		b.numSum += v
		b.numCount++
	}

	out := make([]AggregateRow, 0, len(buckets))
	for _, b := range buckets {
		var value float64
		switch opts.Metric {
		case "sum":
			value = b.numSum
		case "avg":
			if b.numCount > 0 {
				value = b.numSum / float64(b.numCount)
			}
		case "max":
			value = b.numMax
		case "min":
			value = b.numMin
		default:
			value = float64(b.count)
		}
		out = append(out, AggregateRow{Key: b.key, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// TopK counts the frequency of a single field's values and returns the k
// most frequent, descending.
func (m *Manager) TopK(sessionID string, opts TopKOptions) ([]TopKRow, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("topK", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, row := range filterRows(s.rows, opts.Filter) {
		v := stringForm(row.Fields[opts.ByField])
		counts[v]++
	}

	out := make([]TopKRow, 0, len(counts))
	for v, c := range counts {
		out = append(out, TopKRow{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if opts.K > 0 && opts.K < len(out) {
		out = out[:opts.K]
	}
	return out, nil
}

// Flow groups events by the pipe-joined tuple of correlation keys,
// reporting each group's count and first/last timestamps. A key whose
// every component is empty is excluded — it cannot identify a flow.
func (m *Manager) Flow(sessionID string, opts FlowOptions) ([]FlowRow, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("flow", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	type flowBucket struct {
		key   string
		count int
		first int64
		last  int64
	}
	buckets := make(map[uint64]*flowBucket)

	for _, row := range filterRows(s.rows, opts.Filter) {
		allEmpty := true
		for _, k := range opts.Keys {
			if stringForm(row.Fields[k]) != "" {
				allEmpty = false
				break
			}
		}
		if allEmpty {
			continue
		}

		key := groupKey(row.Fields, opts.Keys)
		h := xxhash.Sum64String(key)
		ts, _ := toFloat(row.Fields["timestamp"])
		tsInt := int64(ts)

		b, ok := buckets[h]
		if !ok {
			buckets[h] = &flowBucket{key: key, count: 1, first: tsInt, last: tsInt}
			continue
		}
		b.count++
		if tsInt < b.first {
			b.first = tsInt
		}
		if tsInt > b.last {
			b.last = tsInt
		}
	}

	out := make([]FlowRow, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, FlowRow{Key: b.key, Count: b.count, First: b.first, Last: b.last})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
