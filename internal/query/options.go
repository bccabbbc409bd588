package query

// SearchOptions configures search, timeline, sample, and errors: a
// substring filter over each row's raw JSON text, an optional field
// projection (search and timeline only), a result limit (not used by
// errors, which has its own fixed cap), and (search only) a single sort
// field.
type SearchOptions struct {
	Filter string
	Fields []string
	Limit  int
	Sort   string
}

// AggregateOptions configures aggregate: the fields to group rows by, the
// metric to compute, the numeric field the metric reads, and an optional
// pre-filter.
type AggregateOptions struct {
	GroupBy []string
	Metric  string
	Field   string
	Filter  string
}

// AggregateRow is one {key, value} pair of an aggregate result.
type AggregateRow struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// TopKOptions configures topK: which field's values to count and how many
// of the most frequent to return.
type TopKOptions struct {
	ByField string
	K       int
	Filter  string
}

// TopKRow is one {value, count} pair of a topK result.
type TopKRow struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FlowOptions configures flow: the correlation keys to group events by.
type FlowOptions struct {
	Keys   []string
	Filter string
}

// FlowRow is one correlation-key group's summary.
type FlowRow struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	First int64  `json:"first"`
	Last  int64  `json:"last"`
}

// ExportOptions configures export: a pre-filter, field projection, and
// output format ("csv" or "json").
type ExportOptions struct {
	Filter string
	Fields []string
	To     string
}

// ExpandOptions configures expand: the timestamp identifying the target
// event, optionally disambiguated by event kind when two events share it.
type ExpandOptions struct {
	Timestamp int64
	Event     string
}

// ExpandResult is the response to expand: the record as it appears
// (possibly truncated) in the main log, the full record recovered from the
// sidecar, which fields were truncated, and a human-readable message.
type ExpandResult struct {
	TruncatedLog    map[string]interface{} `json:"truncatedLog"`
	FullLog         map[string]interface{} `json:"fullLog,omitempty"`
	TruncatedFields map[string]interface{} `json:"truncatedFields,omitempty"`
	Message         string                 `json:"message,omitempty"`
}

// SearchExpandedOptions is SearchOptions plus the auto-expand flag.
type SearchExpandedOptions struct {
	Filter     string
	Fields     []string
	Limit      int
	AutoExpand bool
}
