// Package types defines FlowTrace's wire and configuration data model.
//
// This package provides:
//   - TraceEvent: the ENTER/EXIT/EXCEPTION record written to the main log
//   - ExceptionInfo and TruncatedField: the structured sub-objects a record carries
//   - Config: the fully-resolved configuration surface consumed by the
//     Selection Policy and Trace Event Pipeline at startup
//
// Nothing in this package performs I/O; it is pure data shared by the
// rewriter, interceptor, pipeline, and query packages.
package types

// EventKind enumerates the three record kinds a call can produce.
type EventKind string

const (
	EventEnter     EventKind = "ENTER"
	EventExit      EventKind = "EXIT"
	EventException EventKind = "EXCEPTION"
)

// ExceptionInfo carries the cause of an EXCEPTION event in place of a result.
type ExceptionInfo struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	StackTrace []string `json:"stackTrace,omitempty"`
}

// TruncatedField marks one field of a TraceEvent that was segmented out to a
// sidecar file because its serialized length exceeded the configured threshold.
type TruncatedField struct {
	OriginalLength int `json:"originalLength"`
	Threshold      int `json:"threshold"`
}

// TraceEvent is the wire representation of one line in the main log: a
// single JSON object per §6. Field presence follows §3's table — most
// fields are emitted with `omitempty` so that, e.g., an ENTER record never
// carries a `result` key.
type TraceEvent struct {
	Timestamp       int64                     `json:"timestamp"`
	Event           EventKind                 `json:"event"`
	Thread          string                    `json:"thread"`
	Class           string                    `json:"class"`
	Method          string                    `json:"method"`
	Args            string                    `json:"args,omitempty"`
	Result          string                    `json:"result,omitempty"`
	Exception       *ExceptionInfo            `json:"exception,omitempty"`
	DurationMicros  *int64                    `json:"durationMicros,omitempty"`
	DurationMillis  *int64                    `json:"durationMillis,omitempty"`
	TruncatedFields map[string]TruncatedField `json:"truncatedFields,omitempty"`
	FullLogFile     string                    `json:"fullLogFile,omitempty"`
}

// IsSegmented reports whether this event was written to the main log with
// one or more fields replaced by a sidecar reference.
func (e *TraceEvent) IsSegmented() bool {
	return len(e.TruncatedFields) > 0 && e.FullLogFile != ""
}

// SelectionPolicyConfig is the raw, unevaluated form of a Selection Policy:
// glob include/exclude lists plus the builtin-exclude prefixes that are
// always applied first. It is resolved into a policy.SelectionPolicy by the
// internal/policy package.
type SelectionPolicyConfig struct {
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Builtin []string `json:"builtin,omitempty" yaml:"builtin,omitempty"`
}

// Config is the fully-resolved configuration surface from §6, assembled by
// internal/config from .flowtrace/config.json, environment overrides, and
// an optional policy file.
type Config struct {
	// PackagePrefix seeds the Selection Policy's include list with a single prefix.
	PackagePrefix string `json:"packagePrefix,omitempty"`
	// LogFile is the path of the main log file. Default "flowtrace.jsonl".
	LogFile string `json:"logfile"`
	// Stdout duplicates every emitted line to process standard output.
	Stdout bool `json:"stdout"`
	// MaxArgLength caps the serialized length of a single argument; 0 disables.
	MaxArgLength int `json:"maxArgLength"`
	// TruncateThreshold is the line-field size above which segmentation triggers.
	TruncateThreshold int `json:"truncateThreshold"`
	// SegmentDirectory is the relative path for sidecar files.
	SegmentDirectory string `json:"segmentDirectory"`
	// EnableSegmentation disables the segmentation pass entirely when false.
	EnableSegmentation bool `json:"enableSegmentation"`
	// Enabled is the master on/off switch for the whole agent.
	Enabled bool `json:"enabled"`
	// Policy is the Selection Policy's raw pattern lists.
	Policy SelectionPolicyConfig `json:"policy,omitempty"`
	// PolicyFile, if set, names a YAML sidecar contributing additional
	// include/exclude patterns on top of Policy and PackagePrefix.
	PolicyFile string `json:"policyFile,omitempty"`
}

// DefaultConfig returns the configuration defaults from §6's table.
func DefaultConfig() Config {
	return Config{
		LogFile:            "flowtrace.jsonl",
		Stdout:             false,
		MaxArgLength:       0,
		TruncateThreshold:  1000,
		SegmentDirectory:   "flowtrace-jsonsl",
		EnableSegmentation: true,
		Enabled:            true,
	}
}
