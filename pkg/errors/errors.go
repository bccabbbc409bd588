// Package errors implements FlowTrace's error taxonomy.
//
// Every error the agent raises is one of the six kinds from the design's
// propagation policy: ConfigurationError and TransformError are fatal or
// degrade-to-skip at build/instrumentation time; InstrumentationError and
// EmissionError degrade silently so the traced program is never disturbed;
// QueryError is surfaced to the query caller instead of swallowed, since
// the query surface prefers explicit propagation over a silently wrong
// answer. ParseError names a malformed log line; query.Open skips and
// counts such lines rather than raising them.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// Kind identifies which of the taxonomy's six error categories an AppError belongs to.
type Kind string

const (
	// KindConfiguration marks an invalid option combination, fatal at startup.
	KindConfiguration Kind = "CONFIGURATION"
	// KindTransform marks a function or file the AST rewriter could not safely rewrite.
	KindTransform Kind = "TRANSFORM"
	// KindInstrumentation marks a module the runtime interceptor could not wrap.
	KindInstrumentation Kind = "INSTRUMENTATION"
	// KindEmission marks an I/O failure writing an event to the log or a segment file.
	KindEmission Kind = "EMISSION"
	// KindQuery marks an invalid session id, missing field, or unresolvable sidecar path.
	KindQuery Kind = "QUERY"
	// KindParse marks a malformed line encountered while opening a main log.
	KindParse Kind = "PARSE"
)

// Severity levels for an AppError.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// AppError is the standardized error type raised by every FlowTrace component.
type AppError struct {
	Kind       Kind                   `json:"kind"`
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Message    string                 `json:"message"`
	Cause      error                  `json:"cause,omitempty"`
	Site       string                 `json:"site,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Severity   Severity               `json:"severity"`
}

// New creates an AppError of the given kind, recording the caller's source
// location the way the teacher's error package records a stack trace.
func New(kind Kind, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	return &AppError{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Site:      fmt.Sprintf("%s:%d", file, line),
		Metadata:  make(map[string]interface{}),
		Timestamp: time.Now(),
		Severity:  defaultSeverity(kind),
	}
}

func defaultSeverity(kind Kind) Severity {
	switch kind {
	case KindConfiguration:
		return SeverityCritical
	case KindEmission, KindInstrumentation, KindTransform:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As callers.
func (e *AppError) Unwrap() error { return e.Cause }

// Wrap attaches a cause and returns the same error for chaining.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a key/value pair used for structured logging.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithSeverity overrides the kind's default severity.
func (e *AppError) WithSeverity(severity Severity) *AppError {
	e.Severity = severity
	return e
}

// Degrades reports whether this error's kind follows the instrumentation
// surface's degrade-rather-than-propagate policy (§7).
func (e *AppError) Degrades() bool {
	switch e.Kind {
	case KindTransform, KindInstrumentation, KindEmission:
		return true
	default:
		return false
	}
}

// Fields renders the error as logrus.Fields-compatible map for structured logging.
func (e *AppError) Fields() map[string]interface{} {
	out := map[string]interface{}{
		"error_kind":      string(e.Kind),
		"error_component": e.Component,
		"error_operation": e.Operation,
		"error_severity":  string(e.Severity),
		"error_site":      e.Site,
	}
	if e.Cause != nil {
		out["error_cause"] = e.Cause.Error()
	}
	for k, v := range e.Metadata {
		out["error_meta_"+k] = v
	}
	return out
}

// Convenience constructors, one per taxonomy entry.

func Configuration(component, operation, message string) *AppError {
	return New(KindConfiguration, component, operation, message)
}

func Transform(component, operation, message string) *AppError {
	return New(KindTransform, component, operation, message)
}

func Instrumentation(component, operation, message string) *AppError {
	return New(KindInstrumentation, component, operation, message)
}

func Emission(component, operation, message string) *AppError {
	return New(KindEmission, component, operation, message)
}

func Query(component, operation, message string) *AppError {
	return New(KindQuery, component, operation, message)
}

func Parse(component, operation, message string) *AppError {
	return New(KindParse, component, operation, message)
}

// NotFound is the specific QueryError flavor session.Open and session.Expand
// raise when a path or record cannot be located.
func NotFound(component, operation, message string) *AppError {
	return New(KindQuery, component, operation, message).WithMetadata("not_found", true)
}

// IsNotFound reports whether err is a QueryError raised via NotFound.
func IsNotFound(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	v, ok := appErr.Metadata["not_found"]
	return ok && v == true
}

// AsAppError extracts an *AppError from err if it is one.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}
