// Package pipeline implements the Trace Event Pipeline (§4.4): building
// per-call contexts, serializing arguments/results/exceptions, measuring
// duration, and writing ENTER/EXIT/EXCEPTION records to the main log with
// bounded per-record size via size-triggered segmentation.
package pipeline

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"flowtrace/pkg/types"
)

// Pipeline is the process-wide entry point the generated prologue/epilogue
// calls: one Pipeline per agent install, shared by every instrumented call.
type Pipeline struct {
	writer     *writer
	serializer *Serializer
	enabled    bool
	logger     *logrus.Logger
}

// New builds a Pipeline from a resolved configuration. When cfg.Enabled is
// false, Enter still returns a valid CallContext but every emission is a
// no-op — callers never need to branch on whether tracing is turned on.
func New(cfg types.Config, logger *logrus.Logger) (*Pipeline, error) {
	w, err := newWriter(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		writer:     w,
		serializer: NewSerializer(cfg.MaxArgLength),
		enabled:    cfg.Enabled,
		logger:     logger,
	}, nil
}

// Noop builds a Pipeline with tracing disabled and no backing writer. It
// is the safe default pkg/agent falls back to before a real Pipeline
// has been installed, so generated prologues never need to nil-check.
func Noop() *Pipeline {
	return &Pipeline{serializer: NewSerializer(0), enabled: false}
}

// Close flushes and releases the underlying log file handle.
func (p *Pipeline) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.close()
}

// Enter opens a Call Context for one invocation: it records the start
// time and synchronously emits the ENTER event (§4.4's `enter` operation).
func (p *Pipeline) Enter(class, method string, args []Arg) *CallContext {
	now := time.Now()
	ctx := &CallContext{
		pipeline:  p,
		class:     class,
		method:    method,
		thread:    threadIdentity(),
		startWall: now.UnixMilli(),
		startMono: now,
		argsJSON:  p.serializer.SerializeArgs(args),
	}

	if p.enabled {
		p.writer.write(&types.TraceEvent{
			Timestamp: ctx.startWall,
			Event:     types.EventEnter,
			Thread:    ctx.thread,
			Class:     ctx.class,
			Method:    ctx.method,
			Args:      ctx.argsJSON,
		})
	}
	return ctx
}

// CallContext is the ephemeral, per-invocation record described in §3: it
// owns the start timestamp and the emitted ENTER event, and is destroyed
// (logically — closed) by the first call to Exit or Exception. Per the
// state machine in §4.4, any further operation after closing is ignored.
type CallContext struct {
	pipeline  *Pipeline
	class     string
	method    string
	thread    string
	startWall int64
	startMono time.Time
	argsJSON  string

	mu     sync.Mutex
	closed bool
}

// Exit computes duration and emits an EXIT event carrying the named return
// values. A call with no return values carries no `result`; a single return is carried as a bare serialized value; two or
// more named returns are carried as a map keyed by return name, matching
// the wire-stable example in §6 (a single-return call's `result` is the
// value itself, not a `{"result_0": ...}` wrapper).
func (c *CallContext) Exit(results []Arg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if !c.pipeline.enabled {
		return
	}

	micros := time.Since(c.startMono).Microseconds()
	millis := micros / 1000

	var result string
	if len(results) > 0 {
		result = c.pipeline.serializer.SerializeResult(resultValue(results))
	}

	c.pipeline.writer.write(&types.TraceEvent{
		Timestamp:      c.startWall,
		Event:          types.EventExit,
		Thread:         c.thread,
		Class:          c.class,
		Method:         c.method,
		Args:           c.argsJSON,
		Result:         result,
		DurationMicros: &micros,
		DurationMillis: &millis,
	})
}

// Exception emits an EXCEPTION event in place of EXIT, carrying the
// stringified cause. Per the invariant that at most one exception is
// attached per call, a second Exit or Exception call after this one is a
// no-op (the CLOSED state in §4.4's state machine).
func (c *CallContext) Exception(excType, message string, stackTrace []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if !c.pipeline.enabled {
		return
	}

	micros := time.Since(c.startMono).Microseconds()
	millis := micros / 1000

	c.pipeline.writer.write(&types.TraceEvent{
		Timestamp:      c.startWall,
		Event:          types.EventException,
		Thread:         c.thread,
		Class:          c.class,
		Method:         c.method,
		Args:           c.argsJSON,
		Exception:      &types.ExceptionInfo{Type: excType, Message: message, StackTrace: boundStack(stackTrace, 3)},
		DurationMicros: &micros,
		DurationMillis: &millis,
	})
}

func resultValue(results []Arg) interface{} {
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0].Value
	default:
		m := make(map[string]interface{}, len(results))
		for _, r := range results {
			m[r.Name] = r.Value
		}
		return m
	}
}

// boundStack caps a stack trace to the configured number of frames, 3 by default.
func boundStack(frames []string, max int) []string {
	if len(frames) <= max {
		return frames
	}
	return frames[:max]
}
