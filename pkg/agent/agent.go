// Package agent is the process-wide hook surface generated prologues and
// the runtime interceptor both call into. It lives under pkg, not
// internal, because rewritten source is compiled as part of whatever
// target module the rewriter ran against, not this one; an internal
// package could not be imported from there. Neither rewritten source
// nor wrapped exports need to know how the active Pipeline was
// configured: they reference this package's package-level singleton,
// installed once at startup by internal/app.
package agent

import (
	"sync"

	"flowtrace/internal/pipeline"
)

// Arg aliases pipeline.Arg so generated code can write agent.Arg{...}
// without importing internal/pipeline directly.
type Arg = pipeline.Arg

var (
	mu       sync.RWMutex
	active   *pipeline.Pipeline
	fallback = pipeline.Noop()
)

// Install sets the process-wide Pipeline every Enter call forwards to.
// Called once by internal/app during startup; safe to call again in
// tests that need a fresh Pipeline per case.
func Install(p *pipeline.Pipeline) {
	mu.Lock()
	defer mu.Unlock()
	active = p
}

// Current returns the installed Pipeline, or a disabled no-op Pipeline if
// none has been installed yet.
func Current() *pipeline.Pipeline {
	mu.RLock()
	defer mu.RUnlock()
	if active == nil {
		return fallback
	}
	return active
}

// Enter opens a Call Context on the active Pipeline. This is the call a
// rewritten function's prologue makes.
func Enter(class, method string, args []Arg) *pipeline.CallContext {
	return Current().Enter(class, method, args)
}
