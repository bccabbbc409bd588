// Package interceptor implements the Runtime Interceptor (§4.2) for hosts
// where Go's static dispatch stands in for the original design's dynamic
// module loading. Go has no mutable class prototypes and no observable
// require()/import hook, so this translates the contract to the nearest
// idiomatic Go shape: wrapping exported function values directly, and
// wrapping the exported function-typed fields of a struct (the common Go
// pattern for a pluggable "hooks" or "handlers" record) in place of
// wrapping a prototype's methods. See DESIGN.md for the full rationale.
package interceptor

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"flowtrace/pkg/agent"
	"flowtrace/internal/policy"
	flowtraceerrors "flowtrace/pkg/errors"
)

// reservedFieldNames mirrors §4.2's "constructor, toString, and the host's
// equality/hash/dispose canon" exclusion, translated to Go's nearest
// equivalents: the method names satisfying common stdlib interfaces that
// a wrapper must never shadow.
var reservedFieldNames = map[string]bool{
	"String": true, "Error": true, "Close": true, "Equal": true,
}

// Interceptor wraps exported callables after they are constructed,
// without touching their source. It installs once per process.
type Interceptor struct {
	mu        sync.Mutex
	installed bool
	policy    *policy.SelectionPolicy
	wrapped   map[uintptr]reflect.Value
	logger    *logrus.Logger
}

// New builds an Interceptor bound to a Selection Policy.
func New(p *policy.SelectionPolicy, logger *logrus.Logger) *Interceptor {
	return &Interceptor{
		policy:  p,
		wrapped: make(map[uintptr]reflect.Value),
		logger:  logger,
	}
}

// Install activates the interceptor. A second call returns an
// InstrumentationError and leaves the first installation untouched,
// matching §4.2's "refuses second install".
func (in *Interceptor) Install() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.installed {
		return flowtraceerrors.Instrumentation("interceptor", "Install", "interceptor already installed")
	}
	in.installed = true
	return nil
}

// WrapFunc wraps a single exported function value, returning a new
// function value of the same type that forwards all arguments, observes
// the return, and emits ENTER/EXIT or EXCEPTION. EXIT is emitted as soon
// as the call returns; a returned future is not waited on. Re-wrapping a function already wrapped by this
// Interceptor returns the cached wrapper instead of nesting wrappers,
// guaranteeing idempotence.
func (in *Interceptor) WrapFunc(class, method string, fn interface{}) (interface{}, error) {
	if !in.isInstalled() {
		return fn, flowtraceerrors.Instrumentation("interceptor", "WrapFunc", "interceptor not installed")
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return fn, flowtraceerrors.Instrumentation("interceptor", "WrapFunc", "value is not a non-nil function").
			WithMetadata("class", class).WithMetadata("method", method)
	}

	if in.policy != nil && !in.policy.Evaluate(class+"."+method) {
		return fn, nil
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	ptr := rv.Pointer()
	if cached, ok := in.wrapped[ptr]; ok {
		return cached.Interface(), nil
	}

	wrapped := in.buildWrapper(class, method, rv)
	in.wrapped[ptr] = wrapped
	return wrapped.Interface(), nil
}

func (in *Interceptor) isInstalled() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.installed
}

// buildWrapper emits EXIT synchronously against target's actual return;
// a futureLike return is not detected or EXIT-chained in this translation,
// since Go calls block until the callee returns.
func (in *Interceptor) buildWrapper(class, method string, target reflect.Value) reflect.Value {
	t := target.Type()
	return reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		callArgs := make([]agent.Arg, 0, len(args))
		for i, a := range args {
			callArgs = append(callArgs, agent.Arg{Name: paramName(t, i), Value: safeInterface(a)})
		}

		ctx := agent.Enter(class, method, callArgs)

		defer func() {
			if r := recover(); r != nil {
				ctx.Exception(panicType(r), panicMessage(r), nil)
				panic(r)
			}
		}()

		out := target.Call(args)
		ctx.Exit(resultArgs(t, out))
		return out
	})
}

// paramName synthesizes a stable per-position name; Go function types
// carry no parameter names at the reflect.Type level.
func paramName(t reflect.Type, i int) string {
	if t.IsVariadic() && i == t.NumIn()-1 {
		return "variadic"
	}
	return fmt.Sprintf("arg%d", i)
}

func resultArgs(t reflect.Type, out []reflect.Value) []agent.Arg {
	results := make([]agent.Arg, len(out))
	for i, v := range out {
		name := "result"
		if t.NumOut() > 1 {
			name = resultName(i)
		}
		results[i] = agent.Arg{Name: name, Value: safeInterface(v)}
	}
	return results
}

func resultName(i int) string {
	return fmt.Sprintf("result%d", i)
}

func safeInterface(v reflect.Value) interface{} {
	if !v.IsValid() || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return nil
	}
	return v.Interface()
}

func panicType(r interface{}) string {
	if err, ok := r.(error); ok {
		return reflect.TypeOf(err).String()
	}
	return reflect.TypeOf(r).String()
}

func panicMessage(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return reflect.ValueOf(r).String()
}
