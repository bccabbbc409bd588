// Package policy implements the Selection Policy (§4.3): the decision of
// which unit — package, class, or file — the Instrumentation Engine
// accepts for wrapping.
//
// Evaluation order is fixed and documented in spec.md:
//  1. any builtin exclusion matches -> reject
//  2. any user exclusion matches -> reject
//  3. include is empty -> accept
//  4. any include pattern matches -> accept, else reject
package policy

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	flowtraceerrors "flowtrace/pkg/errors"
	"flowtrace/pkg/types"
)

// SelectionPolicy is a compiled, ready-to-evaluate Selection Policy.
type SelectionPolicy struct {
	include []compiledPattern
	exclude []compiledPattern
	builtin []string

	rawInclude []string
	rawExclude []string
	rawBuiltin []string

	logger *logrus.Logger
}

type compiledPattern struct {
	raw string
	g   glob.Glob
}

// New compiles a SelectionPolicyConfig into an evaluable SelectionPolicy.
// An invalid glob pattern is a ConfigurationError, since a malformed policy
// is a startup-fatal misconfiguration, not a per-unit degradation.
func New(cfg types.SelectionPolicyConfig, packagePrefix string, logger *logrus.Logger) (*SelectionPolicy, error) {
	include := append([]string{}, cfg.Include...)
	if packagePrefix != "" {
		include = append(include, packagePrefix+"**")
	}

	builtin := cfg.Builtin
	if len(builtin) == 0 {
		builtin = DefaultBuiltinExcludes()
	}

	sp := &SelectionPolicy{
		rawInclude: include,
		rawExclude: cfg.Exclude,
		rawBuiltin: builtin,
		builtin:    builtin,
		logger:     logger,
	}

	var err error
	if sp.include, err = compilePatterns(include); err != nil {
		return nil, flowtraceerrors.Configuration("policy", "New", "invalid include pattern").Wrap(err)
	}
	if sp.exclude, err = compilePatterns(cfg.Exclude); err != nil {
		return nil, flowtraceerrors.Configuration("policy", "New", "invalid exclude pattern").Wrap(err)
	}
	return sp, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.', '/')
		if err != nil {
			return nil, err
		}
		out = append(out, compiledPattern{raw: p, g: g})
	}
	return out, nil
}

// Evaluate decides whether the given unit (a package/module path, optionally
// dotted with a class name, e.g. "myapp/billing.Invoice") is instrumented.
func (sp *SelectionPolicy) Evaluate(unit string) bool {
	for _, prefix := range sp.builtin {
		if matchesBuiltin(unit, prefix) {
			return false
		}
	}
	for _, p := range sp.exclude {
		if p.g.Match(unit) {
			return false
		}
	}
	if len(sp.include) == 0 {
		return true
	}
	for _, p := range sp.include {
		if p.g.Match(unit) {
			return true
		}
	}
	return false
}

// matchesBuiltin treats a builtin entry of exactly "Test" as the spec's
// "generic 'Test' substring match for test-harness classes"; everything
// else is a prefix match against the unit's dotted/slashed path.
func matchesBuiltin(unit, entry string) bool {
	if entry == "Test" {
		return strings.Contains(unit, "Test")
	}
	return strings.HasPrefix(unit, entry)
}

// FileOptions governs the independent file-level pass the AST rewriter uses
// to skip generated and test files (§4.3).
type FileOptions struct {
	SkipGeneratedFiles bool
	SkipTestFiles      bool
}

// EvaluateFile applies the file-level pass: generated files (identified by
// a "// Code generated ... DO NOT EDIT." marker) and "_test.go" files are
// skipped independently of the unit-level Evaluate result.
func (sp *SelectionPolicy) EvaluateFile(path string, source []byte, opts FileOptions) bool {
	if opts.SkipTestFiles && strings.HasSuffix(path, "_test.go") {
		return false
	}
	if opts.SkipGeneratedFiles && isGenerated(source) {
		return false
	}
	return true
}

func isGenerated(source []byte) bool {
	const marker = "Code generated"
	const suffix = "DO NOT EDIT"
	text := string(source)
	if len(text) > 4096 {
		text = text[:4096]
	}
	return strings.Contains(text, marker) && strings.Contains(text, suffix)
}

// IncludePatterns returns the raw include patterns, for diagnostics.
func (sp *SelectionPolicy) IncludePatterns() []string { return sp.rawInclude }

// ExcludePatterns returns the raw exclude patterns, for diagnostics.
func (sp *SelectionPolicy) ExcludePatterns() []string { return sp.rawExclude }

// BuiltinExcludes returns the builtin exclude prefixes in effect.
func (sp *SelectionPolicy) BuiltinExcludes() []string { return sp.rawBuiltin }
