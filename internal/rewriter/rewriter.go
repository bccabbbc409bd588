// Package rewriter implements the AST Rewriter (§4.1): given a Go source
// file, it wraps every function the Selection Policy accepts with a
// prologue that opens a Call Context and a pair of deferred epilogues
// that emit EXIT (or EXCEPTION, on panic) before the function actually
// returns.
package rewriter

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/imports"

	"flowtrace/internal/metrics"
	"flowtrace/internal/policy"
	flowtraceerrors "flowtrace/pkg/errors"
)

// Rewriter transforms one source file at a time against a resolved
// Selection Policy.
type Rewriter struct {
	policy *policy.SelectionPolicy
	logger *logrus.Logger
}

// New builds a Rewriter bound to a Selection Policy.
func New(p *policy.SelectionPolicy, logger *logrus.Logger) *Rewriter {
	return &Rewriter{policy: p, logger: logger}
}

// FunctionResult reports what happened to one function declaration
// encountered during a file transform.
type FunctionResult struct {
	Unit         string
	Transformed  bool
	SkipReason   string
	TransformErr *flowtraceerrors.AppError
}

// TransformFile parses src, rewrites every accepted function declaration
// in place, reconciles imports, and returns the formatted result. Per
// §4.1's failure semantics, a file-level parse or format failure leaves
// the file untouched and returns a TransformError; a single function's
// rewrite failure degrades to skipping that function and is recorded in
// the returned FunctionResult slice rather than aborting the file.
func (r *Rewriter) TransformFile(filename string, src []byte) ([]byte, []FunctionResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		metrics.RecordRewriteFailure("file", "parse_error")
		return src, nil, flowtraceerrors.Transform("rewriter", "parse", "failed to parse source file").
			Wrap(err).WithMetadata("file", filename)
	}

	if r.policy != nil && !r.policy.EvaluateFile(filename, src, policy.FileOptions{SkipGeneratedFiles: true, SkipTestFiles: true}) {
		return src, nil, nil
	}

	pkgName := file.Name.Name
	var results []FunctionResult
	anyTransformed := false

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		unit := unitName(pkgName, fn)

		if reason := skipReason(fn); reason != "" {
			results = append(results, FunctionResult{Unit: unit, SkipReason: reason})
			continue
		}
		if r.policy != nil && !r.policy.Evaluate(unit) {
			results = append(results, FunctionResult{Unit: unit, SkipReason: "policy_excluded"})
			continue
		}

		if err := r.transformFunc(fn); err != nil {
			metrics.RecordRewriteFailure("function", "transform_error")
			results = append(results, FunctionResult{Unit: unit, TransformErr: err})
			continue
		}
		results = append(results, FunctionResult{Unit: unit, Transformed: true})
		anyTransformed = true
	}

	if !anyTransformed {
		return src, results, nil
	}

	astutil.AddNamedImport(fset, file, agentPkgIdent, "flowtrace/pkg/agent")
	astutil.AddImport(fset, file, fmtPkgIdent)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		metrics.RecordRewriteFailure("file", "format_error")
		return src, results, flowtraceerrors.Transform("rewriter", "format", "failed to render transformed source").
			Wrap(err).WithMetadata("file", filename)
	}

	cleaned, err := imports.Process(filename, buf.Bytes(), nil)
	if err != nil {
		// Import reconciliation is a normalization pass, not a
		// correctness requirement: fall back to the formatted-but-
		// unreconciled source rather than discarding a successful rewrite.
		r.logger.WithError(err).WithField("file", filename).Warn("import reconciliation failed, using unreconciled output")
		return buf.Bytes(), results, nil
	}
	return cleaned, results, nil
}

// transformFunc applies the per-function transform from §4.1: name every
// return, insert the prologue, and rewrite return statements.
func (r *Rewriter) transformFunc(decl *ast.FuncDecl) *flowtraceerrors.AppError {
	if decl.Body == nil {
		return flowtraceerrors.Transform("rewriter", "transformFunc", "function has no body")
	}

	taken := collectIdentifiers(decl)
	taken[ctxIdent] = true
	taken[recoverIdent] = true
	names, _ := namedResults(decl, taken)

	rewriteReturns(decl.Body, names)

	className := receiverTypeName(decl)
	prologue := []ast.Stmt{
		enterStmt(decl, className),
		exitDeferStmt(names),
		exceptionDeferStmt(),
	}
	decl.Body.List = append(prologue, decl.Body.List...)

	return nil
}
