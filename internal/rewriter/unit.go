package rewriter

import (
	"go/ast"
	"strings"
)

// unitName builds the dotted identifier the Selection Policy evaluates a
// function declaration against: "<package>.<Receiver>.<Func>" for a
// method, "<package>.<Func>" for a free function.
func unitName(pkgName string, decl *ast.FuncDecl) string {
	recv := receiverTypeName(decl)
	if recv == "" {
		return pkgName + "." + decl.Name.Name
	}
	return pkgName + "." + recv + "." + decl.Name.Name
}

func receiverTypeName(decl *ast.FuncDecl) string {
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		return ""
	}
	expr := decl.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

// skipReason reports why decl should never be instrumented, independent
// of the Selection Policy: no body, a test-harness entry point (a free
// function named Test*, Benchmark*, Example* or Fuzz*), or the package
// init function. Generated files are skipped earlier, by the file-level
// policy pass in TransformFile.
func skipReason(decl *ast.FuncDecl) string {
	if decl.Body == nil {
		return "no_body"
	}
	if decl.Name.Name == "init" {
		return "init_func"
	}
	if decl.Recv == nil && isTestHarnessName(decl.Name.Name) {
		return "test_harness"
	}
	return ""
}

func isTestHarnessName(name string) bool {
	for _, prefix := range []string{"Test", "Benchmark", "Example", "Fuzz"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
