package rewriter

import (
	"go/ast"
	"go/token"
)

const (
	ctxIdent      = "__ft_ctx"
	agentPkgIdent = "ftagent"
	fmtPkgIdent   = "fmt"
	recoverIdent  = "__ft_recovered"
)

// captureArgs builds the ordered []ftagent.Arg{...} expression the
// prologue passes to Enter: one entry per named parameter in declaration
// order, plus a leading "receiver" entry for methods with a named
// receiver. Unnamed parameters and unnamed receivers cannot be
// referenced by an expression and are skipped.
func captureArgs(decl *ast.FuncDecl) *ast.CompositeLit {
	var elems []ast.Expr

	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		recvField := decl.Recv.List[0]
		if len(recvField.Names) > 0 && recvField.Names[0].Name != "_" {
			elems = append(elems, argLiteral("receiver", recvField.Names[0].Name))
		}
	}

	if decl.Type.Params != nil {
		for _, field := range decl.Type.Params.List {
			for _, name := range field.Names {
				if name.Name == "_" {
					continue
				}
				elems = append(elems, argLiteral(name.Name, name.Name))
			}
		}
	}

	return &ast.CompositeLit{
		Type: &ast.ArrayType{Elt: qualifiedIdent(agentPkgIdent, "Arg")},
		Elts: elems,
	}
}

func argLiteral(name, valueIdent string) *ast.CompositeLit {
	return &ast.CompositeLit{
		Type: qualifiedIdent(agentPkgIdent, "Arg"),
		Elts: []ast.Expr{
			&ast.KeyValueExpr{Key: ast.NewIdent("Name"), Value: stringLit(name)},
			&ast.KeyValueExpr{Key: ast.NewIdent("Value"), Value: ast.NewIdent(valueIdent)},
		},
	}
}

// enterStmt builds: __ft_ctx := ftagent.Enter("<class>", "<method>", []ftagent.Arg{...})
func enterStmt(decl *ast.FuncDecl, class string) ast.Stmt {
	return &ast.AssignStmt{
		Lhs: []ast.Expr{ast.NewIdent(ctxIdent)},
		Tok: token.DEFINE,
		Rhs: []ast.Expr{
			&ast.CallExpr{
				Fun: qualifiedIdent(agentPkgIdent, "Enter"),
				Args: []ast.Expr{
					stringLit(class),
					stringLit(decl.Name.Name),
					captureArgs(decl),
				},
			},
		},
	}
}

// exitDeferStmt builds:
//
//	defer func() {
//	    __ft_ctx.Exit([]ftagent.Arg{{Name: "<name>", Value: <name>}, ...})
//	}()
//
// as a func-literal defer so the named return values are read at the time
// the deferred call actually runs, after the return statement assigns them.
func exitDeferStmt(names []string) ast.Stmt {
	elems := make([]ast.Expr, len(names))
	for i, n := range names {
		elems[i] = argLiteral(n, n)
	}
	exitCall := &ast.ExprStmt{X: &ast.CallExpr{
		Fun: &ast.SelectorExpr{X: ast.NewIdent(ctxIdent), Sel: ast.NewIdent("Exit")},
		Args: []ast.Expr{&ast.CompositeLit{
			Type: &ast.ArrayType{Elt: qualifiedIdent(agentPkgIdent, "Arg")},
			Elts: elems,
		}},
	}}
	return deferFuncLit(exitCall)
}

// exceptionDeferStmt builds the panic catcher:
//
//	defer func() {
//	    if __ft_recovered := recover(); __ft_recovered != nil {
//	        __ft_ctx.Exception(fmt.Sprintf("%T", __ft_recovered), fmt.Sprint(__ft_recovered), nil)
//	        panic(__ft_recovered)
//	    }
//	}()
func exceptionDeferStmt() ast.Stmt {
	recoverCall := &ast.CallExpr{Fun: ast.NewIdent("recover")}
	cond := &ast.BinaryExpr{
		X:  ast.NewIdent(recoverIdent),
		Op: token.NEQ,
		Y:  ast.NewIdent("nil"),
	}
	exceptionCall := &ast.ExprStmt{X: &ast.CallExpr{
		Fun: &ast.SelectorExpr{X: ast.NewIdent(ctxIdent), Sel: ast.NewIdent("Exception")},
		Args: []ast.Expr{
			&ast.CallExpr{Fun: qualifiedIdent(fmtPkgIdent, "Sprintf"), Args: []ast.Expr{stringLit("%T"), ast.NewIdent(recoverIdent)}},
			&ast.CallExpr{Fun: qualifiedIdent(fmtPkgIdent, "Sprint"), Args: []ast.Expr{ast.NewIdent(recoverIdent)}},
			ast.NewIdent("nil"),
		},
	}}
	rePanic := &ast.ExprStmt{X: &ast.CallExpr{Fun: ast.NewIdent("panic"), Args: []ast.Expr{ast.NewIdent(recoverIdent)}}}

	ifStmt := &ast.IfStmt{
		Init: &ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent(recoverIdent)},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{recoverCall},
		},
		Cond: cond,
		Body: &ast.BlockStmt{List: []ast.Stmt{exceptionCall, rePanic}},
	}
	return deferFuncLit(ifStmt)
}

func deferFuncLit(body ...ast.Stmt) ast.Stmt {
	return &ast.DeferStmt{
		Call: &ast.CallExpr{
			Fun: &ast.FuncLit{
				Type: &ast.FuncType{Params: &ast.FieldList{}},
				Body: &ast.BlockStmt{List: body},
			},
		},
	}
}

func qualifiedIdent(pkg, name string) *ast.SelectorExpr {
	return &ast.SelectorExpr{X: ast.NewIdent(pkg), Sel: ast.NewIdent(name)}
}

func stringLit(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: quote(s)}
}

func quote(s string) string {
	quoted := make([]byte, 0, len(s)+2)
	quoted = append(quoted, '"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			quoted = append(quoted, '\\', byte(r))
		default:
			quoted = append(quoted, string(r)...)
		}
	}
	quoted = append(quoted, '"')
	return string(quoted)
}
