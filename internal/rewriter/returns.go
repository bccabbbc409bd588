package rewriter

import (
	"go/ast"
	"go/token"
)

// rewriteReturns splits every `return <expressions>` reachable from body
// without crossing into a nested function literal into an assignment to
// the named results followed by a bare return, recursing into every kind
// of nested block the language allows.
func rewriteReturns(body *ast.BlockStmt, names []string) {
	body.List = expandStmtList(body.List, names)
}

func expandStmtList(list []ast.Stmt, names []string) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(list))
	for _, stmt := range list {
		out = append(out, expandStmt(stmt, names)...)
	}
	return out
}

func expandStmt(stmt ast.Stmt, names []string) []ast.Stmt {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		if len(s.Results) == 0 || len(names) == 0 {
			return []ast.Stmt{s}
		}
		assign := &ast.AssignStmt{
			Lhs: identExprs(names),
			Tok: token.ASSIGN,
			Rhs: s.Results,
		}
		return []ast.Stmt{assign, &ast.ReturnStmt{}}

	case *ast.BlockStmt:
		s.List = expandStmtList(s.List, names)
		return []ast.Stmt{s}

	case *ast.IfStmt:
		if s.Body != nil {
			s.Body.List = expandStmtList(s.Body.List, names)
		}
		if s.Else != nil {
			s.Else = expandSingle(s.Else, names)
		}
		return []ast.Stmt{s}

	case *ast.ForStmt:
		if s.Body != nil {
			s.Body.List = expandStmtList(s.Body.List, names)
		}
		return []ast.Stmt{s}

	case *ast.RangeStmt:
		if s.Body != nil {
			s.Body.List = expandStmtList(s.Body.List, names)
		}
		return []ast.Stmt{s}

	case *ast.SwitchStmt:
		expandCaseClauses(s.Body, names)
		return []ast.Stmt{s}

	case *ast.TypeSwitchStmt:
		expandCaseClauses(s.Body, names)
		return []ast.Stmt{s}

	case *ast.SelectStmt:
		for _, clauseStmt := range s.Body.List {
			if clause, ok := clauseStmt.(*ast.CommClause); ok {
				clause.Body = expandStmtList(clause.Body, names)
			}
		}
		return []ast.Stmt{s}

	case *ast.LabeledStmt:
		expanded := expandStmt(s.Stmt, names)
		s.Stmt = expanded[0]
		if len(expanded) == 1 {
			return []ast.Stmt{s}
		}
		return append([]ast.Stmt{s}, expanded[1:]...)

	default:
		// Every other statement kind (assignments, expression statements,
		// declarations, go/defer, send) cannot themselves contain a
		// top-level return and are left untouched. A *ast.FuncLit can only
		// appear inside one of these as a sub-expression, so it is never
		// visited by this walk — returns inside it belong to the literal,
		// not the enclosing function.
		return []ast.Stmt{s}
	}
}

func expandCaseClauses(body *ast.BlockStmt, names []string) {
	if body == nil {
		return
	}
	for _, stmt := range body.List {
		if clause, ok := stmt.(*ast.CaseClause); ok {
			clause.Body = expandStmtList(clause.Body, names)
		}
	}
}

func expandSingle(stmt ast.Stmt, names []string) ast.Stmt {
	expanded := expandStmt(stmt, names)
	if len(expanded) == 1 {
		return expanded[0]
	}
	return &ast.BlockStmt{List: expanded}
}

func identExprs(names []string) []ast.Expr {
	out := make([]ast.Expr, len(names))
	for i, n := range names {
		out[i] = ast.NewIdent(n)
	}
	return out
}
