package rewriter

import (
	"fmt"
	"go/ast"
)

const returnNamePrefix = "__ft_ret"

// namedResults returns, for every result field of decl, the name that
// field will carry after synthesis: its existing name if already named,
// or a fresh collision-free "__ft_retN" otherwise. It also reports
// whether any synthesis was needed, since an already-fully-named
// declaration requires no Type.Results mutation.
func namedResults(decl *ast.FuncDecl, taken map[string]bool) (names []string, synthesized bool) {
	if decl.Type.Results == nil {
		return nil, false
	}

	n := 0
	for _, field := range decl.Type.Results.List {
		count := len(field.Names)
		if count == 0 {
			count = 1
		}
		n += count
	}
	names = make([]string, 0, n)

	idx := 0
	for _, field := range decl.Type.Results.List {
		if len(field.Names) == 0 {
			name := freshName(taken, idx)
			field.Names = []*ast.Ident{ast.NewIdent(name)}
			names = append(names, name)
			taken[name] = true
			synthesized = true
			idx++
			continue
		}
		for _, id := range field.Names {
			if id.Name == "_" {
				name := freshName(taken, idx)
				id.Name = name
				synthesized = true
				taken[name] = true
				names = append(names, name)
			} else {
				names = append(names, id.Name)
				taken[id.Name] = true
			}
			idx++
		}
	}
	return names, synthesized
}

func freshName(taken map[string]bool, idx int) string {
	for {
		candidate := fmt.Sprintf("%s%d", returnNamePrefix, idx)
		if !taken[candidate] {
			return candidate
		}
		idx++
	}
}

// collectIdentifiers gathers every identifier name bound anywhere in decl,
// used to seed the collision table namedResults consults.
func collectIdentifiers(decl *ast.FuncDecl) map[string]bool {
	taken := make(map[string]bool)
	ast.Inspect(decl, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			taken[id.Name] = true
		}
		return true
	})
	return taken
}
