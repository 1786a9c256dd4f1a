package analysis

import (
	"fmt"
	"go/ast"

	"github.com/broady/bridge/bridgegen/ir"
	"github.com/broady/bridge/internal/directive"
)

// buildMethod converts an exported method declaration into a method
// definition. Methods whose signature cannot travel over the wire are
// reported and skipped.
func (p *packagePass) buildMethod(def *ir.APIDefinition, m *methodDecl) (*ir.MethodDefinition, bool) {
	fn := m.fn
	method := &ir.MethodDefinition{
		Name:   fn.Name.Name,
		Doc:    directive.Text(fn.Doc),
		Source: p.source(fn.Pos()),
	}
	skip := func(format string, args ...any) (*ir.MethodDefinition, bool) {
		p.warn(ir.Warning{
			Code:     "unsupported_method",
			Message:  fmt.Sprintf("%s.%s: ", def.Name, method.Name) + fmt.Sprintf(format, args...),
			Source:   &method.Source,
			TypeName: def.Name,
		})
		return nil, false
	}

	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return skip("methods with type parameters are not supported")
	}

	params := flattenFields(fn.Type.Params)
	if len(params) > 0 && isContext(params[0].typ, m.imports) {
		method.IsAsync = true
		params = params[1:]
	}
	for _, param := range params {
		switch param.typ.(type) {
		case *ast.ChanType, *ast.FuncType:
			return skip("parameter %s of type %s cannot be encoded", param.name, typeString(param.typ))
		}
		if isContext(param.typ, m.imports) {
			return skip("context.Context must be the first parameter")
		}
		method.Parameters = append(method.Parameters, ir.Parameter{
			Name:     param.name,
			TypeName: typeString(param.typ),
		})
	}

	results := flattenFields(fn.Type.Results)
	if n := len(results); n > 0 && isError(results[n-1].typ) {
		method.MayThrow = true
		results = results[:n-1]
	}
	switch len(results) {
	case 0:
		method.ReturnType = ir.VoidReturn()
	case 1:
		switch t := results[0].typ.(type) {
		case *ast.ChanType, *ast.FuncType:
			return skip("result of type %s cannot be encoded", typeString(t))
		case *ast.StructType:
			if t.Fields == nil || len(t.Fields.List) == 0 {
				method.ReturnType = ir.VoidReturn()
				return method, true
			}
		}
		method.ReturnType = ir.CodableReturn(typeString(results[0].typ))
	default:
		return skip("only (T), (T, error), (error) or no results are supported")
	}
	return method, true
}

type field struct {
	name string
	typ  ast.Expr
}

// flattenFields expands grouped names into one entry per name.
func flattenFields(list *ast.FieldList) []field {
	if list == nil {
		return nil
	}
	var out []field
	for _, f := range list.List {
		if len(f.Names) == 0 {
			out = append(out, field{typ: f.Type})
			continue
		}
		for _, name := range f.Names {
			out = append(out, field{name: name.Name, typ: f.Type})
		}
	}
	return out
}

func isContext(expr ast.Expr, imports []ir.Import) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Context" {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	name, ok := importName(imports, "context")
	return ok && pkg.Name == name
}

func isError(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == "error"
}
