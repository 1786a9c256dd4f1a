package analysis

import (
	"fmt"
	"go/ast"
	"strconv"

	"github.com/broady/bridge/bridgegen/ir"
	"github.com/broady/bridge/internal/directive"
)

// gormImportPath is the package whose Model marks a struct as an ORM model.
const gormImportPath = "gorm.io/gorm"

// buildTemplate extracts the stored wire properties of a client struct.
func (v *fileVisitor) buildTemplate(ts *ast.TypeSpec, doc *ast.CommentGroup) (*ir.ClientStructTemplate, bool) {
	src := v.pkg.source(ts.Pos())
	tmpl := &ir.ClientStructTemplate{
		Name:    ts.Name.Name,
		Doc:     directive.Text(doc),
		Package: v.file.ast.Name.Name,
		Source:  src,
	}

	st, ok := ts.Type.(*ast.StructType)
	if !ok {
		v.pkg.warn(ir.Warning{
			Code:     "not_a_struct",
			Message:  fmt.Sprintf("client struct %s is not a struct type; mark it bridge: copyToClient instead", tmpl.Name),
			Source:   &src,
			TypeName: tmpl.Name,
		})
		return nil, false
	}

	for _, f := range st.Fields.List {
		tag := ""
		if f.Tag != nil {
			if unquoted, err := strconv.Unquote(f.Tag.Value); err == nil {
				tag = unquoted
			}
		}
		if jsonName, _ := ir.LookupTag(tag, "json"); jsonName == "-" {
			continue
		}

		if len(f.Names) == 0 {
			if v.isModelBase(f.Type) {
				tmpl.IsModel = true
				continue
			}
			if name := embeddedName(f.Type); name != "" && ast.IsExported(name) {
				kind := v.propertyKind(tmpl.Name, f, tag)
				if kind != ir.PropertyPlain && kind != ir.PropertyHidden {
					fieldSrc := v.pkg.source(f.Pos())
					v.pkg.warn(ir.Warning{
						Code:     "embedded_relationship",
						Message:  fmt.Sprintf("%s: embedded %s cannot be a %s relationship; treated as plain", tmpl.Name, name, kind),
						Source:   &fieldSrc,
						TypeName: tmpl.Name,
					})
					kind = ir.PropertyPlain
				}
				tmpl.Properties = append(tmpl.Properties, ir.InstanceProperty{
					TypeName: typeString(f.Type),
					Tag:      tag,
					Doc:      f.Doc.Text(),
					Kind:     kind,
				})
			}
			continue
		}

		kind := v.propertyKind(tmpl.Name, f, tag)
		for _, name := range f.Names {
			if !name.IsExported() {
				continue
			}
			tmpl.Properties = append(tmpl.Properties, ir.InstanceProperty{
				Name:     name.Name,
				TypeName: typeString(f.Type),
				Tag:      tag,
				Doc:      f.Doc.Text(),
				Kind:     kind,
			})
		}
	}
	return tmpl, true
}

// propertyKind classifies a field by its bridge tag, warning about
// unrecognized options.
func (v *fileVisitor) propertyKind(typeName string, f *ast.Field, tag string) ir.PropertyKind {
	bridgeTag, _ := ir.LookupTag(tag, "bridge")
	kind, unknown := ir.ParsePropertyKind(bridgeTag)
	for _, opt := range unknown {
		fieldSrc := v.pkg.source(f.Pos())
		v.pkg.warn(ir.Warning{
			Code:     "unknown_tag_option",
			Message:  fmt.Sprintf("%s: unknown bridge tag option %q", typeName, opt),
			Source:   &fieldSrc,
			TypeName: typeName,
		})
	}
	return kind
}

// isModelBase reports whether an embedded field is gorm.Model.
func (v *fileVisitor) isModelBase(expr ast.Expr) bool {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Model" {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	name, ok := importName(v.imports, gormImportPath)
	return ok && pkg.Name == name
}

// embeddedName returns the field name an embedded type declares.
func embeddedName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if sel, ok := expr.(*ast.SelectorExpr); ok {
		return sel.Sel.Name
	}
	return receiverBase(expr)
}
