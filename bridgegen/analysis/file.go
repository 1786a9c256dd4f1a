package analysis

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/broady/bridge/bridgegen/ir"
	"github.com/broady/bridge/internal/directive"
)

type parsedFile struct {
	path      string
	src       []byte
	ast       *ast.File
	tokenFile *token.File
}

// text returns the normalized source text between two positions.
func (f *parsedFile) text(start, end token.Pos) string {
	s := string(f.src[f.tokenFile.Offset(start):f.tokenFile.Offset(end)])
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// fileVisitor visits the declarations of one file.
type fileVisitor struct {
	pkg     *packagePass
	file    *parsedFile
	imports []ir.Import

	// contributed is set once the file declares an API definition or a
	// client struct template, and its imports become potentially used.
	contributed bool
}

func (v *fileVisitor) visit() error {
	for _, spec := range v.file.ast.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := ir.Import{Path: path}
		if spec.Name != nil {
			imp.Name = spec.Name.Name
		}
		v.imports = append(v.imports, imp)
	}

	if err := v.checkLocalTypes(); err != nil {
		return err
	}

	for _, decl := range v.file.ast.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			v.visitGenDecl(decl)
		case *ast.FuncDecl:
			v.visitFuncDecl(decl)
		}
	}

	if v.contributed {
		v.pkg.info.AddImports(v.imports...)
	}
	return nil
}

// checkLocalTypes rejects marked types declared inside function bodies.
// Generated code lives at package level and cannot refer to them.
func (v *fileVisitor) checkLocalTypes() error {
	topLevel := make(map[ast.Decl]bool, len(v.file.ast.Decls))
	for _, decl := range v.file.ast.Decls {
		topLevel[decl] = true
	}

	var err error
	ast.Inspect(v.file.ast, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		decl, ok := n.(*ast.GenDecl)
		if !ok || decl.Tok != token.TYPE || topLevel[decl] {
			return true
		}
		for _, spec := range decl.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := specDoc(decl, ts)
			pos := v.pkg.source(ts.Pos())
			switch {
			case directive.Has(doc, directive.KindAPI):
				err = fmt.Errorf("%s: nested API definitions are not supported", pos)
			case directive.Has(doc, directive.KindClientStruct):
				err = fmt.Errorf("%s: nested client struct templates are not supported", pos)
			}
		}
		return err == nil
	})
	return err
}

func (v *fileVisitor) visitGenDecl(decl *ast.GenDecl) {
	if directive.Has(decl.Doc, directive.KindCopyToClient) {
		v.copyToClient(decl.Doc, decl.Pos(), decl.End(), "")
		return
	}
	if decl.Tok != token.TYPE {
		return
	}
	for _, spec := range decl.Specs {
		ts := spec.(*ast.TypeSpec)
		if decl.Lparen.IsValid() && directive.Has(ts.Doc, directive.KindCopyToClient) {
			v.copyToClient(ts.Doc, ts.Pos(), ts.End(), "type ")
			continue
		}
		v.visitTypeSpec(ts, specDoc(decl, ts))
	}
}

func (v *fileVisitor) visitFuncDecl(fn *ast.FuncDecl) {
	if directive.Has(fn.Doc, directive.KindCopyToClient) {
		v.copyToClient(fn.Doc, fn.Pos(), fn.End(), "")
		return
	}
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return
	}
	v.pkg.methods = append(v.pkg.methods, &methodDecl{
		fn:      fn,
		file:    v.file,
		recv:    receiverBase(fn.Recv.List[0].Type),
		imports: v.imports,
	})
}

// copyToClient records the text of a declaration, from the start of its
// doc comment to its end. prefix restores the keyword of a grouped spec.
func (v *fileVisitor) copyToClient(doc *ast.CommentGroup, start, end token.Pos, prefix string) {
	var text string
	if prefix == "" {
		if doc != nil {
			start = doc.Pos()
		}
		text = v.file.text(start, end)
	} else {
		var b strings.Builder
		if doc != nil {
			for _, c := range doc.List {
				b.WriteString(c.Text)
				b.WriteByte('\n')
			}
		}
		b.WriteString(prefix)
		b.WriteString(v.file.text(start, end))
		text = b.String()
	}
	v.pkg.info.CopyToClient = append(v.pkg.info.CopyToClient, ir.CopyToClientEntry{
		Text:   text,
		Source: v.pkg.source(start),
	})
}

func (v *fileVisitor) visitTypeSpec(ts *ast.TypeSpec, doc *ast.CommentGroup) {
	name := ts.Name.Name
	var isAPI, isClientStruct bool
	for _, d := range directive.Parse(doc) {
		if !d.Kind.IsKnown() {
			src := v.pkg.source(d.Pos)
			v.pkg.warn(ir.Warning{
				Code:     "unknown_directive",
				Message:  fmt.Sprintf("unknown directive bridge: %s", d.Kind),
				Source:   &src,
				TypeName: name,
			})
			continue
		}
		switch d.Kind {
		case directive.KindAPI:
			isAPI = true
		case directive.KindClientStruct:
			isClientStruct = true
		case directive.KindEquatable:
			v.pkg.info.ConformanceRequests = append(v.pkg.info.ConformanceRequests,
				ir.ConformanceRequest{TypeName: name, Protocol: ir.ProtocolEquatable})
		case directive.KindHashable:
			v.pkg.info.ConformanceRequests = append(v.pkg.info.ConformanceRequests,
				ir.ConformanceRequest{TypeName: name, Protocol: ir.ProtocolHashable})
		}
	}
	if !isAPI && !isClientStruct {
		return
	}

	src := v.pkg.source(ts.Pos())
	if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
		v.pkg.warn(ir.Warning{
			Code:     "generic_type",
			Message:  fmt.Sprintf("%s has type parameters and is skipped", name),
			Source:   &src,
			TypeName: name,
		})
		return
	}

	if isAPI {
		v.contributed = true
		v.pkg.apis = append(v.pkg.apis, &pendingAPI{
			def: &ir.APIDefinition{
				Name:    name,
				Doc:     directive.Text(doc),
				Package: v.file.ast.Name.Name,
				Source:  src,
			},
			imports: v.imports,
		})
		return
	}

	tmpl, ok := v.buildTemplate(ts, doc)
	if !ok {
		return
	}
	v.contributed = true
	v.pkg.info.ClientStructTemplates = append(v.pkg.info.ClientStructTemplates, tmpl)
}

// specDoc returns the doc comment of a type spec. The parser attaches the
// comment of an ungrouped declaration to the GenDecl.
func specDoc(decl *ast.GenDecl, ts *ast.TypeSpec) *ast.CommentGroup {
	if ts.Doc != nil {
		return ts.Doc
	}
	if !decl.Lparen.IsValid() {
		return decl.Doc
	}
	return nil
}

// receiverBase returns the type name of a method receiver.
func receiverBase(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

// typeString renders a type expression on a single line.
func typeString(expr ast.Expr) string {
	return types.ExprString(expr)
}

// importName returns the name under which path is visible in a file.
func importName(imports []ir.Import, path string) (string, bool) {
	for _, imp := range imports {
		if imp.Path != path {
			continue
		}
		if imp.Name != "" {
			return imp.Name, true
		}
		return path[strings.LastIndex(path, "/")+1:], true
	}
	return "", false
}
