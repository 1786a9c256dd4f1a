package bridgegen

import (
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/broady/bridge/bridgegen/ir"
)

type serverData struct {
	Package  string
	Warnings []string
	Imports  []ir.Import
	APIs     []apiData
	Checks   []checkData
}

type clientData struct {
	Package      string
	Imports      []ir.Import
	APIs         []apiData
	Structs      []structData
	Conformances []conformanceData
	Copies       []string
}

type apiData struct {
	Name    string
	Doc     string
	Methods []methodData
}

// MethodsVar is the server-side method table of the API.
func (a apiData) MethodsVar() string {
	return lowerFirst(a.Name) + "Methods"
}

type methodData struct {
	Name string
	Doc  string
	ID   string

	// TypeName is the payload type, declared in both artifacts.
	TypeName string

	Fields   []fieldData
	IsAsync  bool
	MayThrow bool
	IsVoid   bool
	Return   string
}

type fieldData struct {
	Name     string
	Type     string
	Key      string
	Var      string
	Variadic bool
}

// InvokeArgs is the argument list the server passes to the API method.
func (m methodData) InvokeArgs() string {
	var args []string
	if m.IsAsync {
		args = append(args, "ctx")
	}
	for _, f := range m.Fields {
		arg := "c." + f.Name
		if f.Variadic {
			arg += "..."
		}
		args = append(args, arg)
	}
	return strings.Join(args, ", ")
}

// ClientParams is the parameter list of the client method.
func (m methodData) ClientParams() string {
	params := []string{"ctx context.Context"}
	for _, f := range m.Fields {
		typ := f.Type
		if f.Variadic {
			typ = "..." + strings.TrimPrefix(typ, "[]")
		}
		params = append(params, f.Var+" "+typ)
	}
	return strings.Join(params, ", ")
}

// PayloadInit is the composite literal body of the client payload.
func (m methodData) PayloadInit() string {
	inits := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		inits[i] = f.Name + ": " + f.Var
	}
	return strings.Join(inits, ", ")
}

type checkData struct {
	Line string
	Type string
}

type structData struct {
	Name    string
	Doc     string
	IsModel bool
	Fields  []structField
}

type structField struct {
	Doc  string
	Decl string
}

type conformanceData struct {
	TypeName string
	Equal    bool
	Hash     bool
}

// clientReserved are identifiers a client method body declares or refers to.
var clientReserved = map[string]bool{
	"api":          true,
	"call":         true,
	"ctx":          true,
	"err":          true,
	"context":      true,
	"bridgeclient": true,
}

func buildAPI(def *ir.APIDefinition) apiData {
	api := apiData{Name: def.Name, Doc: def.Doc}
	typeNames := def.GeneratedTypeNames()
	for i, m := range def.Methods {
		md := methodData{
			Name:     m.Name,
			Doc:      m.Doc,
			ID:       m.MethodID(),
			TypeName: lowerFirst(def.Name) + typeNames[i],
			IsAsync:  m.IsAsync,
			MayThrow: m.MayThrow,
			IsVoid:   m.ReturnType.IsVoid(),
			Return:   m.ReturnType.TypeName,
		}
		keys := m.CodingKeys()
		used := make(map[string]bool)
		vars := make([]string, len(m.Parameters))
		for j, p := range m.Parameters {
			if p.Label() != "" && !clientReserved[p.Label()] {
				vars[j] = p.Label()
				used[p.Label()] = true
			}
		}
		for j, p := range m.Parameters {
			if vars[j] != "" {
				continue
			}
			base := p.Label()
			if base == "" {
				base = "p" + strconv.Itoa(j)
			}
			name := base
			for used[name] || clientReserved[name] {
				name += "_"
			}
			vars[j] = name
			used[name] = true
		}
		for j, p := range m.Parameters {
			md.Fields = append(md.Fields, fieldData{
				Name:     "P" + strconv.Itoa(j),
				Type:     p.FieldTypeName(),
				Key:      keys[j],
				Var:      vars[j],
				Variadic: p.IsVariadic(),
			})
		}
		api.Methods = append(api.Methods, md)
	}
	return api
}

func (g *Generator) buildServer(pkg string) serverData {
	data := serverData{
		Package:  pkg,
		Warnings: slices.Clone(g.warnings),
		Imports:  g.info.ConditionalImports(),
	}
	for _, w := range g.info.Warnings {
		data.Warnings = append(data.Warnings, w.String())
	}
	for _, def := range g.info.APIDefinitions {
		data.APIs = append(data.APIs, buildAPI(def))
		for _, m := range def.Methods {
			line := g.lineDirective(m.Source)
			for _, p := range m.Parameters {
				data.Checks = append(data.Checks, checkData{Line: line, Type: p.FieldTypeName()})
			}
			if !m.ReturnType.IsVoid() {
				data.Checks = append(data.Checks, checkData{Line: line, Type: m.ReturnType.TypeName})
			}
		}
	}
	return data
}

func (g *Generator) buildClient() clientData {
	data := clientData{
		Package: g.clientPackage,
		Imports: g.info.ConditionalImports(),
	}
	for _, def := range g.info.APIDefinitions {
		data.APIs = append(data.APIs, buildAPI(def))
	}
	for _, tmpl := range g.info.ClientStructTemplates {
		sd := structData{Name: tmpl.Name, Doc: tmpl.Doc, IsModel: tmpl.IsModel}
		for _, p := range tmpl.ClientProperties() {
			sd.Fields = append(sd.Fields, structField{Doc: p.Doc, Decl: p.ClientDeclaration()})
		}
		data.Structs = append(data.Structs, sd)
	}
	index := make(map[string]int)
	for _, req := range g.info.ConformanceRequests {
		i, ok := index[req.TypeName]
		if !ok {
			i = len(data.Conformances)
			index[req.TypeName] = i
			data.Conformances = append(data.Conformances, conformanceData{TypeName: req.TypeName})
		}
		c := &data.Conformances[i]
		c.Equal = true
		if req.Protocol == ir.ProtocolHashable {
			c.Hash = true
		}
	}
	for _, entry := range g.info.CopyToClient {
		data.Copies = append(data.Copies, entry.Text)
	}
	return data
}

// lineDirective returns the position of src as written in a //line
// directive of the server output.
func (g *Generator) lineDirective(src ir.Source) string {
	if src.File == "" {
		return ""
	}
	file := src.File
	if g.serverDir != "" {
		abs, err := filepath.Abs(file)
		if err == nil {
			if rel, err := filepath.Rel(g.serverDir, abs); err == nil {
				file = rel
			}
		}
	}
	return filepath.ToSlash(file) + ":" + strconv.Itoa(src.Line)
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}

// comment renders text as a // comment block, one line per line of text,
// each prefixed with indent. Empty text renders nothing.
func comment(text, indent string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(indent)
		if line == "" {
			b.WriteString("//\n")
			continue
		}
		b.WriteString("// ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
