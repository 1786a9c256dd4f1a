// Package bridgegen renders the server dispatch code and the client proxy
// code of the API definitions found by the analyzer.
//
// Example:
//
//	info, err := analysis.New("./api").Run(ctx)
//	if err != nil {
//		return err
//	}
//	out, err := bridgegen.FromSource(info).
//		WithClientPackage("apiclient").
//		Render(ctx)
//	if err != nil {
//		return err
//	}
//	err = out.Write(ctx, sink.NewFilesystemSink("."), "api/bridge_gen.go", "apiclient/bridge_gen.go")
package bridgegen

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/broady/bridge/bridgegen/ir"
	"github.com/broady/bridge/bridgegen/sink"
)

//go:embed templates/*.go.tpl
var templateFS embed.FS

var templates = template.Must(template.New("bridgegen").Funcs(template.FuncMap{
	"comment": comment,
	"quote":   strconv.Quote,
}).ParseFS(templateFS, "templates/*.go.tpl"))

// DefaultClientPackage is the package name of the client output when none is set.
const DefaultClientPackage = "client"

// Generator renders source info into server and client code.
type Generator struct {
	info          *ir.SourceInfo
	warnings      []string
	serverPackage string
	clientPackage string
	serverDir     string
	logger        *slog.Logger
}

// FromSource creates a Generator for analyzed source.
func FromSource(info *ir.SourceInfo) *Generator {
	return &Generator{
		info:          info,
		clientPackage: DefaultClientPackage,
		logger:        slog.Default(),
	}
}

// WithWarnings adds free-form warnings embedded at the top of the server output.
func (g *Generator) WithWarnings(warnings ...string) *Generator {
	g.warnings = append(g.warnings, warnings...)
	return g
}

// WithClientPackage sets the package name of the client output.
func (g *Generator) WithClientPackage(name string) *Generator {
	g.clientPackage = name
	return g
}

// WithServerPackage sets the package name of the server output.
// By default it is the package declaring the API definitions.
func (g *Generator) WithServerPackage(name string) *Generator {
	g.serverPackage = name
	return g
}

// WithServerDir sets the directory the server output is written to.
// //line directives in the server output are made relative to it.
func (g *Generator) WithServerDir(dir string) *Generator {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	g.serverDir = dir
	return g
}

// WithLogger sets the logger for generation progress.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.logger = logger
	return g
}

// Output holds the rendered artifacts.
type Output struct {
	Server []byte
	Client []byte
}

// Render renders both artifacts. Nothing is written.
func (g *Generator) Render(ctx context.Context) (*Output, error) {
	if g.info == nil {
		return nil, errors.New("no source info")
	}
	pkg, err := g.resolveServerPackage()
	if err != nil {
		return nil, err
	}
	if g.clientPackage == "" {
		return nil, errors.New("client package name is required")
	}

	out := new(Output)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		src, err := render(ctx, "server.go.tpl", "server_gen.go", g.buildServer(pkg))
		if err != nil {
			return fmt.Errorf("render server: %w", err)
		}
		out.Server = src
		return nil
	})
	eg.Go(func() error {
		src, err := render(ctx, "client.go.tpl", "client_gen.go", g.buildClient())
		if err != nil {
			return fmt.Errorf("render client: %w", err)
		}
		out.Client = src
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	g.logger.Debug("rendered bridge code",
		"server_bytes", len(out.Server),
		"client_bytes", len(out.Client))
	return out, nil
}

func (g *Generator) resolveServerPackage() (string, error) {
	if g.serverPackage != "" {
		return g.serverPackage, nil
	}
	pkgs := g.info.APIPackages()
	switch len(pkgs) {
	case 0:
		if len(g.info.ClientStructTemplates) > 0 {
			return g.info.ClientStructTemplates[0].Package, nil
		}
		return "", errors.New("no API definitions found; set the server package explicitly")
	case 1:
		return pkgs[0], nil
	default:
		return "", fmt.Errorf("API definitions found in multiple packages (%s); the server output must belong to one", strings.Join(pkgs, ", "))
	}
}

// render executes a template and formats the result, dropping unused imports.
func render(ctx context.Context, name, filename string, data any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("exec template %s: %w", name, err)
	}
	src, err := imports.Process(filename, buf.Bytes(), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", filename, err)
	}
	return src, nil
}

// Write writes the server and client artifacts through s. The client is
// written only after the server was written successfully.
func (o *Output) Write(ctx context.Context, s sink.OutputSink, serverPath, clientPath string) error {
	if err := s.WriteFile(ctx, serverPath, o.Server); err != nil {
		return fmt.Errorf("write server output: %w", err)
	}
	if err := s.WriteFile(ctx, clientPath, o.Client); err != nil {
		return fmt.Errorf("write client output: %w", err)
	}
	return nil
}
