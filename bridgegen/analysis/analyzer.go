// Package analysis extracts the bridge intermediate representation from Go
// source files.
//
// The analyzer walks a directory tree, parses every non-test Go file and
// collects the API definitions, client struct templates, conformance
// requests and copy-to-client declarations it finds. Methods are attached to
// their API definition once all files of a package have been visited, since
// Go allows methods to live in any file of the package.
package analysis

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/broady/bridge/bridgegen/ir"
)

// Analyzer runs one analysis pass over a source tree.
type Analyzer struct {
	root   string
	logger *slog.Logger
}

// New creates an analyzer for the source tree rooted at root.
func New(root string) *Analyzer {
	return &Analyzer{root: root}
}

// WithLogger sets the logger used to report warnings.
// If not set, slog.Default() will be used.
func (a *Analyzer) WithLogger(logger *slog.Logger) *Analyzer {
	a.logger = logger
	return a
}

func (a *Analyzer) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Run analyzes the source tree. It fails on the first file that cannot be
// parsed and on marked types declared inside function bodies. Everything
// else is reported as a warning in the returned SourceInfo.
func (a *Analyzer) Run(ctx context.Context) (*ir.SourceInfo, error) {
	dirs, err := collectFiles(a.root)
	if err != nil {
		return nil, err
	}

	info := &ir.SourceInfo{}
	for _, dir := range dirs {
		pkg := newPackagePass(info, a.log())
		for _, path := range dir.files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := pkg.visitFile(path); err != nil {
				return nil, err
			}
		}
		pkg.finish()
	}
	return info, nil
}

type sourceDir struct {
	path  string
	files []string
}

// collectFiles returns the Go source files under root grouped by directory,
// following the go command's conventions for ignored files and directories.
func collectFiles(root string) ([]sourceDir, error) {
	byDir := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			return nil
		}
		dir := filepath.Dir(path)
		byDir[dir] = append(byDir[dir], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	dirs := make([]sourceDir, 0, len(byDir))
	for dir, files := range byDir {
		sort.Strings(files)
		dirs = append(dirs, sourceDir{path: dir, files: files})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].path < dirs[j].path })
	return dirs, nil
}

// packagePass holds the state shared by the files of one package directory.
type packagePass struct {
	info   *ir.SourceInfo
	logger *slog.Logger
	fset   *token.FileSet

	// apis are closed API definitions waiting for their methods.
	apis []*pendingAPI

	// methods are all method declarations of the package in source order.
	methods []*methodDecl
}

type pendingAPI struct {
	def     *ir.APIDefinition
	imports []ir.Import
}

type methodDecl struct {
	fn      *ast.FuncDecl
	file    *parsedFile
	recv    string
	imports []ir.Import
}

func newPackagePass(info *ir.SourceInfo, logger *slog.Logger) *packagePass {
	return &packagePass{
		info:   info,
		logger: logger,
		fset:   token.NewFileSet(),
	}
}

func (p *packagePass) visitFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	f, err := parser.ParseFile(p.fset, path, src, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if ast.IsGenerated(f) {
		return nil
	}
	v := &fileVisitor{
		pkg:  p,
		file: &parsedFile{path: path, src: src, ast: f, tokenFile: p.fset.File(f.Pos())},
	}
	return v.visit()
}

// finish attaches methods to the API definitions of the package and adds
// the definitions to the result.
func (p *packagePass) finish() {
	for _, pending := range p.apis {
		def := pending.def
		p.info.AddImports(pending.imports...)
		for _, m := range p.methods {
			if m.recv != def.Name || !m.fn.Name.IsExported() {
				continue
			}
			method, ok := p.buildMethod(def, m)
			if !ok {
				continue
			}
			def.Methods = append(def.Methods, method)
			p.info.AddImports(m.imports...)
		}
		if len(def.Methods) == 0 {
			p.warn(ir.Warning{
				Code:     "no_methods",
				Message:  fmt.Sprintf("API definition %s has no public methods", def.Name),
				Source:   &def.Source,
				TypeName: def.Name,
			})
		}
		p.info.APIDefinitions = append(p.info.APIDefinitions, def)
	}
	p.apis = nil
	p.methods = nil
}

func (p *packagePass) warn(w ir.Warning) {
	p.info.AddWarning(w)
	attrs := []any{slog.String("code", w.Code)}
	if w.Source != nil {
		attrs = append(attrs, slog.String("source", w.Source.String()))
	}
	p.logger.Warn(w.Message, attrs...)
}

func (p *packagePass) source(pos token.Pos) ir.Source {
	position := p.fset.PositionFor(pos, false)
	return ir.Source{File: position.Filename, Line: position.Line, Column: position.Column}
}
