// Package gen implements the bridgegen gen command.
package gen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/broady/bridge/bridgegen"
	"github.com/broady/bridge/bridgegen/analysis"
	"github.com/broady/bridge/bridgegen/sink"
	"github.com/broady/bridge/internal/symlink"
)

type Cmd struct {
	Source        string   `arg:"" optional:"" help:"Directory scanned for API definitions." type:"path"`
	ServerOutput  string   `help:"File the server dispatch code is written to." type:"path"`
	ClientOutput  string   `help:"File the client proxy code is written to." type:"path"`
	ClientPackage string   `help:"Package name of the client output (default: its directory name)."`
	Quiet         bool     `help:"Only report warnings and errors." short:"q"`
	Warning       []string `help:"Percent-encoded warning embedded in the server output." sep:"none"`
	Check         bool     `help:"Fail if the generated files are out of date instead of writing them."`
	Config        string   `help:"YAML configuration file. Flags override its settings." type:"path"`

	SymlinkSource            string `help:"Path of a symlink to create pointing at the client output."`
	SymlinkDestination       string `help:"Path the symlink points to."`
	SymlinkSuccessMessage    string `help:"Printed when the symlink is created."`
	SymlinkPermissionMessage string `help:"Printed when the symlink cannot be created for lack of permission."`

	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

func (c *Cmd) Run(ctx context.Context) error {
	stdout, stderr := c.Stdout, c.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.Quiet)

	info, err := analysis.New(cfg.Source).WithLogger(logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", cfg.Source, err)
	}

	serverPath, err := filepath.Abs(cfg.ServerOutput)
	if err != nil {
		return fmt.Errorf("resolve server output: %w", err)
	}
	clientPath, err := filepath.Abs(cfg.ClientOutput)
	if err != nil {
		return fmt.Errorf("resolve client output: %w", err)
	}

	out, err := bridgegen.FromSource(info).
		WithWarnings(cfg.Warnings...).
		WithClientPackage(cfg.ClientPackage).
		WithServerDir(filepath.Dir(serverPath)).
		WithLogger(logger).
		Render(ctx)
	if err != nil {
		return err
	}

	root, serverRel, clientRel, err := outputPaths(serverPath, clientPath)
	if err != nil {
		return err
	}
	var s sink.OutputSink = sink.NewFilesystemSink(root)
	if c.Check {
		s = &sink.CheckSink{Root: root}
	}
	if err := out.Write(ctx, s, serverRel, clientRel); err != nil {
		if errors.Is(err, sink.ErrOutOfDate) {
			return fmt.Errorf("%w; run bridgegen gen to update", err)
		}
		return err
	}
	if c.Check {
		logger.Info("generated files are up to date")
		return nil
	}
	logger.Info("generated bridge code",
		slog.String("server", serverPath),
		slog.String("client", clientPath),
		slog.String("summary", info.Summary()))

	if l := cfg.Symlink; l != nil && l.Source != "" {
		opts := symlink.Options{PermissionMessage: l.PermissionMessage, Out: stdout}
		if !cfg.Quiet {
			opts.SuccessMessage = l.SuccessMessage
		}
		if err := symlink.Create(l.Source, l.Destination, opts); err != nil {
			return err
		}
	}
	return nil
}

// config merges the configuration file with the flags.
func (c *Cmd) config() (*bridgegen.Config, error) {
	cfg := new(bridgegen.Config)
	if c.Config != "" {
		loaded, err := bridgegen.LoadConfig(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Source, c.Source)
	override(&cfg.ServerOutput, c.ServerOutput)
	override(&cfg.ClientOutput, c.ClientOutput)
	override(&cfg.ClientPackage, c.ClientPackage)
	cfg.Quiet = cfg.Quiet || c.Quiet

	for _, w := range c.Warning {
		decoded, err := url.PathUnescape(w)
		if err != nil {
			return nil, fmt.Errorf("decode warning %q: %w", w, err)
		}
		cfg.Warnings = append(cfg.Warnings, decoded)
	}

	if c.SymlinkSource != "" || c.SymlinkDestination != "" {
		if cfg.Symlink == nil {
			cfg.Symlink = new(bridgegen.SymlinkConfig)
		}
		override(&cfg.Symlink.Source, c.SymlinkSource)
		override(&cfg.Symlink.Destination, c.SymlinkDestination)
	}
	if cfg.Symlink != nil {
		override(&cfg.Symlink.SuccessMessage, c.SymlinkSuccessMessage)
		override(&cfg.Symlink.PermissionMessage, c.SymlinkPermissionMessage)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// outputPaths returns the deepest directory containing both outputs and
// their slash-separated paths relative to it.
func outputPaths(serverPath, clientPath string) (root, serverRel, clientRel string, err error) {
	root = filepath.Dir(serverPath)
	for !within(root, clientPath) {
		parent := filepath.Dir(root)
		if parent == root {
			return "", "", "", fmt.Errorf("outputs %s and %s share no directory", serverPath, clientPath)
		}
		root = parent
	}
	serverRel, err = filepath.Rel(root, serverPath)
	if err != nil {
		return "", "", "", err
	}
	clientRel, err = filepath.Rel(root, clientPath)
	if err != nil {
		return "", "", "", err
	}
	return root, filepath.ToSlash(serverRel), filepath.ToSlash(clientRel), nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func newLogger(w io.Writer, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
