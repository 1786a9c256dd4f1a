// Package check implements the bridgegen check command.
package check

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/broady/bridge/bridgegen"
	"github.com/broady/bridge/bridgegen/analysis"
)

type Cmd struct {
	Source  string `arg:"" help:"Directory scanned for API definitions." type:"path" default:"."`
	Verbose bool   `help:"List the method identifiers of every API definition." short:"v"`

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
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	info, err := analysis.New(c.Source).WithLogger(logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", c.Source, err)
	}

	// Rendering catches errors analysis alone does not, such as API
	// definitions spread over several packages.
	if len(info.APIDefinitions) > 0 {
		if _, err := bridgegen.FromSource(info).WithLogger(logger).Render(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "✓ %s\n", info.Summary())
	for _, def := range info.APIDefinitions {
		fmt.Fprintf(stdout, "✓ %s (%s)\n", def.Name, def.Package)
		if !c.Verbose {
			continue
		}
		for _, m := range def.Methods {
			fmt.Fprintf(stdout, "    %s\n", m.MethodID())
		}
	}
	if n := len(info.Warnings); n > 0 {
		fmt.Fprintf(stdout, "! %d warning(s)\n", n)
	}
	return nil
}
