// Command bridgegen generates the server dispatch code and the client proxy
// of the API definitions in a Go package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/broady/bridge/cmd/bridgegen/internal/check"
	"github.com/broady/bridge/cmd/bridgegen/internal/gen"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate server and client code."`
	Check   check.Cmd  `cmd:"" help:"Analyze API definitions without writing files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("bridgegen"),
		kong.Description("Generate typed Go clients and dispatch code for API definitions."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
