package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	_ "github.com/samcharles93/modelgate/internal/device/simrt"
	"github.com/samcharles93/modelgate/internal/version"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "modelgate",
		Usage:   "Inspect compiled models and negotiate their host IO layouts",
		Version: version.String(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			packCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}
