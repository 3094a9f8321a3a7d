package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/internal/version"
	"github.com/samcharles93/modelgate/pkg/cmf"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			fmt.Fprintf(stdout, "version:    %s\n", info.Version)
			if info.Commit != "" {
				fmt.Fprintf(stdout, "commit:     %s\n", info.Commit)
			}
			if info.BuildTime != "" {
				fmt.Fprintf(stdout, "build time: %s\n", info.BuildTime)
			}
			fmt.Fprintf(stdout, "go:         %s\n", info.GoVersion)
			fmt.Fprintf(stdout, "cmf:        %d.%d\n", cmf.CurrentMajor, cmf.CurrentMinor)
			fmt.Fprintf(stdout, "runtimes:   %s\n", strings.Join(device.Runtimes(), ", "))
			return nil
		},
	}
}
