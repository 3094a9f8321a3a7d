package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/modelgate/internal/logger"
	"github.com/samcharles93/modelgate/pkg/modelloader"
)

var (
	modelPath    string
	modelsPath   string
	functionName string
	runtimeName  string
	stackMargin  int64
	logLevel     string
	logFormat    string
	debug        bool
)

// stdout and stderr are seams for tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to .cmf file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "path to directory containing .cmf models",
			Destination: &modelsPath,
		},
		&cli.StringFlag{
			Name:        "function",
			Aliases:     []string{"f"},
			Usage:       "entry point to extract from the model",
			Value:       "subnet0",
			Destination: &functionName,
		},
		&cli.StringFlag{
			Name:        "runtime",
			Usage:       "device runtime",
			Value:       modelloader.DefaultRuntime,
			Destination: &runtimeName,
		},
		&cli.Int64Flag{
			Name:        "stack-margin",
			Usage:       "MB added to a model's stack requirement when the device stack is raised",
			Value:       int64(modelloader.DefaultStackMargin),
			Destination: &stackMargin,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// setupLogging builds the command logger from the logging flags and stores
// it in the returned context.
func setupLogging(ctx context.Context) (context.Context, *slog.Logger) {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	sl := slog.New(logger.NewHandler(stderr, logFormat, level))
	return logger.WithContext(ctx, logger.FromSlog(sl)), sl
}

// loaderOptions turns the model flags into modelloader options.
func loaderOptions(sl *slog.Logger) ([]modelloader.Option, error) {
	if stackMargin < 0 || stackMargin > math.MaxUint32 {
		return nil, fmt.Errorf("--stack-margin must be between 0 and %d MB, got %d", uint32(math.MaxUint32), stackMargin)
	}
	return []modelloader.Option{
		modelloader.WithRuntime(runtimeName),
		modelloader.WithLogger(sl),
		modelloader.WithStackMargin(uint32(stackMargin)),
	}, nil
}
