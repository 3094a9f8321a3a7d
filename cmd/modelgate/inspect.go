package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/modelgate/internal/engineaccess"
	"github.com/samcharles93/modelgate/internal/logger"
	"github.com/samcharles93/modelgate/pkg/layout"
	"github.com/samcharles93/modelgate/pkg/modelloader"
)

// inspectReport is what inspect prints.
type inspectReport struct {
	engineaccess.Description `yaml:",inline"`
	StackAdjusted            *bool `json:"stack_adjusted,omitempty" yaml:"stack_adjusted,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		format      string
		adjustStack bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Load a model function and print its IO contract",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json, yaml)",
				Value:       "text",
				Destination: &format,
			},
			&cli.StringSliceFlag{
				Name:  "input-order",
				Usage: "host order override for an input, as index=order (e.g. 0=nchw)",
			},
			&cli.StringSliceFlag{
				Name:  "output-order",
				Usage: "host order override for an output, as index=order",
			},
			&cli.BoolFlag{
				Name:        "adjust-stack",
				Usage:       "raise the device stack to the model's requirement",
				Destination: &adjustStack,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, LoadConfig())
			ctx, sl := setupLogging(ctx)
			log := logger.FromContext(ctx)

			path, err := resolveModelPath(modelPath, modelsPath)
			if err != nil {
				return err
			}
			render, err := renderer(format)
			if err != nil {
				return err
			}
			opts, err := loaderOptions(sl)
			if err != nil {
				return err
			}

			m, err := modelloader.New(path, functionName, opts...)
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			defer m.Close()

			if err := applyOrders(cmd.StringSlice("input-order"), m.SetHostInputLayout); err != nil {
				return fmt.Errorf("inspect: input order: %w", err)
			}
			if err := applyOrders(cmd.StringSlice("output-order"), m.SetHostOutputLayout); err != nil {
				return fmt.Errorf("inspect: output order: %w", err)
			}

			a, ok := engineaccess.New(m)
			if !ok {
				return fmt.Errorf("inspect: model is not loaded")
			}
			report := inspectReport{Description: a.Describe()}
			if adjustStack {
				changed, err := m.AdjustStackMemory()
				if err != nil {
					return fmt.Errorf("inspect: %w", err)
				}
				report.StackAdjusted = &changed
				log.Debug("stack adjustment", "changed", changed)
			}
			return render(stdout, report)
		},
	}
}

// applyOrders parses index=order overrides and applies them as float32 host
// layouts.
func applyOrders(specs []string, set func(layout.DataLayout, int) error) error {
	for _, spec := range specs {
		idx, name, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("%q: expected index=order", spec)
		}
		index, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil {
			return fmt.Errorf("%q: invalid index: %w", spec, err)
		}
		order, err := layout.ParseDimOrder(name)
		if err != nil {
			return fmt.Errorf("%q: %w", spec, err)
		}
		if err := set(layout.DataLayout{DType: layout.Float32, Order: order}, index); err != nil {
			return err
		}
	}
	return nil
}

func renderer(format string) (func(io.Writer, inspectReport) error, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return renderText, nil
	case "json":
		return renderJSON, nil
	case "yaml", "yml":
		return renderYAML, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func renderJSON(w io.Writer, r inspectReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderYAML(w io.Writer, r inspectReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func renderText(w io.Writer, r inspectReport) error {
	fmt.Fprintf(w, "function:    %s\n", r.Function)
	fmt.Fprintf(w, "source:      %s\n", r.Source)
	fmt.Fprintf(w, "runtime:     %s\n", r.Runtime)
	fmt.Fprintf(w, "parallelism: %d\n", r.Parallelism)
	if r.StackAdjusted != nil {
		fmt.Fprintf(w, "stack:       adjusted=%t\n", *r.StackAdjusted)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIR\tIDX\tBYTES\tPER-BATCH\tNATIVE\tHOST\tSHAPE\tSHAPE-EX")
	writeRows(tw, "in", r.Inputs)
	writeRows(tw, "out", r.Outputs)
	return tw.Flush()
}

func writeRows(w io.Writer, dir string, rows []engineaccess.Tensor) {
	for _, t := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			dir, t.Index, t.ByteSize, t.BatchAlign, t.Native, t.Host, t.Shape, t.ShapeEx)
	}
}
