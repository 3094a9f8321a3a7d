package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/modelgate/internal/logger"
	"github.com/samcharles93/modelgate/pkg/cmf"
)

// packDescription is the YAML description pack compiles into a .cmf file.
type packDescription struct {
	Name        string         `yaml:"name"`
	Target      string         `yaml:"target"`
	Parallelism int            `yaml:"parallelism"`
	StackSizeMB uint64         `yaml:"stack_size_mb"`
	Functions   []packFunction `yaml:"functions"`
}

type packFunction struct {
	Name    string       `yaml:"name"`
	Inputs  []packTensor `yaml:"inputs"`
	Outputs []packTensor `yaml:"outputs"`
}

type packTensor struct {
	Name string  `yaml:"name"`
	Elem string  `yaml:"dtype"`
	Dims []int32 `yaml:"dims"`
	// ByteSize overrides the computed, aligned size.
	ByteSize int64 `yaml:"byte_size"`
}

func packCmd() *cli.Command {
	return &cli.Command{
		Name:  "pack",
		Usage: "Pack a YAML model description into a .cmf file",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"in"},
				Usage:    "YAML model description",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"out"},
				Usage:   "Output .cmf path (default: next to the description)",
			},
			&cli.IntFlag{
				Name:  "align",
				Usage: "Pad tensor byte sizes to a multiple of this many bytes (0 disables). Typical: 64",
				Value: 64,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, _ = setupLogging(ctx)
			log := logger.FromContext(ctx)

			inPath := cmd.String("input")
			outPath, err := resolvePackOut(inPath, cmd.String("output"))
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}
			desc, err := readPackDescription(inPath)
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}
			model, err := desc.model(int64(cmd.Int("align")))
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}
			if err := writeModelFile(outPath, model); err != nil {
				return fmt.Errorf("pack: %w", err)
			}
			log.Info("packed model", "output", outPath, "functions", len(model.Functions))
			return nil
		},
	}
}

func readPackDescription(path string) (*packDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var desc packDescription
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &desc, nil
}

func (d *packDescription) model(align int64) (*cmf.Model, error) {
	if align < 0 {
		return nil, fmt.Errorf("negative alignment %d", align)
	}
	m := &cmf.Model{
		Info: cmf.ModelInfo{
			Name:        d.Name,
			Target:      d.Target,
			Parallelism: d.Parallelism,
			StackSizeMB: d.StackSizeMB,
		},
		Functions: make([]cmf.Function, len(d.Functions)),
	}
	for i, f := range d.Functions {
		inputs, err := packTensors(f.Inputs, align)
		if err != nil {
			return nil, fmt.Errorf("function %q inputs: %w", f.Name, err)
		}
		outputs, err := packTensors(f.Outputs, align)
		if err != nil {
			return nil, fmt.Errorf("function %q outputs: %w", f.Name, err)
		}
		m.Functions[i] = cmf.Function{Name: f.Name, Inputs: inputs, Outputs: outputs}
	}
	return m, m.Validate()
}

func packTensors(ts []packTensor, align int64) ([]cmf.Tensor, error) {
	out := make([]cmf.Tensor, len(ts))
	for i, t := range ts {
		elem, err := cmf.ParseElemType(t.Elem)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		ct := cmf.Tensor{Name: t.Name, Elem: elem, Dims: t.Dims, ByteSize: t.ByteSize}
		if ct.ByteSize == 0 {
			ct.ByteSize = alignUp(ct.NaturalSize(), align)
		}
		if ct.ByteSize < ct.NaturalSize() {
			return nil, fmt.Errorf("tensor %d: byte size %d below natural size %d", i, ct.ByteSize, ct.NaturalSize())
		}
		out[i] = ct
	}
	return out, nil
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func writeModelFile(path string, m *cmf.Model) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w, err := cmf.NewWriter(f)
	if err != nil {
		return err
	}
	return cmf.WriteModel(w, m)
}
