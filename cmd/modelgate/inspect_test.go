package main

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/modelgate/pkg/cmf"
	"github.com/samcharles93/modelgate/pkg/layout"
)

func inspectModel() *cmf.Model {
	return &cmf.Model{
		Info: cmf.ModelInfo{Name: "seg", Parallelism: 3, StackSizeMB: 4096},
		Functions: []cmf.Function{{
			Name: "subnet0",
			Inputs: []cmf.Tensor{
				{Elem: cmf.ElemUint8, Dims: []int32{2, 8, 8, 3}, ByteSize: 512},
			},
			Outputs: []cmf.Tensor{
				{Elem: cmf.ElemFloat32, Dims: []int32{2, 8, 8, 21}},
			},
		}},
	}
}

func TestInspectJSON(t *testing.T) {
	path := writeModel(t, t.TempDir(), "seg.cmf", inspectModel())

	out, err := runApp(t, "inspect", "--model", path, "--format", "json",
		"--input-order", "0=nchw", "--adjust-stack")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	var report inspectReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Function != "subnet0" || report.Parallelism != 3 || report.Source != path {
		t.Fatalf("unexpected report header: %+v", report.Description)
	}
	if got := report.Inputs[0].Host; got != (layout.DataLayout{DType: layout.Float32, Order: layout.NCHW}) {
		t.Fatalf("input host layout: %v", got)
	}
	if got := report.Inputs[0].BatchAlign; got != 256 {
		t.Fatalf("input batch align: %d", got)
	}
	if got := report.Outputs[0].ByteSize; got != 2*8*8*21*4 {
		t.Fatalf("output byte size: %d", got)
	}
	// The shared simulated device starts far below 4096 MB.
	if report.StackAdjusted == nil || !*report.StackAdjusted {
		t.Fatalf("expected stack adjustment")
	}
}

func TestInspectYAMLAndText(t *testing.T) {
	path := writeModel(t, t.TempDir(), "seg.cmf", inspectModel())

	out, err := runApp(t, "inspect", "--model", path, "--format", "yaml")
	if err != nil {
		t.Fatalf("inspect yaml: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, out)
	}
	if doc["function"] != "subnet0" {
		t.Fatalf("yaml function: %v", doc["function"])
	}
	if _, ok := doc["stack_adjusted"]; ok {
		t.Fatalf("stack_adjusted must be omitted when not requested")
	}

	out, err = runApp(t, "inspect", "--model", path)
	if err != nil {
		t.Fatalf("inspect text: %v", err)
	}
	for _, want := range []string{"parallelism: 3", "uint8/nhwc", "(2,8,8,21)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectErrors(t *testing.T) {
	path := writeModel(t, t.TempDir(), "seg.cmf", inspectModel())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad format", []string{"--model", path, "--format", "xml"}, "unknown format"},
		{"bad order spec", []string{"--model", path, "--input-order", "nchw"}, "expected index=order"},
		{"order index out of range", []string{"--model", path, "--output-order", "3=nchw"}, "out of range"},
		{"unsupported order", []string{"--model", path, "--input-order", "0=hwcn"}, "unsupported"},
		{"missing function", []string{"--model", path, "--function", "subnet5"}, "function not found"},
		{"no model", []string{}, "--model or --models-path is required"},
		{"negative stack margin", []string{"--model", path, "--stack-margin", "-1"}, "--stack-margin must be between"},
		{"stack margin too large", []string{"--model", path, "--stack-margin", "4294967296"}, "--stack-margin must be between"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, append([]string{"inspect"}, tt.args...)...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestInspectModelsDir(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "only.cmf", inspectModel())

	out, err := runApp(t, "inspect", "--models-path", dir, "--format", "json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, `"function": "subnet0"`) {
		t.Fatalf("unexpected output:\n%s", out)
	}

	writeModel(t, dir, "second.cmf", inspectModel())
	if _, err := runApp(t, "inspect", "--models-path", dir); err == nil || !strings.Contains(err.Error(), "multiple models") {
		t.Fatalf("expected multiple models error, got %v", err)
	}
}
