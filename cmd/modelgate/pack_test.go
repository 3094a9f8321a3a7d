package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/modelgate/pkg/cmf"
)

const sampleDescription = `
name: tiny
target: sim
parallelism: 2
stack_size_mb: 16
functions:
  - name: subnet0
    inputs:
      - name: image
        dtype: uint8
        dims: [1, 5, 5, 3]
      - name: mask
        dtype: float16
        dims: [1, 10]
        byte_size: 40
    outputs:
      - name: scores
        dtype: float32
        dims: [1, 7]
`

func TestPackCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tiny.yaml")
	if err := os.WriteFile(in, []byte(sampleDescription), 0o644); err != nil {
		t.Fatalf("write description: %v", err)
	}

	if _, err := runApp(t, "pack", "--in", in, "--align", "64"); err != nil {
		t.Fatalf("pack: %v", err)
	}

	f, err := cmf.Open(filepath.Join(dir, "tiny.cmf"))
	if err != nil {
		t.Fatalf("open packed model: %v", err)
	}
	defer f.Close()
	m, err := f.Model()
	if err != nil {
		t.Fatalf("decode packed model: %v", err)
	}
	if m.Info.Name != "tiny" || m.Info.Parallelism != 2 || m.Info.StackSizeMB != 16 {
		t.Fatalf("unexpected info: %+v", m.Info)
	}
	fn, ok := m.Function("subnet0")
	if !ok {
		t.Fatalf("function subnet0 missing")
	}
	if got := fn.Inputs[0].ByteSize; got != 128 {
		t.Fatalf("padded input size: got %d want 128", got)
	}
	if got := fn.Inputs[1].ByteSize; got != 40 {
		t.Fatalf("explicit input size: got %d want 40", got)
	}
	if fn.Inputs[1].Elem != cmf.ElemFloat16 {
		t.Fatalf("input elem: got %s", fn.Inputs[1].Elem)
	}
	if got := fn.Outputs[0].ByteSize; got != 64 {
		t.Fatalf("padded output size: got %d want 64", got)
	}
}

func TestPackRejectsBadDescriptions(t *testing.T) {
	tests := []struct {
		name string
		desc packDescription
	}{
		{"unknown dtype", packDescription{Functions: []packFunction{{
			Name:   "f",
			Inputs: []packTensor{{Elem: "complex64", Dims: []int32{1}}},
		}}}},
		{"byte size too small", packDescription{Functions: []packFunction{{
			Name:   "f",
			Inputs: []packTensor{{Elem: "float32", Dims: []int32{1, 4}, ByteSize: 8}},
		}}}},
		{"no functions", packDescription{}},
		{"zero dim", packDescription{Functions: []packFunction{{
			Name:    "f",
			Outputs: []packTensor{{Elem: "int32", Dims: []int32{1, 0}}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.desc.model(64); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ n, align, want int64 }{
		{75, 64, 128},
		{64, 64, 64},
		{0, 64, 0},
		{75, 0, 75},
		{75, 1, 75},
		{20, 8, 24},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.align); got != tt.want {
			t.Fatalf("alignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestResolvePackOut(t *testing.T) {
	got, err := resolvePackOut("/tmp/models/tiny.yaml", "")
	if err != nil {
		t.Fatalf("resolvePackOut() error = %v", err)
	}
	if got != filepath.Join("/tmp/models", "tiny.cmf") {
		t.Fatalf("resolvePackOut() = %q", got)
	}

	out := filepath.Join(t.TempDir(), "nested", "x.cmf")
	got, err = resolvePackOut("tiny.yaml", out)
	if err != nil {
		t.Fatalf("resolvePackOut() error = %v", err)
	}
	if got != out {
		t.Fatalf("resolvePackOut() = %q, want %q", got, out)
	}
	if _, err := os.Stat(filepath.Dir(out)); err != nil {
		t.Fatalf("output directory not created: %v", err)
	}
}
