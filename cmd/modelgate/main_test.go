package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/modelgate/pkg/cmf"
)

// runApp runs the CLI with args and returns what it printed to stdout.
// Logs are discarded and the user config file is ignored.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	prevOut, prevErr := stdout, stderr
	stdout, stderr = &out, io.Discard
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	t.Setenv(envModelgateConfig, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv(envModelgateModelsDir, "")

	err := newApp().Run(context.Background(), append([]string{"modelgate"}, args...))
	return out.String(), err
}

func writeModel(t *testing.T, dir, name string, m *cmf.Model) string {
	t.Helper()
	image, err := cmf.EncodeImage(m)
	if err != nil {
		t.Fatalf("encode model: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	for _, want := range []string{"version:", "cmf:        1.0", "sim"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("version output missing %q:\n%s", want, out)
		}
	}
}
