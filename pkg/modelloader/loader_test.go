package modelloader

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/pkg/layout"
)

func loadFake(t *testing.T, rt *fakeRuntime, opts ...Option) *ModelLoader {
	t.Helper()
	opts = append([]Option{withDeviceRuntime(rt), quiet()}, opts...)
	m, err := NewFromMemory([]byte("image"), "subnet0", opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestTranslateRoundTrip(t *testing.T) {
	for _, dt := range []layout.DataType{layout.UInt8, layout.Float32, layout.Float16, layout.Int16, layout.Int32} {
		native, err := toDeviceType(dt)
		require.NoError(t, err)
		back, err := fromDeviceType(native)
		require.NoError(t, err)
		assert.Equal(t, dt, back)
	}
	for _, o := range []layout.DimOrder{layout.NCHW, layout.NHWC} {
		native, err := toDeviceOrder(o)
		require.NoError(t, err)
		back, err := fromDeviceOrder(native)
		require.NoError(t, err)
		assert.Equal(t, o, back)
	}
}

func TestTranslateUnsupported(t *testing.T) {
	for _, dt := range []layout.DataType{layout.Invalid, layout.DataType(42)} {
		_, err := toDeviceType(dt)
		assert.ErrorIs(t, err, ErrUnsupported, "type %s", dt)
	}
	for _, dt := range []device.DType{device.DTypeInt8, device.DTypeBool, device.DTypeFloat64, device.DTypeInvalid} {
		_, err := fromDeviceType(dt)
		assert.ErrorIs(t, err, ErrUnsupported, "device type %s", dt)
	}
	for _, o := range []layout.DimOrder{layout.OrderUnknown, layout.HWCN, layout.TNC, layout.NTC} {
		_, err := toDeviceOrder(o)
		assert.ErrorIs(t, err, ErrUnsupported, "order %s", o)
	}
	_, err := fromDeviceOrder(device.DimOrder(1))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLoadBuildsTable(t *testing.T) {
	rt := newFakeRuntime()
	m := loadFake(t, rt)

	require.Equal(t, 2, m.InputCount())
	require.Equal(t, 1, m.OutputCount())
	assert.Equal(t, 4, m.ModelParallelism())
	assert.Equal(t, "subnet0", m.FunctionName())
	assert.Equal(t, "memory", m.Source())
	assert.NotEmpty(t, m.ID())

	want := layout.DataLayout{DType: layout.Float32, Order: layout.NHWC}
	for i := 0; i < m.InputCount(); i++ {
		assert.Equal(t, want, m.HostInputLayout(i))
	}
	assert.Equal(t, want, m.HostOutputLayout(0))

	assert.Equal(t, []layout.Shape{{N: 4, H: 1, W: 3, C: 10}, {N: 2, H: 64, W: 1, C: 1}}, m.InputShapes())
	assert.Equal(t, []layout.Shape{{N: 1, H: 1, W: 1, C: 1000}}, m.OutputShapes())

	ex, err := m.InputShapeEx(1)
	require.NoError(t, err)
	assert.Equal(t, layout.ShapeEx{2, 64}, ex)

	assert.Zero(t, rt.dims, "dimension arrays must be released")
	assert.Equal(t, 1, rt.models)
	assert.Equal(t, 1, rt.functions)
}

func TestLoadQueryOrder(t *testing.T) {
	rt := newFakeRuntime()
	loadFake(t, rt)

	assert.Equal(t, []string{
		"LoadModelFromMem",
		"CreateFunction",
		"ExtractFunction",
		"QueryModelParallelism",
		"InputDataSize",
		"OutputDataSize",
		"InputDataShape/0",
		"InputDataShape/1",
		"OutputDataShape/0",
		"InputDataType",
		"OutputDataType",
	}, rt.calls)
}

func TestLoadFailureAtEachStep(t *testing.T) {
	steps := []string{
		"LoadModelFromMem",
		"CreateFunction",
		"ExtractFunction",
		"QueryModelParallelism",
		"InputDataSize",
		"OutputDataSize",
		"InputDataShape/0",
		"InputDataShape/1",
		"OutputDataShape/0",
		"InputDataType",
		"OutputDataType",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			rt := newFakeRuntime()
			rt.fail[step] = device.StatusCorrupt

			m, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt), quiet())
			require.Nil(t, m)
			require.ErrorIs(t, err, ErrInternal)

			var le *Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, int32(device.StatusCorrupt), le.Status)
			assert.Contains(t, err.Error(), "runtime status 3")

			assert.Zero(t, rt.models, "model leaked")
			assert.Zero(t, rt.functions, "function leaked")
			assert.Zero(t, rt.dims, "dimension array leaked")
		})
	}
}

func TestLoadReleasesFunctionBeforeModel(t *testing.T) {
	rt := newFakeRuntime()
	rt.fail["InputDataShape/1"] = device.StatusFailure

	_, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt), quiet())
	require.ErrorIs(t, err, ErrInternal)
	n := len(rt.calls)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, []string{"DestroyFunction", "UnloadModel"}, rt.calls[n-2:])
}

func TestLoadCountCrossCheck(t *testing.T) {
	rt := newFakeRuntime()
	rt.inputTypes = []device.DType{device.DTypeUint8}

	_, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt), quiet())
	require.ErrorIs(t, err, ErrInternal)
	assert.Contains(t, err.Error(), "disagrees")
	assert.Zero(t, rt.models)
	assert.Zero(t, rt.functions)
}

func TestLoadUnsupportedNativeType(t *testing.T) {
	rt := newFakeRuntime()
	rt.outputs[0].dtype = device.DTypeInt8

	_, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt), quiet())
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Zero(t, rt.models)
	assert.Zero(t, rt.functions)
}

func TestNewMissingFile(t *testing.T) {
	rt := newFakeRuntime()
	_, err := New(filepath.Join(t.TempDir(), "missing.cmf"), "subnet0", withDeviceRuntime(rt), quiet())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, rt.calls, "no runtime call may happen for a missing file")
}

func TestNewFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.cmf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	rt := newFakeRuntime()
	m, err := New(path, "subnet0", withDeviceRuntime(rt), quiet())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "LoadModel", rt.calls[0])
	assert.Equal(t, path, m.Source())
}

func TestUnknownRuntime(t *testing.T) {
	_, err := NewFromMemory([]byte("image"), "subnet0", WithRuntime("no-such-runtime"), quiet())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCloseReleasesOnce(t *testing.T) {
	rt := newFakeRuntime()
	m, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt), quiet())
	require.NoError(t, err)

	m.Close()
	m.Close()

	n := len(rt.calls)
	assert.Equal(t, []string{"DestroyFunction", "UnloadModel"}, rt.calls[n-2:])
	assert.Zero(t, rt.models)
	assert.Zero(t, rt.functions)
	assert.Zero(t, m.InputCount())

	err = m.SetHostInputLayout(layout.DataLayout{DType: layout.Float32, Order: layout.NCHW}, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = m.AdjustStackMemory()
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCloseLogsReleaseFailures(t *testing.T) {
	var buf bytes.Buffer
	rt := newFakeRuntime()
	rt.fail["DestroyFunction"] = device.StatusInvalidHandle
	rt.fail["UnloadModel"] = device.StatusFailure

	m, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	m.Close()

	out := buf.String()
	assert.Contains(t, out, "destroy function failed")
	assert.Contains(t, out, "unload model failed")
	assert.Contains(t, out, "id="+m.ID())
	n := len(rt.calls)
	assert.Equal(t, []string{"DestroyFunction", "UnloadModel"}, rt.calls[n-2:], "model must be unloaded even when function release fails")
}

func TestLoadWarnsOnApproximateShape(t *testing.T) {
	var buf bytes.Buffer
	rt := newFakeRuntime()
	rt.outputs[0].dims = []int32{1, 2, 3, 4, 5}

	m, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt),
		WithLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	type record struct {
		Level string  `json:"level"`
		Msg   string  `json:"msg"`
		ID    string  `json:"id"`
		Index float64 `json:"index"`
		Rank  float64 `json:"rank"`
		Dims  string  `json:"dims"`
	}
	var warns []record
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var r record
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		if r.Level == "WARN" {
			warns = append(warns, r)
		}
	}

	// Input 1 is rank 2 and output 0 is rank 5; input 0 is rank 4.
	require.Len(t, warns, 2)
	assert.True(t, strings.HasPrefix(warns[0].Msg, "input "))
	assert.Equal(t, float64(1), warns[0].Index)
	assert.Equal(t, float64(2), warns[0].Rank)
	assert.Equal(t, "(2,64)", warns[0].Dims)
	assert.True(t, strings.HasPrefix(warns[1].Msg, "output "))
	assert.Equal(t, float64(0), warns[1].Index)
	assert.Equal(t, float64(5), warns[1].Rank)
	assert.Equal(t, m.ID(), warns[1].ID)
}

func TestLoadWarnsOnDynamicDim(t *testing.T) {
	var buf bytes.Buffer
	rt := newFakeRuntime()
	rt.inputs[0].dims = []int32{-1, 1, 3, 10}

	m, err := NewFromMemory([]byte("image"), "subnet0", withDeviceRuntime(rt),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	assert.Contains(t, buf.String(), "level=WARN msg=\"input shape is not rank 4")
	assert.Contains(t, buf.String(), "index=0 rank=4")

	s, err := m.InputShape(0)
	require.NoError(t, err)
	assert.Equal(t, layout.Shape{N: 0, H: 1, W: 3, C: 10}, s)
	ex, err := m.InputShapeEx(0)
	require.NoError(t, err)
	assert.Equal(t, layout.ShapeEx{-1, 1, 3, 10}, ex)
}

func TestLoadSourceLoggedAtDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.cmf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	for name, load := range map[string]func(...Option) (*ModelLoader, error){
		"file":   func(opts ...Option) (*ModelLoader, error) { return New(path, "subnet0", opts...) },
		"memory": func(opts ...Option) (*ModelLoader, error) { return NewFromMemory([]byte("image"), "subnet0", opts...) },
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			m, err := load(withDeviceRuntime(newFakeRuntime()), WithLogger(slog.New(h)))
			require.NoError(t, err)
			m.Close()

			assert.Contains(t, buf.String(), "level=DEBUG msg=\"load model from "+name+"\"")
			assert.NotContains(t, buf.String(), "level=INFO msg=\"load model from")
		})
	}
}
