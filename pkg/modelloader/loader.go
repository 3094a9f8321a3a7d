// Package modelloader opens compiled models and describes the tensor
// contract of one of their functions.
//
// A ModelLoader owns the device model and function handles. After loading it
// exposes, per input and output, the device byte size, the native layout,
// the rank-4 and arbitrary-rank shapes and a host layout the application may
// override. It never converts tensor data.
//
// A ModelLoader does no internal locking. Reads may run concurrently with
// each other and with writes to different indices; writes to the same index
// and Close must be serialized by the caller.
package modelloader

import (
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/internal/logger"
	"github.com/samcharles93/modelgate/internal/modelstate"
	"github.com/samcharles93/modelgate/pkg/layout"
)

const (
	// DefaultRuntime is the device runtime used when none is configured.
	DefaultRuntime = "sim"
	// DefaultStackMargin is added to a model's stack requirement, in MB,
	// when AdjustStackMemory raises the device configuration.
	DefaultStackMargin uint32 = 50
)

// defaultHostLayout is what compiled models assume host buffers look like.
var defaultHostLayout = layout.DataLayout{DType: layout.Float32, Order: layout.NHWC}

// ModelLoader is a loaded model function. Create it with New or
// NewFromMemory and release it with Close.
type ModelLoader struct {
	d *loaderPrivate
}

type loaderPrivate struct {
	st          modelstate.State
	hasModel    bool
	hasFunction bool
	closed      bool

	id          string
	function    string
	source      string
	stackMargin uint32
	log         logger.Logger
}

func init() {
	modelstate.SetUnwrap(func(h any) *modelstate.State {
		m, ok := h.(*ModelLoader)
		if !ok || m == nil || m.d == nil || m.d.closed {
			return nil
		}
		return &m.d.st
	})
}

// Option configures New and NewFromMemory.
type Option func(*options)

type options struct {
	runtimeName string
	runtime     device.Runtime
	log         logger.Logger
	stackMargin uint32
}

// WithRuntime selects a registered device runtime by name.
func WithRuntime(name string) Option {
	return func(o *options) { o.runtimeName = name }
}

// WithLogger sets the logger used for load, layout and teardown diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = logger.FromSlog(l) }
}

// WithStackMargin sets the margin, in MB, AdjustStackMemory adds on top of
// the model's requirement.
func WithStackMargin(mb uint32) Option {
	return func(o *options) { o.stackMargin = mb }
}

func withDeviceRuntime(rt device.Runtime) Option {
	return func(o *options) { o.runtime = rt }
}

func buildOptions(opts []Option) options {
	o := options{
		runtimeName: DefaultRuntime,
		stackMargin: DefaultStackMargin,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Default()
	}
	return o
}

func (o options) resolveRuntime(op string) (device.Runtime, error) {
	if o.runtime != nil {
		return o.runtime, nil
	}
	rt, ok := device.Lookup(o.runtimeName)
	if !ok {
		return nil, newError(ErrUnavailable, op, "device runtime %q is not registered (available: %v)", o.runtimeName, device.Runtimes())
	}
	return rt, nil
}

// New loads function from the compiled model at path.
func New(path, function string, opts ...Option) (*ModelLoader, error) {
	const op = "load"
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(ErrUnavailable, op, "model file %q is not readable: %v", path, err)
	}
	_ = f.Close()

	o := buildOptions(opts)
	rt, err := o.resolveRuntime(op)
	if err != nil {
		return nil, err
	}
	o.log.Debug("load model from file", "path", path, "runtime", rt.Name())
	return load(rt, o, path, function, func() (device.Model, device.Status) {
		return rt.LoadModel(path)
	})
}

// NewFromMemory loads function from an in-memory compiled model image.
// The image is not retained after NewFromMemory returns.
func NewFromMemory(image []byte, function string, opts ...Option) (*ModelLoader, error) {
	const op = "load"
	o := buildOptions(opts)
	rt, err := o.resolveRuntime(op)
	if err != nil {
		return nil, err
	}
	o.log.Debug("load model from memory", "bytes", len(image), "runtime", rt.Name())
	return load(rt, o, "memory", function, func() (device.Model, device.Status) {
		return rt.LoadModelFromMem(image)
	})
}

func load(rt device.Runtime, o options, source, function string, loadModel func() (device.Model, device.Status)) (*ModelLoader, error) {
	id := uuid.NewString()
	d := &loaderPrivate{
		id:          id,
		function:    function,
		source:      source,
		stackMargin: o.stackMargin,
		log:         o.log.With("id", id, "function", function),
	}
	d.st.Runtime = rt

	model, st := loadModel()
	if !st.OK() {
		return nil, statusError("load", "load model from "+source, st)
	}
	d.st.Model = model
	d.hasModel = true

	if err := d.loadFunction(); err != nil {
		d.release()
		return nil, err
	}
	d.log.Info("model loaded",
		"source", source,
		"inputs", len(d.st.Inputs),
		"outputs", len(d.st.Outputs),
		"parallelism", d.st.Parallelism)
	return &ModelLoader{d: d}, nil
}

func (d *loaderPrivate) loadFunction() error {
	const op = "load"
	rt := d.st.Runtime

	fn, st := rt.CreateFunction()
	if !st.OK() {
		return statusError(op, "create function", st)
	}
	d.st.Function = fn
	d.hasFunction = true

	if st := rt.ExtractFunction(fn, d.st.Model, d.function); !st.OK() {
		return statusError(op, "extract function "+d.function, st)
	}
	parallelism, st := rt.QueryModelParallelism(d.st.Model)
	if !st.OK() {
		return statusError(op, "query model parallelism", st)
	}
	d.log.Debug("function extracted", "parallelism", parallelism)

	inputs, outputs, err := buildTable(rt, fn, d.log)
	if err != nil {
		return err
	}
	d.st.Parallelism = parallelism
	d.st.Inputs = inputs
	d.st.Outputs = outputs
	return nil
}

// release destroys the function and then the model. Failures are logged.
func (d *loaderPrivate) release() {
	rt := d.st.Runtime
	if d.hasFunction {
		if st := rt.DestroyFunction(d.st.Function); !st.OK() {
			d.log.Warn("destroy function failed", "status", int32(st), "reason", st.String())
		}
		d.hasFunction = false
	}
	if d.hasModel {
		if st := rt.UnloadModel(d.st.Model); !st.OK() {
			d.log.Error("unload model failed", "status", int32(st), "reason", st.String())
		}
		d.hasModel = false
	}
}

// Close releases the device function and model. It never fails; release
// errors are logged. Close is idempotent.
func (m *ModelLoader) Close() {
	if m == nil || m.d == nil || m.d.closed {
		return
	}
	m.d.log.Info("destroy function and unload model")
	m.d.release()
	m.d.closed = true
	m.d.st.Inputs = nil
	m.d.st.Outputs = nil
}

// ID returns the unique id of this handle, as used in logs.
func (m *ModelLoader) ID() string { return m.d.id }

// FunctionName returns the name of the loaded entry point.
func (m *ModelLoader) FunctionName() string { return m.d.function }

// Source returns the model path, or "memory" for in-memory images.
func (m *ModelLoader) Source() string { return m.d.source }

// ModelParallelism returns the parallelism the model was compiled for.
func (m *ModelLoader) ModelParallelism() int { return m.d.st.Parallelism }
