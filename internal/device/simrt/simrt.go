// Package simrt is a host-emulated device runtime over CMF files.
//
// It answers every device.Runtime query from the function table a compiler
// wrote into the model, keeps a process-wide stack configuration and counts
// live handles so leaks show up in tests.
package simrt

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/pkg/cmf"
)

// Name is the name simrt registers under.
const Name = "sim"

// DefaultStackMB is the initial device stack configuration.
const DefaultStackMB uint32 = 64

func init() {
	device.Register(Name, New())
}

type model struct {
	desc *cmf.Model
}

type function struct {
	// nil until ExtractFunction binds it.
	fn    *cmf.Function
	model device.Model
}

// Runtime implements device.Runtime.
type Runtime struct {
	mu        sync.Mutex
	next      uintptr
	models    map[device.Model]*model
	functions map[device.Function]*function
	dims      int
	stackMB   uint32
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithStackMB sets the initial stack configuration.
func WithStackMB(mb uint32) Option {
	return func(r *Runtime) { r.stackMB = mb }
}

// New returns an unregistered runtime with no models loaded.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		models:    make(map[device.Model]*model),
		functions: make(map[device.Function]*function),
		stackMB:   DefaultStackMB,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) Name() string { return Name }

// Live reports the number of loaded models, created functions and
// unreleased dimension arrays.
func (r *Runtime) Live() (models, functions, dims int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.models), len(r.functions), r.dims
}

func (r *Runtime) handle() uintptr {
	r.next++
	return r.next
}

func (r *Runtime) LoadModel(path string) (device.Model, device.Status) {
	cf, err := cmf.Open(path)
	if err != nil {
		return 0, statusFor(err)
	}
	defer func() { _ = cf.Close() }()
	return r.addModel(cf)
}

func (r *Runtime) LoadModelFromMem(image []byte) (device.Model, device.Status) {
	if len(image) == 0 {
		return 0, device.StatusFailure
	}
	cf, err := cmf.Parse(image)
	if err != nil {
		return 0, statusFor(err)
	}
	return r.addModel(cf)
}

func (r *Runtime) addModel(cf *cmf.File) (device.Model, device.Status) {
	desc, err := cf.Model()
	if err != nil {
		return 0, statusFor(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := device.Model(r.handle())
	r.models[h] = &model{desc: desc}
	return h, device.StatusSuccess
}

func (r *Runtime) UnloadModel(m device.Model) device.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m]; !ok {
		return device.StatusInvalidHandle
	}
	delete(r.models, m)
	return device.StatusSuccess
}

func (r *Runtime) CreateFunction() (device.Function, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := device.Function(r.handle())
	r.functions[h] = &function{}
	return h, device.StatusSuccess
}

func (r *Runtime) ExtractFunction(fn device.Function, m device.Model, name string) device.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.functions[fn]
	if !ok {
		return device.StatusInvalidHandle
	}
	md, ok := r.models[m]
	if !ok {
		return device.StatusInvalidHandle
	}
	desc, ok := md.desc.Function(name)
	if !ok {
		return device.StatusNoFunction
	}
	f.fn = desc
	f.model = m
	return device.StatusSuccess
}

func (r *Runtime) DestroyFunction(fn device.Function) device.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.functions[fn]; !ok {
		return device.StatusInvalidHandle
	}
	delete(r.functions, fn)
	return device.StatusSuccess
}

func (r *Runtime) QueryModelParallelism(m device.Model) (int, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, ok := r.models[m]
	if !ok {
		return 0, device.StatusInvalidHandle
	}
	return md.desc.Info.Parallelism, device.StatusSuccess
}

func (r *Runtime) QueryModelStackSize(m device.Model) (uint64, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, ok := r.models[m]
	if !ok {
		return 0, device.StatusInvalidHandle
	}
	return md.desc.Info.StackSizeMB, device.StatusSuccess
}

func (r *Runtime) StackMem() (uint32, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stackMB, device.StatusSuccess
}

func (r *Runtime) SetStackMem(sizeMB uint32) device.Status {
	if sizeMB == 0 {
		return device.StatusOutOfRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stackMB = sizeMB
	return device.StatusSuccess
}

// bound returns the extracted function behind fn.
func (r *Runtime) bound(fn device.Function) (*cmf.Function, device.Status) {
	f, ok := r.functions[fn]
	if !ok {
		return nil, device.StatusInvalidHandle
	}
	if f.fn == nil {
		return nil, device.StatusNoFunction
	}
	if _, ok := r.models[f.model]; !ok {
		// the owning model was unloaded underneath the function
		return nil, device.StatusInvalidHandle
	}
	return f.fn, device.StatusSuccess
}

func statusFor(err error) device.Status {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return device.StatusNotFound
	case errors.Is(err, cmf.ErrInvalidMagic),
		errors.Is(err, cmf.ErrCorruptFile),
		errors.Is(err, cmf.ErrMissingSection),
		errors.Is(err, cmf.ErrInvalidModel):
		return device.StatusCorrupt
	case errors.Is(err, cmf.ErrUnsupportedMajor):
		return device.StatusUnsupported
	default:
		return device.StatusFailure
	}
}
