package simrt

import (
	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/pkg/cmf"
)

func (r *Runtime) InputDataSize(fn device.Function) ([]int64, device.Status) {
	return r.sizes(fn, func(f *cmf.Function) []cmf.Tensor { return f.Inputs })
}

func (r *Runtime) OutputDataSize(fn device.Function) ([]int64, device.Status) {
	return r.sizes(fn, func(f *cmf.Function) []cmf.Tensor { return f.Outputs })
}

func (r *Runtime) InputDataShape(fn device.Function, index int) (device.DimArray, device.Status) {
	return r.shape(fn, index, func(f *cmf.Function) []cmf.Tensor { return f.Inputs })
}

func (r *Runtime) OutputDataShape(fn device.Function, index int) (device.DimArray, device.Status) {
	return r.shape(fn, index, func(f *cmf.Function) []cmf.Tensor { return f.Outputs })
}

func (r *Runtime) InputDataType(fn device.Function) ([]device.DType, device.Status) {
	return r.types(fn, func(f *cmf.Function) []cmf.Tensor { return f.Inputs })
}

func (r *Runtime) OutputDataType(fn device.Function) ([]device.DType, device.Status) {
	return r.types(fn, func(f *cmf.Function) []cmf.Tensor { return f.Outputs })
}

func (r *Runtime) sizes(fn device.Function, pick func(*cmf.Function) []cmf.Tensor) ([]int64, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, st := r.bound(fn)
	if !st.OK() {
		return nil, st
	}
	tensors := pick(f)
	out := make([]int64, len(tensors))
	for i, t := range tensors {
		out[i] = t.ByteSize
		if out[i] == 0 {
			out[i] = t.NaturalSize()
		}
	}
	return out, device.StatusSuccess
}

func (r *Runtime) types(fn device.Function, pick func(*cmf.Function) []cmf.Tensor) ([]device.DType, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, st := r.bound(fn)
	if !st.OK() {
		return nil, st
	}
	tensors := pick(f)
	out := make([]device.DType, len(tensors))
	for i, t := range tensors {
		// CMF element codes are device codes.
		out[i] = device.DType(t.Elem)
	}
	return out, device.StatusSuccess
}

func (r *Runtime) shape(fn device.Function, index int, pick func(*cmf.Function) []cmf.Tensor) (device.DimArray, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, st := r.bound(fn)
	if !st.OK() {
		return nil, st
	}
	tensors := pick(f)
	if index < 0 || index >= len(tensors) {
		return nil, device.StatusOutOfRange
	}
	dims := make([]int32, len(tensors[index].Dims))
	copy(dims, tensors[index].Dims)
	r.dims++
	return &dimArray{rt: r, dims: dims}, device.StatusSuccess
}

// dimArray is a shape buffer the caller must release.
type dimArray struct {
	rt       *Runtime
	dims     []int32
	released bool
}

func (a *dimArray) Dims() []int32 { return a.dims }

func (a *dimArray) Release() {
	if a.released {
		return
	}
	a.released = true
	a.dims = nil
	a.rt.mu.Lock()
	a.rt.dims--
	a.rt.mu.Unlock()
}
