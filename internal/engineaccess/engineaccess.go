// Package engineaccess exposes the parts of a loaded model that only the
// execution engine needs: the device byte sizes, the native layouts and the
// raw device handles.
package engineaccess

import (
	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/internal/modelstate"
	"github.com/samcharles93/modelgate/pkg/layout"
	"github.com/samcharles93/modelgate/pkg/modelloader"
)

// Accessor reads the private state of one ModelLoader. It is valid until
// the loader is closed.
type Accessor struct {
	m  *modelloader.ModelLoader
	st *modelstate.State
}

// New returns an accessor for m, or false when m is nil or closed.
func New(m *modelloader.ModelLoader) (*Accessor, bool) {
	st := modelstate.Of(m)
	if st == nil {
		return nil, false
	}
	return &Accessor{m: m, st: st}, true
}

// InputDataSize returns the device byte size of input index, including
// padding, or 0 when index is out of range.
func (a *Accessor) InputDataSize(index int) int64 {
	if r := a.st.Input(index); r != nil {
		return r.ByteSize
	}
	return 0
}

// OutputDataSize returns the device byte size of output index, or 0.
func (a *Accessor) OutputDataSize(index int) int64 {
	if r := a.st.Output(index); r != nil {
		return r.ByteSize
	}
	return 0
}

// NativeInputLayout returns the device layout of input index, or the zero
// layout when index is out of range.
func (a *Accessor) NativeInputLayout(index int) layout.DataLayout {
	if r := a.st.Input(index); r != nil {
		return r.Native
	}
	return layout.DataLayout{}
}

// NativeOutputLayout is NativeInputLayout for outputs.
func (a *Accessor) NativeOutputLayout(index int) layout.DataLayout {
	if r := a.st.Output(index); r != nil {
		return r.Native
	}
	return layout.DataLayout{}
}

// Function returns the device function handle.
func (a *Accessor) Function() device.Function { return a.st.Function }

// Model returns the device model handle.
func (a *Accessor) Model() device.Model { return a.st.Model }

// Runtime returns the device runtime that owns the handles.
func (a *Accessor) Runtime() device.Runtime { return a.st.Runtime }

// Tensor is the engine-facing description of one input or output.
type Tensor struct {
	Index      int               `json:"index" yaml:"index"`
	ByteSize   int64             `json:"byte_size" yaml:"byte_size"`
	BatchAlign int64             `json:"batch_align" yaml:"batch_align"`
	Native     layout.DataLayout `json:"native" yaml:"native"`
	Host       layout.DataLayout `json:"host" yaml:"host"`
	Shape      layout.Shape      `json:"shape" yaml:"shape"`
	ShapeEx    layout.ShapeEx    `json:"shape_ex" yaml:"shape_ex"`
}

// Description is a point-in-time snapshot of a loaded function.
type Description struct {
	ID          string   `json:"id" yaml:"id"`
	Function    string   `json:"function" yaml:"function"`
	Source      string   `json:"source" yaml:"source"`
	Runtime     string   `json:"runtime" yaml:"runtime"`
	Parallelism int      `json:"parallelism" yaml:"parallelism"`
	Inputs      []Tensor `json:"inputs" yaml:"inputs"`
	Outputs     []Tensor `json:"outputs" yaml:"outputs"`
}

// Describe snapshots the IO table. The result shares no memory with the
// loader.
func (a *Accessor) Describe() Description {
	d := Description{
		ID:          a.m.ID(),
		Function:    a.m.FunctionName(),
		Source:      a.m.Source(),
		Runtime:     a.st.Runtime.Name(),
		Parallelism: a.st.Parallelism,
		Inputs:      make([]Tensor, len(a.st.Inputs)),
		Outputs:     make([]Tensor, len(a.st.Outputs)),
	}
	for i := range a.st.Inputs {
		d.Inputs[i] = describe(i, &a.st.Inputs[i], a.m.InputBatchAlignSize(i))
	}
	for i := range a.st.Outputs {
		d.Outputs[i] = describe(i, &a.st.Outputs[i], a.m.OutputBatchAlignSize(i))
	}
	return d
}

func describe(i int, r *modelstate.Row, align int64) Tensor {
	return Tensor{
		Index:      i,
		ByteSize:   r.ByteSize,
		BatchAlign: align,
		Native:     r.Native,
		Host:       r.Host,
		Shape:      r.Shape,
		ShapeEx:    r.ShapeEx.Clone(),
	}
}
