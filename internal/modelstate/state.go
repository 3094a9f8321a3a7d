// Package modelstate holds the private state behind a loaded model: the
// device handles and the IO descriptor table.
//
// The public handle in pkg/modelloader owns a State and registers an unwrap
// hook so that trusted packages inside this module (the execution engine
// accessor) can reach it without widening the public API.
package modelstate

import (
	"sync/atomic"

	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/pkg/layout"
)

// Row describes one input or output tensor.
type Row struct {
	// ByteSize is the device-reported size, including padding.
	ByteSize int64
	Native   layout.DataLayout
	Host     layout.DataLayout
	Shape    layout.Shape
	ShapeEx  layout.ShapeEx
}

// State is owned exclusively by one loaded model.
type State struct {
	Runtime     device.Runtime
	Model       device.Model
	Function    device.Function
	Parallelism int

	Inputs  []Row
	Outputs []Row
}

// Input returns the input row at index, or nil when out of range.
func (s *State) Input(index int) *Row {
	if s == nil || index < 0 || index >= len(s.Inputs) {
		return nil
	}
	return &s.Inputs[index]
}

// Output returns the output row at index, or nil when out of range.
func (s *State) Output(index int) *Row {
	if s == nil || index < 0 || index >= len(s.Outputs) {
		return nil
	}
	return &s.Outputs[index]
}

var unwrap atomic.Pointer[func(any) *State]

// SetUnwrap installs the function that extracts a State from a public
// handle. It is called once by pkg/modelloader.
func SetUnwrap(fn func(any) *State) {
	unwrap.Store(&fn)
}

// Of returns the State behind handle h, or nil if h is not a loaded model.
func Of(h any) *State {
	fn := unwrap.Load()
	if fn == nil {
		return nil
	}
	return (*fn)(h)
}
