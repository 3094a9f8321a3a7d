package modelloader

import (
	"slices"

	"github.com/samcharles93/modelgate/internal/modelstate"
	"github.com/samcharles93/modelgate/pkg/layout"
)

// InputCount returns the number of function inputs.
func (m *ModelLoader) InputCount() int { return len(m.d.st.Inputs) }

// OutputCount returns the number of function outputs.
func (m *ModelLoader) OutputCount() int { return len(m.d.st.Outputs) }

// SetHostInputLayout declares how the host presents input index.
// Host buffers must be float32; the order must be NCHW or NHWC.
func (m *ModelLoader) SetHostInputLayout(l layout.DataLayout, index int) error {
	return m.setHostLayout("SetHostInputLayout", "input", m.d.st.Inputs, l, index)
}

// SetHostOutputLayout declares how the host expects output index.
func (m *ModelLoader) SetHostOutputLayout(l layout.DataLayout, index int) error {
	return m.setHostLayout("SetHostOutputLayout", "output", m.d.st.Outputs, l, index)
}

func (m *ModelLoader) setHostLayout(op, kind string, rows []modelstate.Row, l layout.DataLayout, index int) error {
	if m.d.closed {
		return newError(ErrUnavailable, op, "model is closed")
	}
	if index < 0 || index >= len(rows) {
		return newError(ErrInvalidArgument, op, "data index %d out of range [0, %d)", index, len(rows))
	}
	devType, err := toDeviceType(l.DType)
	if err != nil {
		return err
	}
	if l.DType != layout.Float32 {
		return newError(ErrInvalidArgument, op, "only float32 is supported for host layout, got %s", l.DType)
	}
	if _, err := toDeviceOrder(l.Order); err != nil {
		return err
	}

	rows[index].Host = l
	m.d.log.Debug("set host "+kind+" layout",
		"index", index, "dtype", l.DType.String(), "device_dtype", devType.String(), "order", l.Order.String())
	return nil
}

// HostInputLayout returns the host layout of input index, or the zero
// layout when index is out of range.
func (m *ModelLoader) HostInputLayout(index int) layout.DataLayout {
	if r := m.d.st.Input(index); r != nil {
		return r.Host
	}
	return layout.DataLayout{}
}

// HostOutputLayout returns the host layout of output index, or the zero
// layout when index is out of range.
func (m *ModelLoader) HostOutputLayout(index int) layout.DataLayout {
	if r := m.d.st.Output(index); r != nil {
		return r.Host
	}
	return layout.DataLayout{}
}

// InputShapes returns the rank-4 shapes of all inputs.
func (m *ModelLoader) InputShapes() []layout.Shape { return shapes(m.d.st.Inputs) }

// OutputShapes returns the rank-4 shapes of all outputs.
func (m *ModelLoader) OutputShapes() []layout.Shape { return shapes(m.d.st.Outputs) }

func shapes(rows []modelstate.Row) []layout.Shape {
	out := make([]layout.Shape, len(rows))
	for i := range rows {
		out[i] = rows[i].Shape
	}
	return out
}

// InputShape returns the rank-4 shape of input index.
func (m *ModelLoader) InputShape(index int) (layout.Shape, error) {
	r := m.d.st.Input(index)
	if r == nil {
		return layout.Shape{}, newError(ErrInvalidArgument, "InputShape", "input shape index %d out of range", index)
	}
	return r.Shape, nil
}

// OutputShape returns the rank-4 shape of output index.
func (m *ModelLoader) OutputShape(index int) (layout.Shape, error) {
	r := m.d.st.Output(index)
	if r == nil {
		return layout.Shape{}, newError(ErrInvalidArgument, "OutputShape", "output shape index %d out of range", index)
	}
	return r.Shape, nil
}

// InputShapeEx returns a copy of the device-reported shape of input index.
func (m *ModelLoader) InputShapeEx(index int) (layout.ShapeEx, error) {
	r := m.d.st.Input(index)
	if r == nil {
		return nil, newError(ErrInvalidArgument, "InputShapeEx", "input shape index %d out of range", index)
	}
	return slices.Clone(r.ShapeEx), nil
}

// OutputShapeEx returns a copy of the device-reported shape of output index.
func (m *ModelLoader) OutputShapeEx(index int) (layout.ShapeEx, error) {
	r := m.d.st.Output(index)
	if r == nil {
		return nil, newError(ErrInvalidArgument, "OutputShapeEx", "output shape index %d out of range", index)
	}
	return slices.Clone(r.ShapeEx), nil
}

// InputBatchAlignSize returns the device byte size of one sample of input
// index: the byte size divided by the batch dimension. It returns 0 when
// index is out of range or the batch dimension is not positive.
func (m *ModelLoader) InputBatchAlignSize(index int) int64 {
	return batchAlignSize(m.d.st.Input(index))
}

// OutputBatchAlignSize is InputBatchAlignSize for outputs.
func (m *ModelLoader) OutputBatchAlignSize(index int) int64 {
	return batchAlignSize(m.d.st.Output(index))
}

func batchAlignSize(r *modelstate.Row) int64 {
	if r == nil {
		return 0
	}
	batch := r.ShapeEx.Batch()
	if batch <= 0 {
		return 0
	}
	return r.ByteSize / batch
}
