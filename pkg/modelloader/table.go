package modelloader

import (
	"fmt"

	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/internal/logger"
	"github.com/samcharles93/modelgate/internal/modelstate"
	"github.com/samcharles93/modelgate/pkg/layout"
)

// ioQueries binds the per-direction runtime queries.
type ioQueries struct {
	kind  string
	sizes func(device.Function) ([]int64, device.Status)
	shape func(device.Function, int) (device.DimArray, device.Status)
	types func(device.Function) ([]device.DType, device.Status)
}

// buildTable queries the runtime for the IO contract of fn. Sizes come
// first, then shapes, then element types, each for inputs before outputs.
// Nothing is returned unless every query succeeds.
func buildTable(rt device.Runtime, fn device.Function, log logger.Logger) (inputs, outputs []modelstate.Row, err error) {
	in := ioQueries{kind: "input", sizes: rt.InputDataSize, shape: rt.InputDataShape, types: rt.InputDataType}
	out := ioQueries{kind: "output", sizes: rt.OutputDataSize, shape: rt.OutputDataShape, types: rt.OutputDataType}

	inputs, err = querySizes(in, fn)
	if err != nil {
		return nil, nil, err
	}
	outputs, err = querySizes(out, fn)
	if err != nil {
		return nil, nil, err
	}

	if err := queryShapes(in, fn, inputs, log); err != nil {
		return nil, nil, err
	}
	if err := queryShapes(out, fn, outputs, log); err != nil {
		return nil, nil, err
	}

	// Device tensors are always NHWC whatever the model's logical layout.
	nativeOrder, err := fromDeviceOrder(device.OrderNHWC)
	if err != nil {
		return nil, nil, err
	}
	if err := queryTypes(in, fn, inputs, nativeOrder); err != nil {
		return nil, nil, err
	}
	if err := queryTypes(out, fn, outputs, nativeOrder); err != nil {
		return nil, nil, err
	}

	for i := range inputs {
		inputs[i].Host = defaultHostLayout
	}
	for i := range outputs {
		outputs[i].Host = defaultHostLayout
	}
	return inputs, outputs, nil
}

func querySizes(q ioQueries, fn device.Function) ([]modelstate.Row, error) {
	sizes, st := q.sizes(fn)
	if !st.OK() {
		return nil, statusError("load", "get "+q.kind+" data size", st)
	}
	rows := make([]modelstate.Row, len(sizes))
	for i, size := range sizes {
		rows[i].ByteSize = size
	}
	return rows, nil
}

func queryShapes(q ioQueries, fn device.Function, rows []modelstate.Row, log logger.Logger) error {
	for i := range rows {
		ex, err := copyShape(q, fn, i)
		if err != nil {
			return err
		}
		shape, exact := layout.FromDims(ex)
		if !exact {
			log.Warn(q.kind+" shape is not rank 4 with fixed dims, Shape is approximate, use ShapeEx instead",
				"index", i, "rank", len(ex), "dims", ex.String())
		}
		rows[i].ShapeEx = ex
		rows[i].Shape = shape
	}
	return nil
}

// copyShape copies a runtime-owned dimension array and releases it on every
// path.
func copyShape(q ioQueries, fn device.Function, index int) (layout.ShapeEx, error) {
	arr, st := q.shape(fn, index)
	if arr != nil {
		defer arr.Release()
	}
	if !st.OK() {
		return nil, statusError("load", fmt.Sprintf("get %s data shape for index %d", q.kind, index), st)
	}
	if arr == nil {
		return nil, newError(ErrInternal, "load", "runtime returned no shape for %s %d", q.kind, index)
	}
	dims := arr.Dims()
	ex := make(layout.ShapeEx, len(dims))
	for i, d := range dims {
		ex[i] = int64(d)
	}
	return ex, nil
}

func queryTypes(q ioQueries, fn device.Function, rows []modelstate.Row, order layout.DimOrder) error {
	types, st := q.types(fn)
	if !st.OK() {
		return statusError("load", "get "+q.kind+" data type", st)
	}
	if len(types) != len(rows) {
		return newError(ErrInternal, "load",
			"%s count from type query (%d) disagrees with size query (%d)", q.kind, len(types), len(rows))
	}
	for i, t := range types {
		dt, err := fromDeviceType(t)
		if err != nil {
			return err
		}
		rows[i].Native = layout.DataLayout{DType: dt, Order: order}
	}
	return nil
}
