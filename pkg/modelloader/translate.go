package modelloader

import (
	"github.com/samcharles93/modelgate/internal/device"
	"github.com/samcharles93/modelgate/pkg/layout"
)

func toDeviceType(t layout.DataType) (device.DType, error) {
	switch t {
	case layout.UInt8:
		return device.DTypeUint8, nil
	case layout.Float32:
		return device.DTypeFloat32, nil
	case layout.Float16:
		return device.DTypeFloat16, nil
	case layout.Int16:
		return device.DTypeInt16, nil
	case layout.Int32:
		return device.DTypeInt32, nil
	default:
		return device.DTypeInvalid, newError(ErrUnsupported, "translate", "unsupported data type %s", t)
	}
}

func fromDeviceType(t device.DType) (layout.DataType, error) {
	switch t {
	case device.DTypeUint8:
		return layout.UInt8, nil
	case device.DTypeFloat32:
		return layout.Float32, nil
	case device.DTypeFloat16:
		return layout.Float16, nil
	case device.DTypeInt16:
		return layout.Int16, nil
	case device.DTypeInt32:
		return layout.Int32, nil
	default:
		return layout.Invalid, newError(ErrUnsupported, "translate", "unsupported device data type %s", t)
	}
}

func toDeviceOrder(o layout.DimOrder) (device.DimOrder, error) {
	switch o {
	case layout.NCHW:
		return device.OrderNCHW, nil
	case layout.NHWC:
		return device.OrderNHWC, nil
	default:
		return 0, newError(ErrUnsupported, "translate", "unsupported dimension order %s", o)
	}
}

func fromDeviceOrder(o device.DimOrder) (layout.DimOrder, error) {
	switch o {
	case device.OrderNCHW:
		return layout.NCHW, nil
	case device.OrderNHWC:
		return layout.NHWC, nil
	default:
		return layout.OrderUnknown, newError(ErrUnsupported, "translate", "unsupported device dimension order 0x%x", int32(o))
	}
}
