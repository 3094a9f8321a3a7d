// Package layout defines the host-facing tensor description types: element
// types, dimension orders and shapes.
//
// These types never reference a device runtime. Translation to and from the
// runtime's native enumerations happens in package modelloader.
package layout

import (
	"fmt"
	"strings"
)

// DataType is a portable tensor element type.
type DataType int

const (
	Invalid DataType = iota
	UInt8
	Float32
	Float16
	Int16
	Int32
)

// Size returns the byte size of one element, or 0 for Invalid.
func (dt DataType) Size() int {
	switch dt {
	case UInt8:
		return 1
	case Float16, Int16:
		return 2
	case Float32, Int32:
		return 4
	default:
		return 0
	}
}

func (dt DataType) String() string {
	switch dt {
	case UInt8:
		return "uint8"
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("DataType(%d)", int(dt))
	}
}

func (dt DataType) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

func (dt *DataType) UnmarshalText(text []byte) error {
	v, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*dt = v
	return nil
}

// ParseDataType parses a case-insensitive element type name.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uint8", "u8":
		return UInt8, nil
	case "float32", "f32":
		return Float32, nil
	case "float16", "f16", "half":
		return Float16, nil
	case "int16", "i16":
		return Int16, nil
	case "int32", "i32":
		return Int32, nil
	case "invalid":
		return Invalid, nil
	default:
		return Invalid, fmt.Errorf("layout: unknown data type %q", s)
	}
}

// DimOrder is the order in which tensor dimensions are laid out in memory.
type DimOrder int

const (
	OrderUnknown DimOrder = iota
	NCHW
	NHWC
	HWCN
	TNC
	NTC
)

func (o DimOrder) String() string {
	switch o {
	case NCHW:
		return "nchw"
	case NHWC:
		return "nhwc"
	case HWCN:
		return "hwcn"
	case TNC:
		return "tnc"
	case NTC:
		return "ntc"
	case OrderUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("DimOrder(%d)", int(o))
	}
}

func (o DimOrder) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *DimOrder) UnmarshalText(text []byte) error {
	v, err := ParseDimOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseDimOrder parses a case-insensitive dimension order name.
func ParseDimOrder(s string) (DimOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nchw":
		return NCHW, nil
	case "nhwc":
		return NHWC, nil
	case "hwcn":
		return HWCN, nil
	case "tnc":
		return TNC, nil
	case "ntc":
		return NTC, nil
	case "unknown":
		return OrderUnknown, nil
	default:
		return OrderUnknown, fmt.Errorf("layout: unknown dimension order %q", s)
	}
}

// DataLayout pairs an element type with a dimension order.
// The zero value describes no tensor at all.
type DataLayout struct {
	DType DataType `json:"dtype" yaml:"dtype"`
	Order DimOrder `json:"order" yaml:"order"`
}

func (l DataLayout) String() string {
	return l.DType.String() + "/" + l.Order.String()
}

// IsZero reports whether l is the zero layout.
func (l DataLayout) IsZero() bool {
	return l == DataLayout{}
}
