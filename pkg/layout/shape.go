package layout

import (
	"math"
	"strconv"
	"strings"
)

// Shape is the rank-4 convenience view of a tensor shape.
//
// For tensors whose rank is not 4 it is only an approximation: missing
// trailing dimensions are 1 and dimensions past the fourth are dropped.
// ShapeEx is authoritative.
type Shape struct {
	N uint32 `json:"n" yaml:"n"`
	H uint32 `json:"h" yaml:"h"`
	W uint32 `json:"w" yaml:"w"`
	C uint32 `json:"c" yaml:"c"`
}

// FromDims builds a Shape from the leading four values of dims, padding
// missing positions with 1. Dimensions that do not fit a uint32, such as
// negative (dynamic) ones, become 0. The boolean reports whether the Shape
// describes dims exactly: rank 4 and every value in range.
func FromDims(dims []int64) (Shape, bool) {
	v := [4]uint32{1, 1, 1, 1}
	exact := len(dims) == 4
	for i := 0; i < len(dims) && i < 4; i++ {
		if dims[i] < 0 || dims[i] > math.MaxUint32 {
			v[i] = 0
			exact = false
			continue
		}
		v[i] = uint32(dims[i])
	}
	return Shape{N: v[0], H: v[1], W: v[2], C: v[3]}, exact
}

// Count returns N*H*W*C.
func (s Shape) Count() uint64 {
	return uint64(s.N) * uint64(s.H) * uint64(s.W) * uint64(s.C)
}

func (s Shape) String() string {
	return "(" + strconv.FormatUint(uint64(s.N), 10) +
		"," + strconv.FormatUint(uint64(s.H), 10) +
		"," + strconv.FormatUint(uint64(s.W), 10) +
		"," + strconv.FormatUint(uint64(s.C), 10) + ")"
}

// ShapeEx is a tensor shape of arbitrary rank, as reported by the device.
// ShapeEx[0] is the batch dimension.
type ShapeEx []int64

// Rank returns the number of dimensions.
func (s ShapeEx) Rank() int { return len(s) }

// Batch returns the leading (batch) dimension, or 0 for an empty shape.
func (s ShapeEx) Batch() int64 {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Count returns the product of all dimensions, or 0 for an empty shape.
func (s ShapeEx) Count() int64 {
	if len(s) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

func (s ShapeEx) Clone() ShapeEx {
	if s == nil {
		return nil
	}
	out := make(ShapeEx, len(s))
	copy(out, s)
	return out
}

func (s ShapeEx) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return "(" + strings.Join(parts, ",") + ")"
}
