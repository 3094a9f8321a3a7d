// Package device declares the boundary with an accelerator runtime.
//
// A Runtime parses compiled models, extracts functions and answers
// per-input/output metadata queries. Every call reports a Status code rather
// than an error so the caller decides how failures are classified.
package device

import (
	"fmt"
	"sort"
	"sync"
)

// Status is a runtime return code. StatusSuccess is the only success value.
type Status int32

const (
	StatusSuccess       Status = 0
	StatusFailure       Status = 1
	StatusNotFound      Status = 2
	StatusCorrupt       Status = 3
	StatusInvalidHandle Status = 4
	StatusOutOfRange    Status = 5
	StatusNoFunction    Status = 6
	StatusNoMemory      Status = 7
	StatusUnsupported   Status = 8
)

func (s Status) OK() bool { return s == StatusSuccess }

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusNotFound:
		return "not found"
	case StatusCorrupt:
		return "corrupt model"
	case StatusInvalidHandle:
		return "invalid handle"
	case StatusOutOfRange:
		return "index out of range"
	case StatusNoFunction:
		return "function not found"
	case StatusNoMemory:
		return "out of memory"
	case StatusUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("status %d", int32(s))
	}
}

// DType is a native element type code.
type DType int32

const (
	DTypeInvalid DType = 0
	DTypeFloat16 DType = 0x12
	DTypeFloat32 DType = 0x13
	DTypeFloat64 DType = 0x14
	DTypeInt8    DType = 0x21
	DTypeInt16   DType = 0x22
	DTypeInt32   DType = 0x23
	DTypeUint8   DType = 0x31
	DTypeBool    DType = 0x41
)

func (t DType) String() string {
	switch t {
	case DTypeFloat16:
		return "FLOAT16"
	case DTypeFloat32:
		return "FLOAT32"
	case DTypeFloat64:
		return "FLOAT64"
	case DTypeInt8:
		return "INT8"
	case DTypeInt16:
		return "INT16"
	case DTypeInt32:
		return "INT32"
	case DTypeUint8:
		return "UINT8"
	case DTypeBool:
		return "BOOL"
	case DTypeInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("DType(0x%x)", int32(t))
	}
}

// DimOrder is a native dimension order code. Device tensors are always
// reported as OrderNHWC.
type DimOrder int32

const (
	OrderNCHW DimOrder = 0x01020304
	OrderNHWC DimOrder = 0x01030402
)

// Model and Function are opaque handles owned by a Runtime.
type (
	Model    uintptr
	Function uintptr
)

// DimArray is a runtime-allocated dimension array. The caller must Release
// it once the values have been copied out.
type DimArray interface {
	Dims() []int32
	Release()
}

// Runtime is an accelerator runtime.
type Runtime interface {
	Name() string

	LoadModel(path string) (Model, Status)
	LoadModelFromMem(image []byte) (Model, Status)
	UnloadModel(m Model) Status

	CreateFunction() (Function, Status)
	ExtractFunction(fn Function, m Model, name string) Status
	DestroyFunction(fn Function) Status

	QueryModelParallelism(m Model) (int, Status)
	QueryModelStackSize(m Model) (uint64, Status)

	InputDataSize(fn Function) ([]int64, Status)
	OutputDataSize(fn Function) ([]int64, Status)
	InputDataShape(fn Function, index int) (DimArray, Status)
	OutputDataShape(fn Function, index int) (DimArray, Status)
	InputDataType(fn Function) ([]DType, Status)
	OutputDataType(fn Function) ([]DType, Status)

	// StackMem and SetStackMem read and write the configured device
	// stack size in MB.
	StackMem() (uint32, Status)
	SetStackMem(sizeMB uint32) Status
}

var (
	runtimesMu sync.RWMutex
	runtimes   = make(map[string]Runtime)
)

// Register makes a runtime available by name. It panics if rt is nil or the
// name is already taken.
func Register(name string, rt Runtime) {
	runtimesMu.Lock()
	defer runtimesMu.Unlock()
	if rt == nil {
		panic("device: Register runtime is nil")
	}
	if _, dup := runtimes[name]; dup {
		panic("device: Register called twice for runtime " + name)
	}
	runtimes[name] = rt
}

// Lookup returns the runtime registered under name.
func Lookup(name string) (Runtime, bool) {
	runtimesMu.RLock()
	defer runtimesMu.RUnlock()
	rt, ok := runtimes[name]
	return rt, ok
}

// Runtimes returns the sorted names of the registered runtimes.
func Runtimes() []string {
	runtimesMu.RLock()
	defer runtimesMu.RUnlock()
	names := make([]string, 0, len(runtimes))
	for name := range runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
