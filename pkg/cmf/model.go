package cmf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

const (
	modelInfoVersion uint32 = 1
	functionsVersion uint32 = 1
)

// ElemType is the device element code a compiler stamped on a tensor.
type ElemType uint32

const (
	ElemFloat16 ElemType = 0x12
	ElemFloat32 ElemType = 0x13
	ElemFloat64 ElemType = 0x14
	ElemInt8    ElemType = 0x21
	ElemInt16   ElemType = 0x22
	ElemInt32   ElemType = 0x23
	ElemUint8   ElemType = 0x31
	ElemBool    ElemType = 0x41
)

var elemNames = map[ElemType]string{
	ElemFloat16: "float16",
	ElemFloat32: "float32",
	ElemFloat64: "float64",
	ElemInt8:    "int8",
	ElemInt16:   "int16",
	ElemInt32:   "int32",
	ElemUint8:   "uint8",
	ElemBool:    "bool",
}

func (e ElemType) String() string {
	if name, ok := elemNames[e]; ok {
		return name
	}
	return fmt.Sprintf("elem(0x%x)", uint32(e))
}

// Size returns the element byte size, or 0 for unknown codes.
func (e ElemType) Size() int {
	switch e {
	case ElemInt8, ElemUint8, ElemBool:
		return 1
	case ElemFloat16, ElemInt16:
		return 2
	case ElemFloat32, ElemInt32:
		return 4
	case ElemFloat64:
		return 8
	default:
		return 0
	}
}

// ParseElemType parses an element type name such as "float16".
func ParseElemType(s string) (ElemType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for e, n := range elemNames {
		if n == name {
			return e, nil
		}
	}
	return 0, fmt.Errorf("cmf: unknown element type %q", s)
}

// ModelInfo holds model-level properties.
type ModelInfo struct {
	Name        string `json:"name"`
	Target      string `json:"target,omitempty"`
	Parallelism int    `json:"parallelism"`
	StackSizeMB uint64 `json:"stack_size_mb"`
}

// Tensor is one input or output of a function, as laid out on device.
// ByteSize includes any padding the compiler added.
type Tensor struct {
	Name     string   `json:"name,omitempty"`
	Elem     ElemType `json:"elem"`
	Dims     []int32  `json:"dims"`
	ByteSize int64    `json:"byte_size"`
}

// NaturalSize returns the unpadded byte size of the tensor.
func (t Tensor) NaturalSize() int64 {
	n := int64(t.Elem.Size())
	for _, d := range t.Dims {
		n *= int64(d)
	}
	return n
}

// Function is one callable entry point.
type Function struct {
	Name    string   `json:"name"`
	Inputs  []Tensor `json:"inputs"`
	Outputs []Tensor `json:"outputs"`
}

// Model is the decoded content of a CMF file.
type Model struct {
	Info      ModelInfo  `json:"info"`
	Functions []Function `json:"functions"`
	Kernels   []byte     `json:"-"`
}

type functionTable struct {
	Functions []Function `json:"functions"`
}

// Function returns the function with the given name.
func (m *Model) Function(name string) (*Function, bool) {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i], true
		}
	}
	return nil, false
}

// Validate checks the structural rules a runtime relies on.
func (m *Model) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	if m.Info.Parallelism < 0 {
		return fmt.Errorf("%w: negative parallelism", ErrInvalidModel)
	}
	if len(m.Functions) == 0 {
		return fmt.Errorf("%w: no functions", ErrInvalidModel)
	}
	seen := make(map[string]struct{}, len(m.Functions))
	for _, fn := range m.Functions {
		if fn.Name == "" {
			return fmt.Errorf("%w: unnamed function", ErrInvalidModel)
		}
		if _, dup := seen[fn.Name]; dup {
			return fmt.Errorf("%w: duplicate function %q", ErrInvalidModel, fn.Name)
		}
		seen[fn.Name] = struct{}{}
		for i, t := range fn.Inputs {
			if err := validateTensor(t); err != nil {
				return fmt.Errorf("%w: function %q input %d: %v", ErrInvalidModel, fn.Name, i, err)
			}
		}
		for i, t := range fn.Outputs {
			if err := validateTensor(t); err != nil {
				return fmt.Errorf("%w: function %q output %d: %v", ErrInvalidModel, fn.Name, i, err)
			}
		}
	}
	return nil
}

func validateTensor(t Tensor) error {
	if len(t.Dims) == 0 {
		return errors.New("empty dims")
	}
	for _, d := range t.Dims {
		if d <= 0 {
			return fmt.Errorf("invalid dim %d", d)
		}
	}
	if t.ByteSize < 0 {
		return errors.New("negative byte size")
	}
	return nil
}

// WriteModel writes all sections of m through w and finalises it.
func WriteModel(w *Writer, m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	info, err := json.Marshal(m.Info)
	if err != nil {
		return err
	}
	table, err := json.Marshal(functionTable{Functions: m.Functions})
	if err != nil {
		return err
	}
	if err := w.WriteSection(SectionModelInfo, modelInfoVersion, info); err != nil {
		return err
	}
	if err := w.WriteSection(SectionFunctions, functionsVersion, table); err != nil {
		return err
	}
	if len(m.Kernels) > 0 {
		if err := w.WriteSection(SectionKernels, 1, m.Kernels); err != nil {
			return err
		}
	}
	return w.Finalise()
}

// EncodeImage renders m as an in-memory CMF image.
func EncodeImage(m *Model) ([]byte, error) {
	var buf Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if err := WriteModel(w, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Model decodes the model-info and function sections. The result does not
// alias the file data except for Kernels, which is copied.
func (f *File) Model() (*Model, error) {
	infoSec := f.Section(SectionModelInfo)
	if infoSec == nil {
		return nil, fmt.Errorf("%w: model info", ErrMissingSection)
	}
	if infoSec.Version != modelInfoVersion {
		return nil, fmt.Errorf("%w: model info version %d", ErrCorruptFile, infoSec.Version)
	}
	fnSec := f.Section(SectionFunctions)
	if fnSec == nil {
		return nil, fmt.Errorf("%w: functions", ErrMissingSection)
	}
	if fnSec.Version != functionsVersion {
		return nil, fmt.Errorf("%w: functions version %d", ErrCorruptFile, fnSec.Version)
	}

	var m Model
	if err := json.Unmarshal(f.SectionData(infoSec), &m.Info); err != nil {
		return nil, fmt.Errorf("%w: model info: %v", ErrCorruptFile, err)
	}
	var table functionTable
	if err := json.Unmarshal(f.SectionData(fnSec), &table); err != nil {
		return nil, fmt.Errorf("%w: functions: %v", ErrCorruptFile, err)
	}
	m.Functions = table.Functions
	if kSec := f.Section(SectionKernels); kSec != nil {
		m.Kernels = append([]byte(nil), f.SectionData(kSec)...)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
