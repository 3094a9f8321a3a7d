// Package cmf implements the Compiled Model File container.
//
// A CMF file carries what an offline model compiler produced for one device:
// model-level properties, a table of callable functions with their tensor
// contracts, and an opaque kernel payload. The file is memory-mappable and
// its payloads are never interpreted beyond what the runtime needs to
// describe a function.
package cmf

// CMF global constants must never change.
const (
	// MagicCMF is the file magic, encoded as "CMF\0".
	MagicCMF = "CMF\x00"

	// CurrentMajor changes only for breaking format changes.
	CurrentMajor uint16 = 1
	// CurrentMinor may add optional sections or fields.
	CurrentMinor uint16 = 0
)

const (
	cmfHeaderSize  = 40
	cmfSectionSize = 24
	cmfAlign       = 8
)

type SectionType uint32

const (
	SectionModelInfo SectionType = 0x0001
	SectionFunctions SectionType = 0x0002
	SectionKernels   SectionType = 0x0003
)

func (t SectionType) String() string {
	switch t {
	case SectionModelInfo:
		return "model_info"
	case SectionFunctions:
		return "functions"
	case SectionKernels:
		return "kernels"
	default:
		return "unknown"
	}
}

type Header struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64 // reserved, written as zero
}

func (h *Header) Valid() bool {
	if string(h.Magic[:]) != MagicCMF {
		return false
	}
	return h.HeaderSize >= cmfHeaderSize && h.SectionCount > 0
}

func (h *Header) Compatible() bool {
	return h.Major == CurrentMajor
}

type Section struct {
	Type    uint32
	Version uint32
	Offset  uint64
	Size    uint64
}

func (s *Section) End() uint64 {
	return s.Offset + s.Size
}
