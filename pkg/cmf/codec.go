package cmf

import "encoding/binary"

// Header and section directory entries use explicit little-endian encoding
// so files are portable across hosts.

func encodeHeader(dst []byte, h Header) bool {
	if len(dst) < cmfHeaderSize {
		return false
	}
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:], h.Major)
	binary.LittleEndian.PutUint16(dst[6:], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:], h.HeaderSize)
	binary.LittleEndian.PutUint32(dst[12:], h.SectionCount)
	binary.LittleEndian.PutUint64(dst[16:], h.SectionDirOffset)
	binary.LittleEndian.PutUint64(dst[24:], h.FileSize)
	binary.LittleEndian.PutUint64(dst[32:], h.Flags)
	return true
}

func decodeHeader(src []byte) (Header, bool) {
	var h Header
	if len(src) < cmfHeaderSize {
		return h, false
	}
	copy(h.Magic[:], src[0:4])
	h.Major = binary.LittleEndian.Uint16(src[4:])
	h.Minor = binary.LittleEndian.Uint16(src[6:])
	h.HeaderSize = binary.LittleEndian.Uint32(src[8:])
	h.SectionCount = binary.LittleEndian.Uint32(src[12:])
	h.SectionDirOffset = binary.LittleEndian.Uint64(src[16:])
	h.FileSize = binary.LittleEndian.Uint64(src[24:])
	h.Flags = binary.LittleEndian.Uint64(src[32:])
	return h, true
}

func encodeSection(dst []byte, s Section) bool {
	if len(dst) < cmfSectionSize {
		return false
	}
	binary.LittleEndian.PutUint32(dst[0:], s.Type)
	binary.LittleEndian.PutUint32(dst[4:], s.Version)
	binary.LittleEndian.PutUint64(dst[8:], s.Offset)
	binary.LittleEndian.PutUint64(dst[16:], s.Size)
	return true
}

func decodeSection(src []byte) (Section, bool) {
	if len(src) < cmfSectionSize {
		return Section{}, false
	}
	return Section{
		Type:    binary.LittleEndian.Uint32(src[0:]),
		Version: binary.LittleEndian.Uint32(src[4:]),
		Offset:  binary.LittleEndian.Uint64(src[8:]),
		Size:    binary.LittleEndian.Uint64(src[16:]),
	}, true
}

func rangesOverlap(a0, a1, b0, b1 uint64) bool {
	// half-open ranges [a0,a1) and [b0,b1)
	return a0 < b1 && b0 < a1
}
