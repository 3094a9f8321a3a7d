package cmf

import (
	"errors"
	"io"
	"sort"
	"sync"
)

const writerPadBufSize = 4096

// Writer builds a CMF file in a streaming fashion.
//
// The writer reserves space for the header up-front and patches it during
// Finalise. The target is normally an *os.File; Buffer provides an in-memory
// target for images that never touch disk.
type Writer struct {
	w        io.WriteSeeker
	sections []Section
	seen     map[SectionType]struct{}
	closed   bool

	padBuf []byte

	mu sync.Mutex
}

// NewWriter creates a writer targeting w. If w can be truncated it is
// truncated first so the final size always matches the header.
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	if w == nil {
		return nil, errors.New("cmf: nil writer")
	}
	if t, ok := w.(interface{ Truncate(int64) error }); ok {
		if err := t.Truncate(0); err != nil {
			return nil, err
		}
	}
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	cw := &Writer{
		w:      w,
		seen:   make(map[SectionType]struct{}),
		padBuf: make([]byte, writerPadBufSize),
	}
	if err := cw.writeZeros(cmfHeaderSize); err != nil {
		return nil, err
	}
	if err := cw.alignTo(cmfAlign); err != nil {
		return nil, err
	}
	return cw, nil
}

// WriteSection writes a section payload and records it in the section table.
// A section type may only be written once.
func (w *Writer) WriteSection(typ SectionType, version uint32, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("cmf: writer already finalised")
	}
	if _, ok := w.seen[typ]; ok {
		return errors.New("cmf: duplicate section type")
	}
	if err := w.alignTo(cmfAlign); err != nil {
		return err
	}
	offset, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := writeFull(w.w, data); err != nil {
		return err
	}

	w.sections = append(w.sections, Section{
		Type:    uint32(typ),
		Version: version,
		Offset:  uint64(offset),
		Size:    uint64(len(data)),
	})
	w.seen[typ] = struct{}{}
	return nil
}

// Finalise writes the section directory and patches the header.
// After Finalise, the writer must not be used again.
func (w *Writer) Finalise() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("cmf: writer already finalised")
	}
	w.closed = true

	sort.Slice(w.sections, func(i, j int) bool {
		return w.sections[i].Type < w.sections[j].Type
	})

	if err := w.alignTo(cmfAlign); err != nil {
		return err
	}
	dirOffset, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	var secBuf [cmfSectionSize]byte
	for i := range w.sections {
		if !encodeSection(secBuf[:], w.sections[i]) {
			return errors.New("cmf: encode section failed")
		}
		if err := writeFull(w.w, secBuf[:]); err != nil {
			return err
		}
	}

	fileSize, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	var header Header
	copy(header.Magic[:], MagicCMF)
	header.Major = CurrentMajor
	header.Minor = CurrentMinor
	header.HeaderSize = cmfHeaderSize
	header.SectionCount = uint32(len(w.sections))
	header.SectionDirOffset = uint64(dirOffset)
	header.FileSize = uint64(fileSize)

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var hdrBuf [cmfHeaderSize]byte
	if !encodeHeader(hdrBuf[:], header) {
		return errors.New("cmf: encode header failed")
	}
	if err := writeFull(w.w, hdrBuf[:]); err != nil {
		return err
	}
	if _, err := w.w.Seek(fileSize, io.SeekStart); err != nil {
		return err
	}

	if s, ok := w.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (w *Writer) alignTo(n int64) error {
	pos, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if mod := pos % n; mod != 0 {
		return w.writeZeros(int(n - mod))
	}
	return nil
}

func (w *Writer) writeZeros(n int) error {
	for n > 0 {
		toWrite := min(n, len(w.padBuf))
		if err := writeFull(w.w, w.padBuf[:toWrite]); err != nil {
			return err
		}
		n -= toWrite
	}
	return nil
}

func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Buffer is an in-memory io.WriteSeeker for building CMF images.
type Buffer struct {
	buf []byte
	pos int64
}

func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		if end > int64(cap(b.buf)) {
			grown := make([]byte, end, max(end, 2*int64(cap(b.buf))))
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("cmf: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("cmf: negative position")
	}
	b.pos = abs
	return abs, nil
}

func (b *Buffer) Truncate(size int64) error {
	if size < 0 || size > int64(len(b.buf)) {
		return errors.New("cmf: invalid truncate size")
	}
	b.buf = b.buf[:size]
	if b.pos > size {
		b.pos = size
	}
	return nil
}

// Bytes returns the written image.
func (b *Buffer) Bytes() []byte { return b.buf }
