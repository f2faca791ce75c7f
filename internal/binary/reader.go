// Package binary provides bounds-checked binary reading and writing
// primitives for the little-endian layouts this module speaks.
package binary

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// SafeReader wraps io.ReaderAt with bounds checking and helpful error messages.
type SafeReader struct {
	r    io.ReaderAt
	path string
	size int64
}

// NewSafeReader creates a new SafeReader.
func NewSafeReader(r io.ReaderAt, size int64, path string) *SafeReader {
	return &SafeReader{
		r:    r,
		size: size,
		path: path,
	}
}

// Path returns the file path associated with this reader.
func (sr *SafeReader) Path() string {
	return sr.path
}

// Size returns the total byte length visible to this reader.
func (sr *SafeReader) Size() int64 {
	return sr.size
}

// ReadAt reads bytes at the given offset with context for error messages.
func (sr *SafeReader) ReadAt(b []byte, off int64, what string) error {
	if off < 0 || off >= sr.size {
		return fmt.Errorf("%s: offset %d out of bounds (file size: %d) while reading %s",
			sr.path, off, sr.size, what)
	}

	if off+int64(len(b)) > sr.size {
		return fmt.Errorf("%s: read of %d bytes at offset %d would exceed file size %d while reading %s",
			sr.path, len(b), off, sr.size, what)
	}

	n, err := sr.r.ReadAt(b, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%s: failed to read %s at offset %d: %w", sr.path, what, off, err)
	}

	if n < len(b) {
		return fmt.Errorf("%s: short read for %s at offset %d: got %d bytes, expected %d",
			sr.path, what, off, n, len(b))
	}

	return nil
}

// ReadLE reads a little-endian value of type T at the given offset.
func ReadLE[T uint8 | uint16 | uint32 | uint64 | float32](sr *SafeReader, off int64, what string) (T, error) {
	var zero T

	buf := make([]byte, sizeOf(zero))
	if err := sr.ReadAt(buf, off, what); err != nil {
		return zero, err
	}

	var val T
	switch any(zero).(type) {
	case uint8:
		val = T(buf[0])
	case uint16:
		val = T(binary.LittleEndian.Uint16(buf))
	case uint32:
		val = T(binary.LittleEndian.Uint32(buf))
	case uint64:
		val = T(binary.LittleEndian.Uint64(buf))
	case float32:
		val = T(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}

	return val, nil
}

// Reader provides sequential little-endian reading with automatic offset
// tracking.
type Reader struct {
	*SafeReader
	offset int64
}

// NewReader creates a new Reader starting at the given offset.
func NewReader(sr *SafeReader, offset int64) *Reader {
	return &Reader{
		SafeReader: sr,
		offset:     offset,
	}
}

// ReadValue reads a little-endian value and advances the offset.
func ReadValue[T uint8 | uint16 | uint32 | uint64 | float32](r *Reader, what string) (T, error) {
	val, err := ReadLE[T](r.SafeReader, r.offset, what)
	if err != nil {
		var zero T
		return zero, err
	}

	var zero T
	r.offset += int64(sizeOf(zero))
	return val, nil
}

// Offset returns the current offset.
func (r *Reader) Offset() int64 {
	return r.offset
}

func sizeOf(v any) int {
	switch v.(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32, float32:
		return 4
	case uint64:
		return 8
	}
	return 0
}
