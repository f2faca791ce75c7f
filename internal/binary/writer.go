package binary

import (
	"encoding/binary"
	"io"
	"math"
)

// SafeWriter wraps io.Writer with position tracking.
type SafeWriter struct {
	w      io.Writer
	offset int64
}

// NewSafeWriter creates a new SafeWriter.
func NewSafeWriter(w io.Writer) *SafeWriter {
	return &SafeWriter{
		w:      w,
		offset: 0,
	}
}

// Offset returns the current position (number of bytes written).
func (sw *SafeWriter) Offset() int64 {
	return sw.offset
}

// WriteBytes writes raw bytes to the underlying writer.
func (sw *SafeWriter) WriteBytes(b []byte) error {
	n, err := sw.w.Write(b)
	sw.offset += int64(n)
	return err
}

// WriteString writes a string as bytes to the underlying writer.
func (sw *SafeWriter) WriteString(s string) error {
	return sw.WriteBytes([]byte(s))
}

// WriteZeros writes n zero bytes.
func (sw *SafeWriter) WriteZeros(n int) error {
	return sw.WriteBytes(make([]byte, n))
}

// WriteLE writes a value of type T in little-endian byte order.
func WriteLE[T uint8 | uint16 | uint32 | uint64 | float32](sw *SafeWriter, val T) error {
	var buf []byte

	switch v := any(val).(type) {
	case uint8:
		buf = []byte{byte(v)}
	case uint16:
		buf = make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, v)
	case uint32:
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, v)
	case uint64:
		buf = make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, v)
	case float32:
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	}

	return sw.WriteBytes(buf)
}
