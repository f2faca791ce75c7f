package binary

import (
	"bytes"
	"testing"
)

func TestSafeWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	sw := NewSafeWriter(buf)

	if err := sw.WriteString("II"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	if err := WriteLE[uint16](sw, 42); err != nil {
		t.Fatalf("WriteLE[uint16] error = %v", err)
	}
	if err := WriteLE[uint32](sw, 0x12345678); err != nil {
		t.Fatalf("WriteLE[uint32] error = %v", err)
	}
	if err := WriteLE[uint8](sw, 0xFF); err != nil {
		t.Fatalf("WriteLE[uint8] error = %v", err)
	}
	if err := sw.WriteZeros(2); err != nil {
		t.Fatalf("WriteZeros() error = %v", err)
	}

	want := []byte{'I', 'I', 42, 0, 0x78, 0x56, 0x34, 0x12, 0xFF, 0, 0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("output = % x, want % x", buf.Bytes(), want)
	}
	if sw.Offset() != int64(len(want)) {
		t.Errorf("Offset() = %d, want %d", sw.Offset(), len(want))
	}
}

func TestWriteLEFloat32(t *testing.T) {
	buf := &bytes.Buffer{}
	sw := NewSafeWriter(buf)

	if err := WriteLE[float32](sw, 0.5); err != nil {
		t.Fatalf("WriteLE[float32] error = %v", err)
	}

	want := []byte{0x00, 0x00, 0x00, 0x3F}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("output = % x, want % x", buf.Bytes(), want)
	}
}

func TestWriteThenRead(t *testing.T) {
	buf := &bytes.Buffer{}
	sw := NewSafeWriter(buf)

	WriteLE[float32](sw, 0.455)
	WriteLE[uint32](sw, 1800)
	WriteLE[uint64](sw, 1<<40)

	sr := NewSafeReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "test.bin")

	if v, err := ReadLE[float32](sr, 0, "f32"); err != nil || v != 0.455 {
		t.Errorf("ReadLE[float32] = %v, %v", v, err)
	}
	if v, err := ReadLE[uint32](sr, 4, "u32"); err != nil || v != 1800 {
		t.Errorf("ReadLE[uint32] = %v, %v", v, err)
	}
	if v, err := ReadLE[uint64](sr, 8, "u64"); err != nil || v != 1<<40 {
		t.Errorf("ReadLE[uint64] = %v, %v", v, err)
	}
}
