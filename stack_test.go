package scape

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testHeader is the fixture geometry most tests share: 4 time points,
// 2 channels, 3 slices of 8×8 pixels.
var testHeader = Header{
	XScale: 1.0, YScale: 1.0, ZScale: 2.0,
	NFrame: 4, NChannel: 2, Depth: 3, Height: 8, Width: 8,
}

// buildContainer serializes a header plus a deterministic payload in
// which the sample at flattened (T, C, Z, Y, X) index i has value
// uint16(i).
func buildContainer(h Header) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, h.XScale)
	binary.Write(buf, binary.LittleEndian, h.YScale)
	binary.Write(buf, binary.LittleEndian, h.ZScale)
	binary.Write(buf, binary.LittleEndian, uint32(h.NFrame))
	binary.Write(buf, binary.LittleEndian, uint32(h.NChannel))
	binary.Write(buf, binary.LittleEndian, uint32(h.Depth))
	binary.Write(buf, binary.LittleEndian, uint32(h.Height))
	binary.Write(buf, binary.LittleEndian, uint32(h.Width))

	n := h.NFrame * h.PixelsPerVolume()
	for i := 0; i < n; i++ {
		binary.Write(buf, binary.LittleEndian, uint16(i))
	}
	return buf.Bytes()
}

// sampleAt returns the fixture payload value at one coordinate.
func sampleAt(h Header, t, c, z, y, x int) uint16 {
	return uint16((((t*h.NChannel+c)*h.Depth+z)*h.Height+y)*h.Width + x)
}

// writeContainer writes a fixture container into a temp directory and
// returns its path.
func writeContainer(t *testing.T, h Header) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.3DU16")
	if err := os.WriteFile(path, buildContainer(h), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// openContainer opens a fixture container and registers cleanup.
func openContainer(t *testing.T, h Header) *Stack {
	t.Helper()
	s, err := Open(writeContainer(t, h))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	path := writeContainer(t, testHeader)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if got := s.Header(); got != testHeader {
		t.Errorf("Header() = %+v, want %+v", got, testHeader)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestOpenErrors(t *testing.T) {
	full := buildContainer(testHeader)

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"wrong suffix", "scan.tif", full},
		{"header only", "scan.3DU16", full[:HeaderSize]},
		{"payload one byte short", "scan.3DU16", full[:len(full)-1]},
		{"truncated header", "scan.3DU16", full[:HeaderSize-5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := Open(path)
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Errorf("Open() error = %v, want *FormatError", err)
			}
		})
	}
}

func TestOpenLowercaseSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.3du16")
	if err := os.WriteFile(path, buildContainer(testHeader), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Close()
}

func TestOpenNonexistent(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.3DU16"))
	if err == nil {
		t.Fatal("Open() expected error for missing file")
	}
}

func TestVolumeIndexErrors(t *testing.T) {
	s := openContainer(t, testHeader)

	for _, index := range []int{-1, testHeader.NFrame, testHeader.NFrame + 5} {
		_, err := s.Volume(index)
		var indexErr *IndexError
		if !errors.As(err, &indexErr) {
			t.Errorf("Volume(%d) error = %v, want *IndexError", index, err)
			continue
		}
		if indexErr.Index != index || indexErr.NFrame != testHeader.NFrame {
			t.Errorf("Volume(%d) IndexError = %+v", index, indexErr)
		}
	}
}

func TestVolumesRangeErrors(t *testing.T) {
	s := openContainer(t, testHeader)

	tests := []struct {
		name       string
		start, end int
		want       any
	}{
		{"empty range", 2, 2, &RangeError{}},
		{"inverted range", 3, 1, &RangeError{}},
		{"start negative", -1, 2, &IndexError{}},
		{"start past end of series", 4, 5, &IndexError{}},
		{"end past end of series", 0, 5, &IndexError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Volumes(tt.start, tt.end)
			switch tt.want.(type) {
			case *RangeError:
				var rangeErr *RangeError
				if !errors.As(err, &rangeErr) {
					t.Errorf("Volumes(%d, %d) error = %v, want *RangeError",
						tt.start, tt.end, err)
				}
			case *IndexError:
				var indexErr *IndexError
				if !errors.As(err, &indexErr) {
					t.Errorf("Volumes(%d, %d) error = %v, want *IndexError",
						tt.start, tt.end, err)
				}
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := Open(writeContainer(t, testHeader))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClosedStackOperations(t *testing.T) {
	s, err := Open(writeContainer(t, testHeader))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Close()

	var closedErr *ClosedError
	if _, err := s.Volume(0); !errors.As(err, &closedErr) {
		t.Errorf("Volume() after Close error = %v, want *ClosedError", err)
	}
	if _, err := s.Volumes(0, 2); !errors.As(err, &closedErr) {
		t.Errorf("Volumes() after Close error = %v, want *ClosedError", err)
	}

	// The header survives Close.
	if got := s.Header(); got != testHeader {
		t.Errorf("Header() after Close = %+v, want %+v", got, testHeader)
	}
}

func TestOpenMany(t *testing.T) {
	dir := t.TempDir()
	data := buildContainer(testHeader)

	var paths []string
	for _, name := range []string{"a.3DU16", "b.3DU16", "c.3DU16"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	stacks, err := OpenMany(context.Background(), paths...)
	if err != nil {
		t.Fatalf("OpenMany() error = %v", err)
	}
	defer func() {
		for _, s := range stacks {
			s.Close()
		}
	}()

	if len(stacks) != len(paths) {
		t.Fatalf("OpenMany() returned %d stacks, want %d", len(stacks), len(paths))
	}
	for i, s := range stacks {
		if s.Path() != paths[i] {
			t.Errorf("stacks[%d].Path() = %q, want %q", i, s.Path(), paths[i])
		}
	}
}

func TestOpenManyPartialFailure(t *testing.T) {
	good := writeContainer(t, testHeader)
	bad := filepath.Join(t.TempDir(), "missing.3DU16")

	stacks, err := OpenMany(context.Background(), good, bad)
	if err == nil {
		t.Fatal("OpenMany() expected error for missing file")
	}
	if stacks != nil {
		t.Errorf("OpenMany() returned %d stacks on error, want nil", len(stacks))
	}
}

func TestOpenManyEmpty(t *testing.T) {
	stacks, err := OpenMany(context.Background())
	if err != nil {
		t.Errorf("OpenMany() error = %v", err)
	}
	if stacks != nil {
		t.Errorf("OpenMany() = %v, want nil", stacks)
	}
}
