package scape

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	gohdf5 "github.com/robert-malhotra/go-hdf5/hdf5"
)

// openDataset re-opens an exported file with an independent HDF5 reader
// and returns its /data dataset.
func openDataset(t *testing.T, path string) (*gohdf5.File, *gohdf5.Dataset) {
	t.Helper()

	f, err := gohdf5.Open(path)
	if err != nil {
		t.Fatalf("hdf5 open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })

	ds, err := f.OpenDataset("/data")
	if err != nil {
		t.Fatalf("open /data: %v", err)
	}
	return f, ds
}

func TestSaveAllHDF5Uint16(t *testing.T) {
	h := Header{
		XScale: 0.5, YScale: 0.6, ZScale: 2.0,
		NFrame: 2, NChannel: 2, Depth: 3, Height: 4, Width: 5,
	}
	s := openContainer(t, h)

	path := filepath.Join(t.TempDir(), "out.h5")
	if err := s.SaveAllHDF5(path); err != nil {
		t.Fatalf("SaveAllHDF5() error = %v", err)
	}

	_, ds := openDataset(t, path)

	wantDims := []uint64{
		uint64(h.NFrame), uint64(h.Depth), uint64(h.NChannel),
		uint64(h.Height), uint64(h.Width),
	}
	if got := ds.Shape(); !reflect.DeepEqual(got, wantDims) {
		t.Fatalf("Shape() = %v, want %v", got, wantDims)
	}
	if got := ds.DtypeSize(); got != 2 {
		t.Errorf("DtypeSize() = %d, want 2", got)
	}

	values, err := ds.ReadUint16()
	if err != nil {
		t.Fatalf("ReadUint16() error = %v", err)
	}

	// Dataset order is (T, Z, C, Y, X); the payload is (T, C, Z, Y, X).
	i := 0
	for ti := 0; ti < h.NFrame; ti++ {
		for z := 0; z < h.Depth; z++ {
			for c := 0; c < h.NChannel; c++ {
				for y := 0; y < h.Height; y++ {
					for x := 0; x < h.Width; x++ {
						if want := sampleAt(h, ti, c, z, y, x); values[i] != want {
							t.Fatalf("values[%d] (t=%d z=%d c=%d y=%d x=%d) = %d, want %d",
								i, ti, z, c, y, x, values[i], want)
						}
						i++
					}
				}
			}
		}
	}

	attr := ds.Attr("element_size_um")
	if attr == nil {
		t.Fatal("missing element_size_um attribute")
	}
	scale, err := attr.ReadFloat64()
	if err != nil {
		t.Fatalf("ReadFloat64() error = %v", err)
	}
	want := []float64{float64(h.ZScale), float64(h.YScale), float64(h.XScale)}
	if !reflect.DeepEqual(scale, want) {
		t.Errorf("element_size_um = %v, want %v", scale, want)
	}
}

func TestSaveAllHDF5Uint8(t *testing.T) {
	h := testHeader
	s := openContainer(t, h)

	path := filepath.Join(t.TempDir(), "out.h5")
	if err := s.SaveAllHDF5(path, WithConversion(Uint8)); err != nil {
		t.Fatalf("SaveAllHDF5() error = %v", err)
	}

	_, ds := openDataset(t, path)
	if got := ds.DtypeSize(); got != 1 {
		t.Errorf("DtypeSize() = %d, want 1", got)
	}

	values, err := ds.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8() error = %v", err)
	}

	// Spot-check (t=3, z=2, c=1, y=7, x=6).
	idx := ((((3*h.Depth+2)*h.NChannel+1)*h.Height+7)*h.Width + 6)
	if want := u8Table[sampleAt(h, 3, 1, 2, 7, 6)]; values[idx] != want {
		t.Errorf("values[%d] = %d, want %d", idx, values[idx], want)
	}
}

func TestSaveAllHDF5Float32(t *testing.T) {
	h := testHeader
	s := openContainer(t, h)

	path := filepath.Join(t.TempDir(), "out.h5")
	if err := s.SaveAllHDF5(path, WithConversion(Float32), WithChunkSize(3)); err != nil {
		t.Fatalf("SaveAllHDF5() error = %v", err)
	}

	_, ds := openDataset(t, path)
	values, err := ds.ReadFloat32()
	if err != nil {
		t.Fatalf("ReadFloat32() error = %v", err)
	}

	idx := ((((1*h.Depth+0)*h.NChannel+1)*h.Height+2)*h.Width + 3)
	if want := float32(sampleAt(h, 1, 1, 0, 2, 3)) / 65535; values[idx] != want {
		t.Errorf("values[%d] = %v, want %v", idx, values[idx], want)
	}
	for _, v := range values {
		if v < 0 || v > 1 {
			t.Fatalf("value %v outside [0, 1]", v)
		}
	}
}

func TestSaveAllHDF5ChunkInvariance(t *testing.T) {
	s := openContainer(t, testHeader)
	dir := t.TempDir()

	var images [][]byte
	for i, chunk := range []int{1, 3, DefaultChunkSize} {
		path := filepath.Join(dir, fmt.Sprintf("out%d.h5", i))
		if err := s.SaveAllHDF5(path, WithChunkSize(chunk)); err != nil {
			t.Fatalf("SaveAllHDF5(chunk=%d) error = %v", chunk, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		images = append(images, data)
	}

	for i := 1; i < len(images); i++ {
		if !bytes.Equal(images[0], images[i]) {
			t.Errorf("chunk size changed the output bytes (variant %d)", i)
		}
	}
}

func TestSaveAllHDF5Validation(t *testing.T) {
	s := openContainer(t, testHeader)
	dir := t.TempDir()

	path := filepath.Join(dir, "bad.h5")

	var convErr *ConversionError
	if err := s.SaveAllHDF5(path, WithConversion(Conversion(9))); !errors.As(err, &convErr) {
		t.Errorf("error = %v, want *ConversionError", err)
	}

	var chunkErr *ChunkSizeError
	if err := s.SaveAllHDF5(path, WithChunkSize(-2)); !errors.As(err, &chunkErr) {
		t.Errorf("error = %v, want *ChunkSizeError", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed export left a file behind")
	}

	closed, err := Open(writeContainer(t, testHeader))
	if err != nil {
		t.Fatal(err)
	}
	closed.Close()

	var closedErr *ClosedError
	if err := closed.SaveAllHDF5(path); !errors.As(err, &closedErr) {
		t.Errorf("error = %v, want *ClosedError", err)
	}
}
