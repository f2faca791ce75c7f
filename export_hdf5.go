package scape

import (
	"fmt"
	"os"

	"github.com/voxelkit/scape/internal/hdf5"
)

// SaveAllHDF5 writes the whole series to path as an HDF5 file with one
// dataset named "data", shaped (T, Z, C, Y, X), plus an "element_size_um"
// attribute holding the (z, y, x) voxel scale the ImageJ HDF5 plugin
// reads.
//
// The export streams: the dataset extent is allocated up front and
// filled WithChunkSize volumes at a time, so peak memory stays near
// chunk size × Header.BytesPerVolume. The chunk size never changes the
// output bytes. On failure no file is left behind.
func (s *Stack) SaveAllHDF5(path string, opts ...Option) error {
	o := resolveOptions(opts)
	if !o.conversion.valid() {
		return &ConversionError{Token: o.conversion.String()}
	}
	if o.chunkSize <= 0 {
		return &ChunkSizeError{Size: o.chunkSize}
	}
	if _, err := s.payload("save all hdf5"); err != nil {
		return err
	}

	switch o.conversion {
	case Uint8:
		return saveAllHDF5[uint8](s, path, o.chunkSize)
	case Float32:
		return saveAllHDF5[float32](s, path, o.chunkSize)
	default:
		return saveAllHDF5[uint16](s, path, o.chunkSize)
	}
}

func saveAllHDF5[S Sample](s *Stack, path string, chunkSize int) error {
	h := s.header
	conv := conversionOf[S]()

	types := map[Conversion]hdf5.Type{
		Uint8:   hdf5.Uint8,
		Uint16:  hdf5.Uint16,
		Float32: hdf5.Float32,
	}

	f, err := hdf5.Create(path, hdf5.Config{
		Dims: []uint64{
			uint64(h.NFrame), uint64(h.Depth), uint64(h.NChannel),
			uint64(h.Height), uint64(h.Width),
		},
		Type: types[conv],
		ElementSizeUM: [3]float64{
			float64(h.ZScale), float64(h.YScale), float64(h.XScale),
		},
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	buf := make([]byte, chunkSize*h.PixelsPerVolume()*conv.SampleBytes())

	for start := 0; start < h.NFrame; start += chunkSize {
		end := start + chunkSize
		if end > h.NFrame {
			end = h.NFrame
		}

		ser, err := ReadVolumes[S](s, start, end, WithImageJOrder())
		if err != nil {
			f.Close()
			os.Remove(path)
			return err
		}

		slab := buf[:len(ser.Data)*conv.SampleBytes()]
		encodeSamples(slab, ser.Data)
		if err := f.WriteFrames(start, slab); err != nil {
			f.Close()
			os.Remove(path)
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
