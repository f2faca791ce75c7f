package scape

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/voxelkit/scape/internal/tiff"
)

// SaveVolumeTIFF writes volume index to path as an ImageJ TIFF stack in
// slice-major (Z, C, Y, X) page order, with the voxel scale stored in the
// resolution tags and the ImageJ description block.
//
// WithConversion selects the sample representation; the default writes
// the 16-bit payload unchanged. On failure no file is left behind.
func (s *Stack) SaveVolumeTIFF(path string, index int, opts ...Option) error {
	o := resolveOptions(opts)
	if !o.conversion.valid() {
		return &ConversionError{Token: o.conversion.String()}
	}
	if _, err := s.payload("save volume tiff"); err != nil {
		return err
	}

	switch o.conversion {
	case Uint8:
		return saveVolumeTIFF[uint8](s, path, index)
	case Float32:
		return saveVolumeTIFF[float32](s, path, index)
	default:
		return saveVolumeTIFF[uint16](s, path, index)
	}
}

// SaveAllTIFF writes the whole series to path as one ImageJ hyperstack
// with pages in (T, Z, C) order.
//
// The export streams: volumes are read WithChunkSize at a time, so peak
// memory stays near chunk size × Header.BytesPerVolume regardless of the
// series length. The chunk size never changes the output bytes. On
// failure no file is left behind.
func (s *Stack) SaveAllTIFF(path string, opts ...Option) error {
	o := resolveOptions(opts)
	if !o.conversion.valid() {
		return &ConversionError{Token: o.conversion.String()}
	}
	if o.chunkSize <= 0 {
		return &ChunkSizeError{Size: o.chunkSize}
	}
	if _, err := s.payload("save all tiff"); err != nil {
		return err
	}

	switch o.conversion {
	case Uint8:
		return saveAllTIFF[uint8](s, path, o.chunkSize)
	case Float32:
		return saveAllTIFF[float32](s, path, o.chunkSize)
	default:
		return saveAllTIFF[uint16](s, path, o.chunkSize)
	}
}

// SaveVolumeSeriesTIFF writes every volume as its own single-frame TIFF
// under dir, named after the container:
//
//	<stem>_t=00000_u16.tif, <stem>_t=00001_u16.tif, ...
//
// Volumes are exported concurrently with up to runtime.NumCPU() workers.
// If any volume fails, the context is canceled, remaining work stops and
// the first error is returned; files already completed are kept.
func (s *Stack) SaveVolumeSeriesTIFF(ctx context.Context, dir string, opts ...Option) error {
	o := resolveOptions(opts)
	if !o.conversion.valid() {
		return &ConversionError{Token: o.conversion.String()}
	}
	if _, err := s.payload("save volume series tiff"); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for t := 0; t < s.header.NFrame; t++ {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			name := fmt.Sprintf("%s_t=%05d_%s.tif", stem, t, o.conversion)
			if err := s.SaveVolumeTIFF(filepath.Join(dir, name), t, opts...); err != nil {
				return fmt.Errorf("volume %d: %w", t, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// tiffConfig maps the container header onto the page geometry of a
// hyperstack holding frames time points.
func tiffConfig(h Header, frames int, conv Conversion) tiff.Config {
	format := uint16(1)
	if conv == Float32 {
		format = 3
	}
	return tiff.Config{
		Width:         h.Width,
		Height:        h.Height,
		Channels:      h.NChannel,
		Slices:        h.Depth,
		Frames:        frames,
		BitsPerSample: conv.SampleBytes() * 8,
		SampleFormat:  format,
		XResolution:   1 / float64(h.XScale),
		YResolution:   1 / float64(h.YScale),
		SpacingZ:      float64(h.ZScale),
		Unit:          "um",
	}
}

func saveVolumeTIFF[S Sample](s *Stack, path string, index int) error {
	vol, err := ReadVolume[S](s, index, WithImageJOrder())
	if err != nil {
		return err
	}

	w, err := tiff.Create(path, tiffConfig(s.header, 1, conversionOf[S]()))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := writePages(w, vol.Data, s.header); err != nil {
		w.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func saveAllTIFF[S Sample](s *Stack, path string, chunkSize int) error {
	h := s.header

	w, err := tiff.Create(path, tiffConfig(h, h.NFrame, conversionOf[S]()))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	for start := 0; start < h.NFrame; start += chunkSize {
		end := start + chunkSize
		if end > h.NFrame {
			end = h.NFrame
		}

		ser, err := ReadVolumes[S](s, start, end, WithImageJOrder())
		if err != nil {
			w.Close()
			os.Remove(path)
			return err
		}
		if err := writePages(w, ser.Data, h); err != nil {
			w.Close()
			os.Remove(path)
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	if err := w.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// writePages feeds slice-major sample data to the writer one Y×X page at
// a time, encoding each page into a reused buffer. Feeding single pages
// keeps the output independent of how the caller chunked its reads.
func writePages[S Sample](w *tiff.Writer, data []S, h Header) error {
	pagePix := h.Height * h.Width
	buf := make([]byte, pagePix*conversionOf[S]().SampleBytes())

	for p := 0; p < len(data)/pagePix; p++ {
		encodeSamples(buf, data[p*pagePix:][:pagePix])
		if err := w.WritePage(buf); err != nil {
			return err
		}
	}
	return nil
}
