package scape

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxelkit/scape/internal/binary"
)

const (
	// HeaderSize is the fixed byte length of the container header:
	// three little-endian float32 voxel scales followed by five
	// little-endian uint32 dimensions.
	HeaderSize = 32

	// SampleSize is the byte width of one payload sample (uint16).
	SampleSize = 2
)

// Header is the decoded fixed-size header of a 3DU16 container.
//
// The three scales are physical units (micrometers) per voxel along each
// spatial axis. The five dimensions define the canonical 5-D shape
// (NFrame, NChannel, Depth, Height, Width), axis order TCZYX.
type Header struct {
	XScale float32
	YScale float32
	ZScale float32

	NFrame   int // time points
	NChannel int
	Depth    int // Z slices per volume
	Height   int // rows per slice
	Width    int // columns per row
}

// BytesPerXY returns the byte length of one Y×X slice.
func (h Header) BytesPerXY() int {
	return h.Height * h.Width * SampleSize
}

// BytesPerXYZ returns the byte length of one single-channel Z-stack.
func (h Header) BytesPerXYZ() int {
	return h.Depth * h.BytesPerXY()
}

// BytesPerVolume returns the byte length of one full multi-channel volume.
func (h Header) BytesPerVolume() int {
	return h.NChannel * h.BytesPerXYZ()
}

// PixelsPerVolume returns the sample count of one full volume.
func (h Header) PixelsPerVolume() int {
	return h.NChannel * h.Depth * h.Height * h.Width
}

// Shape returns the canonical (T, C, Z, Y, X) shape of the series.
func (h Header) Shape() [5]int {
	return [5]int{h.NFrame, h.NChannel, h.Depth, h.Height, h.Width}
}

// Scales returns the (x, y, z) voxel scales.
func (h Header) Scales() [3]float32 {
	return [3]float32{h.XScale, h.YScale, h.ZScale}
}

// String returns a compact human-readable summary.
//
// Example output: "4 frames × 2 ch × 3×8×8 @ 0.455×0.455×0.9 um".
func (h Header) String() string {
	return fmt.Sprintf("%d frames × %d ch × %d×%d×%d @ %g×%g×%g um",
		h.NFrame, h.NChannel, h.Depth, h.Height, h.Width,
		h.XScale, h.YScale, h.ZScale)
}

// ReadHeader opens the file at path and decodes its header.
//
// The handle is closed before returning; use Open to keep the file
// available for volume access.
func ReadHeader(path string) (Header, error) {
	if err := checkSuffix(path); err != nil {
		return Header{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Header{}, fmt.Errorf("stat file: %w", err)
	}

	return DecodeHeader(f, stat.Size(), path)
}

// DecodeHeader decodes the fixed-size header from the start of a byte
// source. The source is not retained.
func DecodeHeader(r io.ReaderAt, size int64, path string) (Header, error) {
	if size < HeaderSize {
		return Header{}, &FormatError{
			Path:   path,
			Reason: fmt.Sprintf("file is %d bytes, header needs %d", size, HeaderSize),
		}
	}

	sr := binary.NewSafeReader(r, size, path)
	rd := binary.NewReader(sr, 0)

	var h Header
	var err error

	read32 := func(dst *float32, what string) {
		if err != nil {
			return
		}
		*dst, err = binary.ReadValue[float32](rd, what)
	}
	readDim := func(dst *int, what string) {
		if err != nil {
			return
		}
		var v uint32
		v, err = binary.ReadValue[uint32](rd, what)
		*dst = int(v)
	}

	read32(&h.XScale, "x scale")
	read32(&h.YScale, "y scale")
	read32(&h.ZScale, "z scale")
	readDim(&h.NFrame, "frame count")
	readDim(&h.NChannel, "channel count")
	readDim(&h.Depth, "depth")
	readDim(&h.Height, "height")
	readDim(&h.Width, "width")
	if err != nil {
		return Header{}, err
	}

	if err := h.validate(path); err != nil {
		return Header{}, err
	}
	return h, nil
}

// validate rejects headers with a zero-sized axis. A zero dimension would
// make every derived byte quantity zero and silently yield empty volumes.
func (h Header) validate(path string) error {
	dims := []struct {
		name string
		v    int
	}{
		{"frame count", h.NFrame},
		{"channel count", h.NChannel},
		{"depth", h.Depth},
		{"height", h.Height},
		{"width", h.Width},
	}
	for _, d := range dims {
		if d.v == 0 {
			return &FormatError{
				Path:   path,
				Reason: fmt.Sprintf("%s is zero", d.name),
			}
		}
	}
	return nil
}

// checkSuffix rejects files without the container's filename extension.
func checkSuffix(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".3du16" {
		return &FormatError{
			Path:   path,
			Reason: fmt.Sprintf("unsupported extension %q (want .3du16 or .3DU16)", filepath.Ext(path)),
		}
	}
	return nil
}
