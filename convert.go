package scape

import (
	"encoding/binary"
	"math"
)

// Conversion selects the output sample representation of an export.
//
// For in-process reads the output element type of ReadVolume/ReadVolumes
// plays this role; Conversion exists for call sites that pick the
// representation at runtime (exports, command-line tools).
type Conversion uint8

const (
	// Uint16 passes the on-disk 16-bit samples through unchanged.
	Uint16 Conversion = iota

	// Uint8 linearly rescales the 16-bit dynamic range to 8 bits with
	// rounding: round(v*255/65535). Never clips, preserves ordering.
	Uint8

	// Float32 normalizes samples into [0, 1]: v/65535.
	Float32
)

// String returns the conversion token: "u16", "u8" or "f32".
func (c Conversion) String() string {
	switch c {
	case Uint16:
		return "u16"
	case Uint8:
		return "u8"
	case Float32:
		return "f32"
	}
	return "unknown"
}

// SampleBytes returns the byte width of one output sample.
func (c Conversion) SampleBytes() int {
	switch c {
	case Uint8:
		return 1
	case Float32:
		return 4
	}
	return 2
}

func (c Conversion) valid() bool {
	return c == Uint16 || c == Uint8 || c == Float32
}

// ParseConversion maps a conversion token to its Conversion value.
// Recognized tokens are "u16", "u8" and "f32".
func ParseConversion(token string) (Conversion, error) {
	switch token {
	case "u16":
		return Uint16, nil
	case "u8":
		return Uint8, nil
	case "f32":
		return Float32, nil
	}
	return 0, &ConversionError{Token: token}
}

// Sample is the set of element types a volume read can produce.
type Sample interface {
	uint8 | uint16 | float32
}

// conversionOf returns the Conversion matching the element type S.
func conversionOf[S Sample]() Conversion {
	var zero S
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case float32:
		return Float32
	}
	return Uint16
}

// u8Table maps every 16-bit sample to its rounded 8-bit rescale.
// Built once; 64KiB buys a branch-free hot loop.
var u8Table = func() (t [65536]uint8) {
	for i := range t {
		t[i] = uint8((i*255 + 32767) / 65535)
	}
	return t
}()

// fillSamples decodes a run of raw little-endian uint16 payload bytes into
// dst, converting per the element type. len(src) must be 2*len(dst).
// The type switch sits outside the loop so conversion is resolved once per
// run, not per element.
func fillSamples[S Sample](dst []S, src []byte) {
	switch d := any(dst).(type) {
	case []uint16:
		for i := range d {
			d[i] = binary.LittleEndian.Uint16(src[2*i:])
		}
	case []uint8:
		for i := range d {
			d[i] = u8Table[binary.LittleEndian.Uint16(src[2*i:])]
		}
	case []float32:
		for i := range d {
			d[i] = float32(binary.LittleEndian.Uint16(src[2*i:])) / 65535
		}
	}
}

// encodeSamples serializes samples to little-endian bytes for the export
// containers. dst must hold len(src) * element-size bytes.
func encodeSamples[S Sample](dst []byte, src []S) {
	switch s := any(src).(type) {
	case []uint16:
		for i, v := range s {
			binary.LittleEndian.PutUint16(dst[2*i:], v)
		}
	case []uint8:
		copy(dst, s)
	case []float32:
		for i, v := range s {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	}
}
