package scape

import "fmt"

// FormatError is returned when a file is not a valid 3DU16 container:
// wrong filename suffix, header shorter than HeaderSize, a zero-sized
// dimension, or a payload too short for the declared frame count.
//
// All structural checks run when the file is opened, so later volume
// accesses never hit a malformed mapping.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: invalid 3DU16 container: %s", e.Path, e.Reason)
}

// ClosedError is returned when an operation is attempted on a Stack
// after Close.
type ClosedError struct {
	Path string
	Op   string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("%s: %s on closed stack", e.Path, e.Op)
}

// IndexError is returned when a volume index falls outside [0, NFrame).
type IndexError struct {
	Index  int
	NFrame int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("volume index %d out of range [0, %d)", e.Index, e.NFrame)
}

// RangeError is returned when a volume range [Start, End) is empty or
// inverted.
type RangeError struct {
	Start int
	End   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("empty volume range [%d, %d)", e.Start, e.End)
}

// ConversionError is returned for a conversion value or token that is not
// one of u16, u8, f32.
type ConversionError struct {
	Token string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("unrecognized conversion %q (want u16, u8 or f32)", e.Token)
}

// ChunkSizeError is returned when an export is asked to stream in
// non-positive time chunks.
type ChunkSizeError struct {
	Size int
}

func (e *ChunkSizeError) Error() string {
	return fmt.Sprintf("chunk size must be positive, got %d", e.Size)
}
