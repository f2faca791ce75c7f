// Package hdf5 writes minimal HDF5 files holding one contiguous dataset.
//
// The output targets the subset of the format that every mainstream HDF5
// reader handles: a version 3 superblock, version 2 object headers with
// lookup3 checksums, and a root group with a single hard link to a
// dataset stored contiguously. All metadata is laid out up front, so the
// data extent can be filled incrementally with bounded memory, one slab
// of leading-dimension frames at a time.
package hdf5

import (
	"fmt"
	"os"
)

// Type identifies the dataset's element type.
type Type int

const (
	Uint8 Type = iota
	Uint16
	Float32
)

// Size returns the byte width of one element.
func (t Type) Size() int {
	switch t {
	case Uint8:
		return 1
	case Float32:
		return 4
	}
	return 2
}

// DatasetName is the name of the single dataset every file holds.
const DatasetName = "data"

// Config describes the dataset of one file.
type Config struct {
	// Dims are the dataset extents, slowest-varying first. The leading
	// dimension is the frame axis WriteFrames addresses.
	Dims []uint64

	Type Type

	// ElementSizeUM is the physical element size in micrometers along the
	// three trailing spatial axes, slowest first. It is stored as the
	// "element_size_um" attribute ImageJ's HDF5 plugin reads.
	ElementSizeUM [3]float64
}

func (c Config) validate() error {
	if len(c.Dims) == 0 {
		return fmt.Errorf("hdf5: dataset needs at least one dimension")
	}
	for _, d := range c.Dims {
		if d == 0 {
			return fmt.Errorf("hdf5: zero extent in dims %v", c.Dims)
		}
	}
	switch c.Type {
	case Uint8, Uint16, Float32:
	default:
		return fmt.Errorf("hdf5: unknown element type %d", c.Type)
	}
	return nil
}

// File is an HDF5 file being written.
type File struct {
	f *os.File

	dataAddr    int64
	dataSize    int64
	frameStride int64 // bytes per leading-dimension frame
	frames      int64
	closed      bool
}

// Create writes path's complete metadata and allocates the data extent.
// The extent reads as zeros until filled with WriteFrames.
func Create(path string, cfg Config) (*File, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dataSize := int64(cfg.Type.Size())
	for _, d := range cfg.Dims {
		dataSize *= int64(d)
	}

	// Addresses first: every metadata block has a content-independent
	// size, so the layout is known before anything is serialized.
	rootAddr := int64(superblockSize)
	rootMsgs := []message{
		linkInfoMessage(),
		groupInfoMessage(),
		hardLinkMessage(DatasetName, 0), // address patched below
	}
	dsAddr := rootAddr + int64(objectHeaderSize(rootMsgs, minGroupChunkSize))

	dsMsgs := func(dataAddr int64) []message {
		var dt message
		switch cfg.Type {
		case Float32:
			dt = floatDatatypeMessage(4)
		default:
			dt = uintDatatypeMessage(cfg.Type.Size())
		}
		return []message{
			dataspaceMessage(cfg.Dims),
			dt,
			contiguousLayoutMessage(uint64(dataAddr), uint64(dataSize)),
			float64AttributeMessage("element_size_um", cfg.ElementSizeUM[:]),
		}
	}
	dataAddr := dsAddr + int64(objectHeaderSize(dsMsgs(0), 0))
	eof := dataAddr + dataSize

	rootMsgs[2] = hardLinkMessage(DatasetName, uint64(dsAddr))

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	meta := superblock(uint64(eof), uint64(rootAddr))
	meta = append(meta, objectHeader(rootMsgs, minGroupChunkSize)...)
	meta = append(meta, objectHeader(dsMsgs(dataAddr), 0)...)
	if _, err := f.WriteAt(meta, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("hdf5: write metadata: %w", err)
	}

	// Reserve the extent so the file reaches its declared EOF even when
	// trailing frames are never written.
	if err := f.Truncate(eof); err != nil {
		f.Close()
		return nil, fmt.Errorf("hdf5: allocate data extent: %w", err)
	}

	return &File{
		f:           f,
		dataAddr:    dataAddr,
		dataSize:    dataSize,
		frameStride: dataSize / int64(cfg.Dims[0]),
		frames:      int64(cfg.Dims[0]),
	}, nil
}

// WriteFrames stores data, which must hold a whole number of frames, at
// the given leading-dimension index. Frames can arrive in any order and
// any grouping; each byte of the extent should be written exactly once.
func (f *File) WriteFrames(frame int, data []byte) error {
	if f.closed {
		return fmt.Errorf("hdf5: write on closed file")
	}
	if int64(len(data))%f.frameStride != 0 {
		return fmt.Errorf("hdf5: %d bytes is not a whole number of %d-byte frames",
			len(data), f.frameStride)
	}
	n := int64(len(data)) / f.frameStride
	if frame < 0 || int64(frame)+n > f.frames {
		return fmt.Errorf("hdf5: frames [%d, %d) outside extent of %d",
			frame, int64(frame)+n, f.frames)
	}

	_, err := f.f.WriteAt(data, f.dataAddr+int64(frame)*f.frameStride)
	if err != nil {
		return fmt.Errorf("hdf5: write frames: %w", err)
	}
	return nil
}

// Close flushes and releases the file. Close is idempotent.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return err
	}
	return f.f.Close()
}
