// Package scape decodes SCAPE 3DU16 volumetric imaging containers.
//
// A 3DU16 file is a fixed 32-byte header followed by a flat payload of
// 16-bit grayscale samples: n_frame volumes, each a (channel, slice, row,
// column) block with no padding anywhere. scape memory-maps the payload and
// exposes random access to single volumes or contiguous time ranges without
// ever loading the whole series.
//
// # Quick Start
//
// Reading one volume from an acquisition:
//
//	stack, err := scape.Open("worm01.3DU16")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer stack.Close()
//
//	vol, err := stack.Volume(0)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(vol.At(0, 0, 12, 40)) // channel 0, slice 0, row 12, col 40
//
// # Sample Conversion
//
// The payload is always uint16 on disk. Reads can convert on the fly; the
// output element type selects the conversion:
//
//	raw, _ := scape.ReadVolume[uint16](stack, 0)  // passthrough
//	low, _ := scape.ReadVolume[uint8](stack, 0)   // rescaled to 8 bits
//	nrm, _ := scape.ReadVolume[float32](stack, 0) // normalized to [0, 1]
//
// Conversions are linear: uint8 output is round(v*255/65535), float32
// output is v/65535. Both preserve ordering over the full 16-bit range.
//
// # Axis Orders
//
// Volumes are channel-major (CZYX) by default, matching the container.
// Visualization tools built around ImageJ hyperstacks want slice-major
// (ZCYX); request it with an option:
//
//	vol, err := stack.Volume(3, scape.WithImageJOrder())
//
// # Export
//
// Whole-series exports stream the file in bounded time chunks, so peak
// memory is chunksize volumes regardless of series length:
//
//	err = stack.SaveAllTIFF("worm01.tif", scape.WithChunkSize(4))
//	err = stack.SaveAllHDF5("worm01.h5", scape.WithConversion(scape.Uint8))
//
// TIFF output is an ImageJ hyperstack (pages in TZC order, voxel scale in
// the page metadata). HDF5 output is a single /data dataset shaped
// (T, Z, C, Y, X) with the voxel scale in an element_size_um attribute.
//
// # Error Handling
//
// Failures carry enough context to diagnose without reading this package's
// internals: *FormatError for files that are not valid containers (short
// header, zero-sized axis and truncated payload are all rejected when the
// file is opened, never lazily), *ClosedError for use after Close, *IndexError
// and *RangeError for out-of-bounds access, *ConversionError and
// *ChunkSizeError for bad arguments. Write failures from the filesystem
// surface wrapped, never swallowed or downgraded.
//
// # Concurrency
//
// The mapping is immutable while the stack is open, so any number of
// goroutines may read volumes from one Stack concurrently. Nothing in this
// package mutates the source file. The one unchecked precondition: no other
// process may truncate or rewrite the file while it is mapped.
package scape
