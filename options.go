package scape

// DefaultChunkSize is the number of volumes a whole-series export reads
// per iteration when WithChunkSize is not given.
const DefaultChunkSize = 10

// Option configures volume reads and exports.
//
// Options use the functional options pattern:
//
//	vol, err := stack.Volume(2, scape.WithImageJOrder())
//	err = stack.SaveAllTIFF("out.tif",
//	    scape.WithConversion(scape.Uint8),
//	    scape.WithChunkSize(4),
//	)
type Option func(*options)

// options holds resolved configuration.
type options struct {
	imageJ     bool       // slice-major ZCYX instead of native CZYX
	conversion Conversion // export sample representation
	chunkSize  int        // volumes per export iteration
}

// resolveOptions applies opts over the defaults.
func resolveOptions(opts []Option) *options {
	o := &options{
		imageJ:     false,
		conversion: Uint16,
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithImageJOrder reorders volumes slice-major (ZCYX), the axis convention
// ImageJ hyperstacks use. The default is the container-native channel-major
// order (CZYX). Reordering is a pure axis permutation; no sample value
// changes.
//
// Exports to TIFF and HDF5 always use ImageJ order, so this option only
// affects ReadVolume, ReadVolumes and the Stack convenience readers.
func WithImageJOrder() Option {
	return func(o *options) {
		o.imageJ = true
	}
}

// WithConversion selects the sample representation exports write.
// The default is Uint16 (payload passthrough).
//
// In-process reads ignore this option; their output element type already
// fixes the conversion.
func WithConversion(c Conversion) Option {
	return func(o *options) {
		o.conversion = c
	}
}

// WithChunkSize sets how many volumes a whole-series export reads per
// iteration. Peak export memory is chunk size × Header.BytesPerVolume
// (times a small constant for conversion buffers), so smaller chunks trade
// throughput for memory. Chunk size never affects output content, only I/O
// granularity.
//
// A non-positive value makes the export fail with *ChunkSizeError before
// any I/O begins.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}
