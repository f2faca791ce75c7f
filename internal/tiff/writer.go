// Package tiff writes multi-page ImageJ hyperstack TIFF files.
//
// The writer streams: pages are appended one at a time and never buffered
// beyond the page being written, so callers control peak memory. Output is
// classic little-endian TIFF, one strip per page, uncompressed grayscale.
// The first page carries the ImageJ description block and every page
// carries the voxel scale as resolution tags, which is what ImageJ needs
// to reassemble the pages into a (frames, slices, channels) hyperstack.
package tiff

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/voxelkit/scape/internal/binary"
)

// TIFF field types.
const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// Classic TIFF offsets are 32-bit; refuse to grow past this.
const maxFileSize = 0xFFFFFF00

// Config describes one hyperstack file.
type Config struct {
	Width  int
	Height int

	// Page structure: pages are ordered slice-major within a frame
	// (for t: for z: for c), Frames*Slices*Channels pages in total.
	Channels int
	Slices   int
	Frames   int

	BitsPerSample int    // 8, 16 or 32
	SampleFormat  uint16 // 1 = unsigned integer, 3 = IEEE float

	XResolution float64 // pixels per physical unit
	YResolution float64 // pixels per physical unit
	SpacingZ    float64 // physical units per slice
	Unit        string  // physical unit name, e.g. "um"
}

// Pages returns the total page count of the hyperstack.
func (c Config) Pages() int {
	return c.Frames * c.Slices * c.Channels
}

// PageBytes returns the byte length of one page's pixel data.
func (c Config) PageBytes() int {
	return c.Width * c.Height * c.BitsPerSample / 8
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.Channels <= 0 || c.Slices <= 0 || c.Frames <= 0 {
		return fmt.Errorf("tiff: non-positive dimension in config %+v", c)
	}
	switch c.BitsPerSample {
	case 8, 16, 32:
	default:
		return fmt.Errorf("tiff: unsupported bits per sample %d", c.BitsPerSample)
	}
	return nil
}

// Writer streams pages into one hyperstack file.
type Writer struct {
	f   *os.File
	cfg Config

	pos     int64 // next write position
	written int   // pages written so far
	linkPos int64 // position of the 4-byte slot naming the next IFD
	closed  bool
}

// Create opens path for writing and emits the TIFF header. The first IFD
// offset is patched in when the first page arrives.
func Create(path string, cfg Config) (*Writer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	sw.WriteString("II")
	binary.WriteLE[uint16](sw, 42)
	binary.WriteLE[uint32](sw, 0) // first IFD offset, patched by WritePage

	if _, err := f.WriteAt(buf.Bytes(), 0); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		f:       f,
		cfg:     cfg,
		pos:     8,
		linkPos: 4,
	}, nil
}

// WritePage appends one page of raw little-endian pixel data. len(pix)
// must equal Config.PageBytes. Pages must arrive in hyperstack order.
func (w *Writer) WritePage(pix []byte) error {
	if w.closed {
		return fmt.Errorf("tiff: write on closed writer")
	}
	if w.written >= w.cfg.Pages() {
		return fmt.Errorf("tiff: page %d exceeds declared count %d", w.written, w.cfg.Pages())
	}
	if len(pix) != w.cfg.PageBytes() {
		return fmt.Errorf("tiff: page is %d bytes, want %d", len(pix), w.cfg.PageBytes())
	}
	if w.pos+int64(len(pix)) > maxFileSize {
		return fmt.Errorf("tiff: output exceeds 4GiB classic TIFF limit")
	}

	// Strip data first, then the IFD that points back at it.
	dataOff := w.pos
	if _, err := w.f.WriteAt(pix, dataOff); err != nil {
		return fmt.Errorf("tiff: write page data: %w", err)
	}
	w.pos += int64(len(pix))
	if w.pos%2 != 0 {
		// IFDs must start on a word boundary.
		if _, err := w.f.WriteAt([]byte{0}, w.pos); err != nil {
			return fmt.Errorf("tiff: pad page data: %w", err)
		}
		w.pos++
	}

	ifdOff := w.pos
	ifd, nextLink := w.buildIFD(uint32(dataOff), uint32(ifdOff))
	if _, err := w.f.WriteAt(ifd, ifdOff); err != nil {
		return fmt.Errorf("tiff: write IFD: %w", err)
	}
	w.pos += int64(len(ifd))

	// Link the previous IFD (or the header) to this one.
	var link [4]byte
	putUint32(link[:], uint32(ifdOff))
	if _, err := w.f.WriteAt(link[:], w.linkPos); err != nil {
		return fmt.Errorf("tiff: link IFD: %w", err)
	}
	w.linkPos = nextLink

	w.written++
	return nil
}

// Close verifies the declared page count was written and releases the
// file. The final IFD's next pointer is already zero.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.written != w.cfg.Pages() {
		w.f.Close()
		return fmt.Errorf("tiff: wrote %d of %d declared pages", w.written, w.cfg.Pages())
	}

	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// ifdEntry is one 12-byte directory entry.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value uint32
}

// buildIFD serializes the directory for the current page, including the
// out-of-line value area (description and resolution rationals), and
// returns the bytes plus the absolute position of the next-IFD slot.
func (w *Writer) buildIFD(dataOff, ifdOff uint32) ([]byte, int64) {
	cfg := w.cfg

	var desc []byte
	if w.written == 0 {
		desc = w.description()
	}

	entries := []ifdEntry{
		{256, typeLong, 1, uint32(cfg.Width)},
		{257, typeLong, 1, uint32(cfg.Height)},
		{258, typeShort, 1, uint32(cfg.BitsPerSample)},
		{259, typeShort, 1, 1}, // no compression
		{262, typeShort, 1, 1}, // BlackIsZero
	}
	if desc != nil {
		entries = append(entries, ifdEntry{270, typeASCII, uint32(len(desc)), 0})
	}
	entries = append(entries,
		ifdEntry{273, typeLong, 1, dataOff},
		ifdEntry{277, typeShort, 1, 1},
		ifdEntry{278, typeLong, 1, uint32(cfg.Height)},
		ifdEntry{279, typeLong, 1, uint32(cfg.PageBytes())},
		ifdEntry{282, typeRational, 1, 0},
		ifdEntry{283, typeRational, 1, 0},
		ifdEntry{296, typeShort, 1, 1}, // unit lives in the description
		ifdEntry{339, typeShort, 1, uint32(cfg.SampleFormat)},
	)

	// Out-of-line values sit directly after the next-IFD pointer.
	auxOff := ifdOff + uint32(2+12*len(entries)+4)
	aux := &bytes.Buffer{}
	for i := range entries {
		switch entries[i].tag {
		case 270:
			entries[i].value = auxOff + uint32(aux.Len())
			aux.Write(desc)
			if aux.Len()%2 != 0 {
				aux.WriteByte(0)
			}
		case 282:
			entries[i].value = auxOff + uint32(aux.Len())
			writeRational(aux, cfg.XResolution)
		case 283:
			entries[i].value = auxOff + uint32(aux.Len())
			writeRational(aux, cfg.YResolution)
		}
	}

	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint16](sw, uint16(len(entries)))
	for _, e := range entries {
		binary.WriteLE[uint16](sw, e.tag)
		binary.WriteLE[uint16](sw, e.typ)
		binary.WriteLE[uint32](sw, e.count)
		binary.WriteLE[uint32](sw, e.value)
	}
	nextLink := int64(ifdOff) + int64(buf.Len())
	binary.WriteLE[uint32](sw, 0) // next IFD, patched by the next page
	sw.WriteBytes(aux.Bytes())

	return buf.Bytes(), nextLink
}

// description builds the ImageJ block that turns a flat page sequence
// into a hyperstack.
func (w *Writer) description() []byte {
	cfg := w.cfg
	s := fmt.Sprintf(
		"ImageJ=1.11a\nimages=%d\nchannels=%d\nslices=%d\nframes=%d\n"+
			"hyperstack=true\nmode=grayscale\nunit=%s\nspacing=%g\nloop=false\n",
		cfg.Pages(), cfg.Channels, cfg.Slices, cfg.Frames, cfg.Unit, cfg.SpacingZ)
	return append([]byte(s), 0)
}

// writeRational encodes v as a uint32 fraction with a fixed denominator.
func writeRational(buf *bytes.Buffer, v float64) {
	const den = 1000000
	num := uint32(0)
	if v > 0 && v*den < math.MaxUint32 {
		num = uint32(math.Round(v * den))
	}
	var b [8]byte
	putUint32(b[:4], num)
	putUint32(b[4:], den)
	buf.Write(b[:])
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
