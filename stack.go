package scape

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"
)

// Stack provides random access to the volumes of one open 3DU16 file.
//
// Open decodes the header, validates the payload length and memory-maps
// the file read-only. Volume reads slice the mapping directly, so a read
// costs one bounded copy into the caller's element type and nothing more.
//
// Always call Close when done to release the mapping and the file handle:
//
//	stack, err := scape.Open("worm01.3DU16")
//	if err != nil {
//		return err
//	}
//	defer stack.Close()
//
// A Stack is safe for concurrent reads; Close must not race with them.
type Stack struct {
	path   string
	header Header

	file   *os.File
	mapped mmap.MMap
	closed bool
}

// Open opens a 3DU16 container for reading.
//
// The header is decoded and every structural invariant checked eagerly:
// the filename suffix, the header length, zero-sized dimensions, and that
// the payload holds at least NFrame full volumes. A file that opens
// successfully never produces an out-of-bounds access later.
func Open(path string) (*Stack, error) {
	if err := checkSuffix(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	size := stat.Size()

	header, err := DecodeHeader(f, size, path)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Truncation check happens here, once, so per-access offset math can
	// trust the mapping unconditionally.
	need := int64(header.NFrame) * int64(header.BytesPerVolume())
	if size-HeaderSize < need {
		f.Close()
		return nil, &FormatError{
			Path: path,
			Reason: fmt.Sprintf("payload is %d bytes, %d frames need %d",
				size-HeaderSize, header.NFrame, need),
		}
	}

	// Offsets into an mmap must be page-aligned, so map the whole file and
	// slice past the header instead of mapping the payload region alone.
	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &Stack{
		path:   path,
		header: header,
		file:   f,
		mapped: mapped,
	}, nil
}

// OpenMany opens multiple containers concurrently.
//
// Files are opened in parallel using up to runtime.NumCPU() goroutines and
// returned in input order. If any open fails, the successfully opened
// stacks are closed and the first error is returned.
func OpenMany(ctx context.Context, paths ...string) ([]*Stack, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	results := make([]*Stack, len(paths))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			s, err := Open(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			results[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, s := range results {
			if s != nil {
				s.Close()
			}
		}
		return nil, err
	}

	return results, nil
}

// Header returns the decoded container header.
func (s *Stack) Header() Header {
	return s.header
}

// Path returns the path of the underlying file.
func (s *Stack) Path() string {
	return s.path
}

// Close releases the mapping and the file handle. Close is idempotent;
// calling it again returns nil.
func (s *Stack) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.mapped.Unmap()
	s.mapped = nil

	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// payload returns the mapped payload region.
func (s *Stack) payload(op string) ([]byte, error) {
	if s.closed {
		return nil, &ClosedError{Path: s.path, Op: op}
	}
	return s.mapped[HeaderSize:], nil
}

// volumeBytes returns the raw payload bytes of volume index, exactly
// BytesPerVolume long at offset index*BytesPerVolume.
func (s *Stack) volumeBytes(index int, op string) ([]byte, error) {
	p, err := s.payload(op)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= s.header.NFrame {
		return nil, &IndexError{Index: index, NFrame: s.header.NFrame}
	}

	bpv := s.header.BytesPerVolume()
	return p[index*bpv : (index+1)*bpv], nil
}

// rangeBytes returns the contiguous raw bytes of volumes [start, end).
func (s *Stack) rangeBytes(start, end int, op string) ([]byte, error) {
	p, err := s.payload(op)
	if err != nil {
		return nil, err
	}

	nf := s.header.NFrame
	if start < 0 || start >= nf {
		return nil, &IndexError{Index: start, NFrame: nf}
	}
	if end < 0 || end > nf {
		return nil, &IndexError{Index: end, NFrame: nf}
	}
	if start >= end {
		return nil, &RangeError{Start: start, End: end}
	}

	bpv := s.header.BytesPerVolume()
	return p[start*bpv : end*bpv], nil
}
