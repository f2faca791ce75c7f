package scape

// AxisOrder identifies the memory ordering of a volume's first two axes.
// The two trailing axes are always (Y, X).
type AxisOrder uint8

const (
	// OrderCZYX is the container-native channel-major ordering.
	OrderCZYX AxisOrder = iota

	// OrderZCYX is the slice-major ordering ImageJ hyperstacks use.
	OrderZCYX
)

// String returns "CZYX" or "ZCYX".
func (o AxisOrder) String() string {
	if o == OrderZCYX {
		return "ZCYX"
	}
	return "CZYX"
}

// Volume is one time point: a rank-4 block of samples in Order, flat and
// row-major in Data. Its memory layout matches the byte layout the export
// containers expect for that order, so serializing Data verbatim is always
// correct.
type Volume[S Sample] struct {
	Order AxisOrder
	Dims  [4]int // axis extents in Order
	Data  []S
}

// At returns the sample at (a, b, y, x), where (a, b) follow Order:
// (channel, slice) for CZYX, (slice, channel) for ZCYX.
func (v *Volume[S]) At(a, b, y, x int) S {
	return v.Data[((a*v.Dims[1]+b)*v.Dims[2]+y)*v.Dims[3]+x]
}

// Plane returns the (a, b) slice's Y×X samples as a shared view.
func (v *Volume[S]) Plane(a, b int) []S {
	n := v.Dims[2] * v.Dims[3]
	return v.Data[(a*v.Dims[1]+b)*n:][:n]
}

// NumPlanes returns the page count of the volume (product of the two
// leading axes).
func (v *Volume[S]) NumPlanes() int {
	return v.Dims[0] * v.Dims[1]
}

// Transposed returns a copy with the first two axes swapped, toggling
// between CZYX and ZCYX. Sample values are unchanged; applying Transposed
// twice reproduces the original exactly.
func (v *Volume[S]) Transposed() *Volume[S] {
	out := &Volume[S]{
		Order: OrderZCYX,
		Dims:  [4]int{v.Dims[1], v.Dims[0], v.Dims[2], v.Dims[3]},
		Data:  make([]S, len(v.Data)),
	}
	if v.Order == OrderZCYX {
		out.Order = OrderCZYX
	}

	n := v.Dims[2] * v.Dims[3]
	for a := 0; a < v.Dims[0]; a++ {
		for b := 0; b < v.Dims[1]; b++ {
			copy(out.Data[(b*v.Dims[0]+a)*n:][:n], v.Plane(a, b))
		}
	}
	return out
}

// Series is a contiguous run of time points: rank-5 with a leading T axis
// over volumes that share one Order.
type Series[S Sample] struct {
	Order AxisOrder
	Start int    // absolute index of the first time point
	Dims  [5]int // (T, a, b, Y, X) with (a, b) per Order
	Data  []S
}

// Len returns the number of time points.
func (s *Series[S]) Len() int {
	return s.Dims[0]
}

// Volume returns time point k as a shared view into the series data.
func (s *Series[S]) Volume(k int) *Volume[S] {
	n := s.Dims[1] * s.Dims[2] * s.Dims[3] * s.Dims[4]
	return &Volume[S]{
		Order: s.Order,
		Dims:  [4]int{s.Dims[1], s.Dims[2], s.Dims[3], s.Dims[4]},
		Data:  s.Data[k*n:][:n],
	}
}

// ReadVolume extracts volume index from the stack, converting samples to
// the element type S (see Conversion for the conversion rules). The result
// is an independent copy; it stays valid after the stack is closed.
//
// Axis order is CZYX unless WithImageJOrder is given.
func ReadVolume[S Sample](s *Stack, index int, opts ...Option) (*Volume[S], error) {
	o := resolveOptions(opts)

	raw, err := s.volumeBytes(index, "read volume")
	if err != nil {
		return nil, err
	}

	h := s.header
	vol := &Volume[S]{
		Order: OrderCZYX,
		Dims:  [4]int{h.NChannel, h.Depth, h.Height, h.Width},
		Data:  make([]S, h.PixelsPerVolume()),
	}
	if o.imageJ {
		vol.Order = OrderZCYX
		vol.Dims = [4]int{h.Depth, h.NChannel, h.Height, h.Width}
	}

	convertVolume(vol.Data, raw, h, o.imageJ)
	return vol, nil
}

// ReadVolumes extracts the time range [start, end) in one pass over the
// mapping. The result is element-for-element identical to reading each
// index with ReadVolume and stacking along a new leading axis.
func ReadVolumes[S Sample](s *Stack, start, end int, opts ...Option) (*Series[S], error) {
	o := resolveOptions(opts)

	raw, err := s.rangeBytes(start, end, "read volumes")
	if err != nil {
		return nil, err
	}

	h := s.header
	n := end - start
	ser := &Series[S]{
		Order: OrderCZYX,
		Start: start,
		Dims:  [5]int{n, h.NChannel, h.Depth, h.Height, h.Width},
		Data:  make([]S, n*h.PixelsPerVolume()),
	}
	if o.imageJ {
		ser.Order = OrderZCYX
		ser.Dims = [5]int{n, h.Depth, h.NChannel, h.Height, h.Width}
	}

	bpv := h.BytesPerVolume()
	ppv := h.PixelsPerVolume()
	for t := 0; t < n; t++ {
		convertVolume(ser.Data[t*ppv:][:ppv], raw[t*bpv:][:bpv], h, o.imageJ)
	}
	return ser, nil
}

// Volume is the non-generic passthrough read: uint16 samples, no
// conversion.
func (s *Stack) Volume(index int, opts ...Option) (*Volume[uint16], error) {
	return ReadVolume[uint16](s, index, opts...)
}

// Volumes is the non-generic passthrough range read.
func (s *Stack) Volumes(start, end int, opts ...Option) (*Series[uint16], error) {
	return ReadVolumes[uint16](s, start, end, opts...)
}

// convertVolume decodes one volume's raw CZYX payload bytes into dst,
// optionally permuting to ZCYX. Conversion and permutation happen in the
// same pass, one contiguous Y×X plane at a time.
func convertVolume[S Sample](dst []S, raw []byte, h Header, imageJ bool) {
	planeBytes := h.BytesPerXY()
	planePix := h.Height * h.Width

	for c := 0; c < h.NChannel; c++ {
		for z := 0; z < h.Depth; z++ {
			src := raw[(c*h.Depth+z)*planeBytes:][:planeBytes]
			p := c*h.Depth + z
			if imageJ {
				p = z*h.NChannel + c
			}
			fillSamples(dst[p*planePix:][:planePix], src)
		}
	}
}
