package hdf5

import (
	"bytes"
	"math"

	"github.com/voxelkit/scape/internal/binary"
)

// All metadata uses 8-byte offsets and lengths, little-endian, which is
// what the native HDF5 library writes on 64-bit machines.
const (
	offsetSize = 8

	// A root group object header is padded to at least this many message
	// bytes, matching the HDF5 library and h5py.
	minGroupChunkSize = 120

	undefinedAddr = ^uint64(0)
)

// superblockSize is the fixed byte length of a version 3 superblock.
const superblockSize = 12 + 4*offsetSize + 4

// superblock serializes a version 3 superblock pointing at the root group
// header and declaring the end of file.
func superblock(eofAddr, rootAddr uint64) []byte {
	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)

	sw.WriteBytes([]byte("\x89HDF\r\n\x1a\n"))
	binary.WriteLE[uint8](sw, 3)          // superblock version
	binary.WriteLE[uint8](sw, offsetSize) // size of offsets
	binary.WriteLE[uint8](sw, offsetSize) // size of lengths
	binary.WriteLE[uint8](sw, 0)          // file consistency flags
	binary.WriteLE[uint64](sw, 0)         // base address
	binary.WriteLE[uint64](sw, undefinedAddr)
	binary.WriteLE[uint64](sw, eofAddr)
	binary.WriteLE[uint64](sw, rootAddr)
	binary.WriteLE[uint32](sw, lookup3(buf.Bytes()))

	return buf.Bytes()
}

// message is one serialized object header message body.
type message struct {
	typ  uint8
	body []byte
}

// Object header message type codes.
const (
	msgDataspace = 0x01
	msgLinkInfo  = 0x02
	msgDatatype  = 0x03
	msgLink      = 0x06
	msgLayout    = 0x08
	msgGroupInfo = 0x0A
	msgAttribute = 0x0C
)

// objectHeaderSize returns the byte length objectHeader will produce.
// Sizes never depend on message content, only on lengths, so layout can
// be computed before any address is known.
func objectHeaderSize(msgs []message, minChunk int) int {
	chunk := 0
	for _, m := range msgs {
		chunk += 4 + len(m.body)
	}
	if chunk < minChunk {
		chunk = minChunk
	}
	return 4 + 1 + 1 + chunkFieldBytes(chunk) + chunk + 4
}

// objectHeader serializes a version 2 object header: "OHDR" prefix, the
// messages, NIL padding up to minChunk, and a trailing lookup3 checksum.
func objectHeader(msgs []message, minChunk int) []byte {
	msgSize := 0
	for _, m := range msgs {
		msgSize += 4 + len(m.body)
	}
	chunk := msgSize
	if chunk < minChunk {
		chunk = minChunk
	}
	fieldBytes := chunkFieldBytes(chunk)

	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)

	sw.WriteString("OHDR")
	binary.WriteLE[uint8](sw, 2)                      // header version
	binary.WriteLE[uint8](sw, uint8(fieldBytes-1))    // flags: chunk size field width
	writeUintN(sw, uint64(chunk), fieldBytes)

	for _, m := range msgs {
		binary.WriteLE[uint8](sw, m.typ)
		binary.WriteLE[uint16](sw, uint16(len(m.body)))
		binary.WriteLE[uint8](sw, 0) // message flags
		sw.WriteBytes(m.body)
	}

	// Pad to the chunk size with a NIL message.
	if pad := chunk - msgSize; pad > 0 {
		binary.WriteLE[uint8](sw, 0x00) // NIL
		binary.WriteLE[uint16](sw, uint16(pad-4))
		binary.WriteLE[uint8](sw, 0)
		sw.WriteZeros(pad - 4)
	}

	binary.WriteLE[uint32](sw, lookup3(buf.Bytes()))
	return buf.Bytes()
}

func chunkFieldBytes(size int) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

func writeUintN(sw *binary.SafeWriter, v uint64, n int) {
	switch n {
	case 1:
		binary.WriteLE[uint8](sw, uint8(v))
	case 2:
		binary.WriteLE[uint16](sw, uint16(v))
	case 4:
		binary.WriteLE[uint32](sw, uint32(v))
	default:
		binary.WriteLE[uint64](sw, v)
	}
}

// linkInfoMessage builds a minimal link info message: no creation order
// tracking, fractal heap and name index undefined.
func linkInfoMessage() message {
	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint8](sw, 0) // version
	binary.WriteLE[uint8](sw, 0) // flags
	binary.WriteLE[uint64](sw, undefinedAddr)
	binary.WriteLE[uint64](sw, undefinedAddr)
	return message{msgLinkInfo, buf.Bytes()}
}

func groupInfoMessage() message {
	return message{msgGroupInfo, []byte{0, 0}}
}

// hardLinkMessage builds a version 1 hard link naming the object at addr.
// Names longer than 255 bytes are not needed here.
func hardLinkMessage(name string, addr uint64) message {
	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint8](sw, 1) // version
	binary.WriteLE[uint8](sw, 0) // flags: 1-byte name length, hard link
	binary.WriteLE[uint8](sw, uint8(len(name)))
	sw.WriteString(name)
	binary.WriteLE[uint64](sw, addr)
	return message{msgLink, buf.Bytes()}
}

// dataspaceMessage builds a version 2 simple dataspace with fixed extents.
func dataspaceMessage(dims []uint64) message {
	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint8](sw, 2) // version
	binary.WriteLE[uint8](sw, uint8(len(dims)))
	binary.WriteLE[uint8](sw, 0) // flags: no max dims
	binary.WriteLE[uint8](sw, 1) // simple dataspace
	for _, d := range dims {
		binary.WriteLE[uint64](sw, d)
	}
	return message{msgDataspace, buf.Bytes()}
}

// uintDatatypeMessage builds a little-endian unsigned fixed-point
// datatype of the given byte size.
func uintDatatypeMessage(size int) message {
	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint8](sw, 0|1<<4) // class fixed-point, version 1
	sw.WriteZeros(3)                  // class bits: LE, unsigned, no padding
	binary.WriteLE[uint32](sw, uint32(size))
	binary.WriteLE[uint16](sw, 0) // bit offset
	binary.WriteLE[uint16](sw, uint16(size*8))
	return message{msgDatatype, buf.Bytes()}
}

// floatDatatypeMessage builds a little-endian IEEE 754 datatype of 4 or
// 8 bytes, with the property block h5py writes.
func floatDatatypeMessage(size int) message {
	signLoc := uint32(31)
	expLoc, expSize, mantSize, bias := uint8(23), uint8(8), uint8(23), uint32(127)
	if size == 8 {
		signLoc = 63
		expLoc, expSize, mantSize, bias = 52, 11, 52, 1023
	}
	classBits := uint32(0) | 1<<5 | signLoc<<8 // LE, normalized mantissa MSB

	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint8](sw, 1|1<<4) // class float, version 1
	binary.WriteLE[uint8](sw, uint8(classBits))
	binary.WriteLE[uint8](sw, uint8(classBits>>8))
	binary.WriteLE[uint8](sw, uint8(classBits>>16))
	binary.WriteLE[uint32](sw, uint32(size))
	binary.WriteLE[uint16](sw, 0) // bit offset
	binary.WriteLE[uint16](sw, uint16(size*8))
	binary.WriteLE[uint8](sw, expLoc)
	binary.WriteLE[uint8](sw, expSize)
	binary.WriteLE[uint8](sw, 0) // mantissa location
	binary.WriteLE[uint8](sw, mantSize)
	binary.WriteLE[uint32](sw, bias)
	return message{msgDatatype, buf.Bytes()}
}

// contiguousLayoutMessage builds a version 3 contiguous data layout.
func contiguousLayoutMessage(addr, size uint64) message {
	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint8](sw, 3) // version
	binary.WriteLE[uint8](sw, 1) // contiguous
	binary.WriteLE[uint64](sw, addr)
	binary.WriteLE[uint64](sw, size)
	return message{msgLayout, buf.Bytes()}
}

// float64AttributeMessage builds a version 3 attribute holding a rank-1
// vector of float64 values.
func float64AttributeMessage(name string, values []float64) message {
	dt := floatDatatypeMessage(8).body
	ds := dataspaceMessage([]uint64{uint64(len(values))}).body

	buf := &bytes.Buffer{}
	sw := binary.NewSafeWriter(buf)
	binary.WriteLE[uint8](sw, 3) // version
	binary.WriteLE[uint8](sw, 0) // flags
	binary.WriteLE[uint16](sw, uint16(len(name)+1))
	binary.WriteLE[uint16](sw, uint16(len(dt)))
	binary.WriteLE[uint16](sw, uint16(len(ds)))
	binary.WriteLE[uint8](sw, 0) // name encoding: ASCII
	sw.WriteString(name)
	binary.WriteLE[uint8](sw, 0)
	sw.WriteBytes(dt)
	sw.WriteBytes(ds)
	for _, v := range values {
		binary.WriteLE[uint64](sw, math.Float64bits(v))
	}
	return message{msgAttribute, buf.Bytes()}
}
