package bitio

import (
	"encoding/binary"
	"errors"
	"math"
)

// Errors returned by DecoderBuffer.
var (
	ErrOutOfData      = errors.New("bitio: out of data")
	ErrNotBitMode     = errors.New("bitio: buffer is not in bit mode")
	ErrAlreadyBitMode = errors.New("bitio: buffer is already in bit mode")
	ErrVarintOverflow = errors.New("bitio: varint overflow")
	ErrBadLength      = errors.New("bitio: invalid length field")
)

// DecoderBuffer is a read cursor over an immutable byte slice.
//
// Besides byte-aligned little-endian reads, the buffer can be switched into
// a bit mode in which raw bit fields are read through an embedded
// BitDecoder. SubBuffer views share the backing array but own their cursor.
type DecoderBuffer struct {
	data    []byte
	pos     int
	bitMode bool
	bits    BitDecoder
	version uint16
}

// NewDecoderBuffer returns a DecoderBuffer positioned at the start of data.
func NewDecoderBuffer(data []byte) *DecoderBuffer {
	return &DecoderBuffer{data: data}
}

// SetVersion records the bitstream version used by version-dependent reads.
func (d *DecoderBuffer) SetVersion(v uint16) { d.version = v }

// Version returns the bitstream version.
func (d *DecoderBuffer) Version() uint16 { return d.version }

// Pos returns the current byte position.
func (d *DecoderBuffer) Pos() int { return d.pos }

// Len returns the total size of the underlying data.
func (d *DecoderBuffer) Len() int { return len(d.data) }

// RemainingSize returns the number of unread bytes.
func (d *DecoderBuffer) RemainingSize() int { return len(d.data) - d.pos }

// Remaining returns the unread bytes without copying.
func (d *DecoderBuffer) Remaining() []byte { return d.data[d.pos:] }

func (d *DecoderBuffer) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrOutOfData
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// DecodeU8 reads one byte.
func (d *DecoderBuffer) DecodeU8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// DecodeU16 reads a little-endian uint16.
func (d *DecoderBuffer) DecodeU16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// DecodeU32 reads a little-endian uint32.
func (d *DecoderBuffer) DecodeU32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// DecodeU64 reads a little-endian uint64.
func (d *DecoderBuffer) DecodeU64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// DecodeI32 reads a little-endian int32.
func (d *DecoderBuffer) DecodeI32() (int32, error) {
	v, err := d.DecodeU32()
	return int32(v), err
}

// DecodeI64 reads a little-endian int64.
func (d *DecoderBuffer) DecodeI64() (int64, error) {
	v, err := d.DecodeU64()
	return int64(v), err
}

// DecodeF32 reads a little-endian IEEE 754 float32.
func (d *DecoderBuffer) DecodeF32() (float32, error) {
	v, err := d.DecodeU32()
	return math.Float32frombits(v), err
}

// DecodeBytes returns the next n bytes. The result aliases the buffer.
func (d *DecoderBuffer) DecodeBytes(n int) ([]byte, error) {
	return d.take(n)
}

// Peek returns the next n bytes without advancing.
func (d *DecoderBuffer) Peek(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrOutOfData
	}
	return d.data[d.pos : d.pos+n], nil
}

// Advance skips n bytes.
func (d *DecoderBuffer) Advance(n int) error {
	_, err := d.take(n)
	return err
}

// DecodeVarintU64 reads a base-128 varint. Each byte carries seven payload
// bits with bit 7 flagging continuation; the first byte holds the least
// significant chunk and later chunks are shifted above it.
func (d *DecoderBuffer) DecodeVarintU64() (uint64, error) {
	return d.decodeVarint(0)
}

func (d *DecoderBuffer) decodeVarint(depth int) (uint64, error) {
	// 10 bytes cover 64 bits.
	if depth >= 10 {
		return 0, ErrVarintOverflow
	}
	in, err := d.DecodeU8()
	if err != nil {
		return 0, err
	}
	if in&0x80 == 0 {
		return uint64(in), nil
	}
	hi, err := d.decodeVarint(depth + 1)
	if err != nil {
		return 0, err
	}
	if hi > math.MaxUint64>>7 {
		return 0, ErrVarintOverflow
	}
	return hi<<7 | uint64(in&0x7f), nil
}

// DecodeVarintU32 reads a varint that must fit in 32 bits.
func (d *DecoderBuffer) DecodeVarintU32() (uint32, error) {
	v, err := d.DecodeVarintU64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, ErrVarintOverflow
	}
	return uint32(v), nil
}

// DecodeVarintU16 reads a varint that must fit in 16 bits.
func (d *DecoderBuffer) DecodeVarintU16() (uint16, error) {
	v, err := d.DecodeVarintU64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint16 {
		return 0, ErrVarintOverflow
	}
	return uint16(v), nil
}

// StartBitDecoding switches the buffer into bit mode. When decodeSize is
// set, a varint byte length of the bit section is read first and returned.
func (d *DecoderBuffer) StartBitDecoding(decodeSize bool) (uint64, error) {
	if d.bitMode {
		return 0, ErrAlreadyBitMode
	}
	var size uint64
	if decodeSize {
		var err error
		if size, err = d.DecodeVarintU64(); err != nil {
			return 0, err
		}
		if size > uint64(d.RemainingSize()) {
			return 0, ErrBadLength
		}
	}
	d.bits.Reset(d.data[d.pos:])
	d.bitMode = true
	return size, nil
}

// EndBitDecoding leaves bit mode and moves the cursor past every byte the
// bit decoder touched.
func (d *DecoderBuffer) EndBitDecoding() {
	if !d.bitMode {
		return
	}
	d.pos += (d.bits.BitsDecoded() + 7) / 8
	d.bitMode = false
}

// DecodeLeastSignificantBits32 reads nbits (0..32) in bit mode.
func (d *DecoderBuffer) DecodeLeastSignificantBits32(nbits int) (uint32, error) {
	if !d.bitMode {
		return 0, ErrNotBitMode
	}
	return d.bits.GetBits(nbits)
}

// SubBuffer returns a view of the data starting offset bytes past the
// cursor. The view shares storage with d and inherits its version.
func (d *DecoderBuffer) SubBuffer(offset int) (*DecoderBuffer, error) {
	if offset < 0 || d.pos+offset > len(d.data) {
		return nil, ErrOutOfData
	}
	return &DecoderBuffer{data: d.data[d.pos+offset:], version: d.version}, nil
}
