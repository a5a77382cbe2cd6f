package bitio

import (
	"encoding/binary"
	"math"
)

// EncoderBuffer is an append-only byte sink mirroring DecoderBuffer.
//
// In bit mode, bits go to a side BitEncoder; EndBitEncoding splices the
// optional varint length prefix and the packed bytes onto the buffer in
// that order so already-written bytes are never moved.
type EncoderBuffer struct {
	buf        []byte
	bitMode    bool
	encodeSize bool
	bits       BitEncoder
}

// NewEncoderBuffer returns an EncoderBuffer with capacity for expectedSize
// bytes.
func NewEncoderBuffer(expectedSize int) *EncoderBuffer {
	if expectedSize < 64 {
		expectedSize = 64
	}
	return &EncoderBuffer{buf: make([]byte, 0, expectedSize)}
}

// NewEncoderBufferFrom returns an EncoderBuffer that appends to buf[:0],
// reusing its capacity.
func NewEncoderBufferFrom(buf []byte) *EncoderBuffer {
	return &EncoderBuffer{buf: buf[:0]}
}

// Bytes returns the encoded data.
func (e *EncoderBuffer) Bytes() []byte { return e.buf }

// Len returns the number of encoded bytes.
func (e *EncoderBuffer) Len() int { return len(e.buf) }

// EncodeU8 appends one byte.
func (e *EncoderBuffer) EncodeU8(v uint8) { e.buf = append(e.buf, v) }

// EncodeU16 appends a little-endian uint16.
func (e *EncoderBuffer) EncodeU16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }

// EncodeU32 appends a little-endian uint32.
func (e *EncoderBuffer) EncodeU32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

// EncodeU64 appends a little-endian uint64.
func (e *EncoderBuffer) EncodeU64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

// EncodeI32 appends a little-endian int32.
func (e *EncoderBuffer) EncodeI32(v int32) { e.EncodeU32(uint32(v)) }

// EncodeF32 appends a little-endian float32.
func (e *EncoderBuffer) EncodeF32(v float32) { e.EncodeU32(math.Float32bits(v)) }

// EncodeBytes appends raw bytes.
func (e *EncoderBuffer) EncodeBytes(b []byte) { e.buf = append(e.buf, b...) }

// EncodeVarint appends v as a base-128 varint, least significant chunk
// first.
func (e *EncoderBuffer) EncodeVarint(v uint64) { e.buf = AppendVarint(e.buf, v) }

// AppendVarint appends the varint encoding of v to dst.
func AppendVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// StartBitEncoding enters bit mode. requiredBits is a capacity hint; when
// encodeSize is set the byte length of the bit section is prefixed as a
// varint by EndBitEncoding.
func (e *EncoderBuffer) StartBitEncoding(requiredBits int, encodeSize bool) error {
	if e.bitMode {
		return ErrAlreadyBitMode
	}
	if requiredBits < 0 {
		return ErrBadLength
	}
	e.bits.Reset()
	if cap(e.bits.buf) < (requiredBits+7)/8 {
		e.bits = *NewBitEncoder(requiredBits)
	}
	e.bitMode = true
	e.encodeSize = encodeSize
	return nil
}

// EncodeLeastSignificantBits32 writes the nbits low bits of v in bit mode.
func (e *EncoderBuffer) EncodeLeastSignificantBits32(nbits int, v uint32) error {
	if !e.bitMode {
		return ErrNotBitMode
	}
	if nbits < 0 || nbits > 32 {
		return ErrBadLength
	}
	e.bits.PutBits(v, nbits)
	return nil
}

// EndBitEncoding leaves bit mode and flushes the packed bits.
func (e *EncoderBuffer) EndBitEncoding() {
	if !e.bitMode {
		return
	}
	data := e.bits.Bytes()
	if e.encodeSize {
		e.EncodeVarint(uint64(len(data)))
	}
	e.buf = append(e.buf, data...)
	e.bitMode = false
}
