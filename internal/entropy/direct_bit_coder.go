package entropy

import (
	"encoding/binary"

	"github.com/deepteams/draco/internal/bitio"
)

// DirectBitEncoder stores bits uncompressed in 32-bit words, most
// significant bit first.
type DirectBitEncoder struct {
	words    []uint32
	local    uint32
	numLocal int
}

// NewDirectBitEncoder returns a DirectBitEncoder.
func NewDirectBitEncoder() *DirectBitEncoder { return &DirectBitEncoder{} }

// StartEncoding discards buffered bits.
func (e *DirectBitEncoder) StartEncoding() {
	e.words = e.words[:0]
	e.local = 0
	e.numLocal = 0
}

func (e *DirectBitEncoder) flushWord() {
	e.words = append(e.words, e.local)
	e.local = 0
	e.numLocal = 0
}

// EncodeBit appends one bit.
func (e *DirectBitEncoder) EncodeBit(bit bool) {
	if bit {
		e.local |= 1 << uint(31-e.numLocal)
	}
	e.numLocal++
	if e.numLocal == 32 {
		e.flushWord()
	}
}

// EncodeLeastSignificantBits32 appends the nbits low bits of v.
func (e *DirectBitEncoder) EncodeLeastSignificantBits32(nbits int, v uint32) {
	if nbits <= 0 {
		return
	}
	remaining := 32 - e.numLocal
	v <<= uint(32 - nbits)
	if nbits <= remaining {
		e.local |= v >> uint(e.numLocal)
		e.numLocal += nbits
		if e.numLocal == 32 {
			e.flushWord()
		}
		return
	}
	e.local |= v >> uint(e.numLocal)
	e.words = append(e.words, e.local)
	e.numLocal = nbits - remaining
	e.local = v << uint(remaining)
}

// EndEncoding writes a u32 byte count followed by the words.
func (e *DirectBitEncoder) EndEncoding(dst *bitio.EncoderBuffer) error {
	e.words = append(e.words, e.local)
	dst.EncodeU32(uint32(len(e.words) * 4))
	for _, w := range e.words {
		dst.EncodeU32(w)
	}
	e.StartEncoding()
	return nil
}

// DirectBitDecoder reads streams written by DirectBitEncoder.
type DirectBitDecoder struct {
	words []uint32
	pos   int
	used  int
	err   error
}

// NewDirectBitDecoder returns a DirectBitDecoder.
func NewDirectBitDecoder() *DirectBitDecoder { return &DirectBitDecoder{} }

// StartDecoding reads the word array. The byte count must be a positive
// multiple of four.
func (d *DirectBitDecoder) StartDecoding(src *bitio.DecoderBuffer) error {
	*d = DirectBitDecoder{}
	size, err := src.DecodeU32()
	if err != nil {
		return err
	}
	if size == 0 || size&3 != 0 {
		return bitio.ErrBadLength
	}
	if int64(size) > int64(src.RemainingSize()) {
		return ErrOutOfData
	}
	raw, err := src.DecodeBytes(int(size))
	if err != nil {
		return err
	}
	d.words = make([]uint32, size/4)
	for i := range d.words {
		d.words[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return nil
}

// DecodeNextBit reads one bit.
func (d *DirectBitDecoder) DecodeNextBit() bool {
	if d.pos >= len(d.words) {
		d.err = ErrOutOfData
		return false
	}
	bit := d.words[d.pos]&(1<<uint(31-d.used)) != 0
	d.used++
	if d.used == 32 {
		d.pos++
		d.used = 0
	}
	return bit
}

// DecodeLeastSignificantBits32 reads nbits (0..32).
func (d *DirectBitDecoder) DecodeLeastSignificantBits32(nbits int) uint32 {
	if nbits <= 0 {
		return 0
	}
	remaining := 32 - d.used
	if nbits <= remaining {
		if d.pos >= len(d.words) {
			d.err = ErrOutOfData
			return 0
		}
		v := (d.words[d.pos] << uint(d.used)) >> uint(32-nbits)
		d.used += nbits
		if d.used == 32 {
			d.pos++
			d.used = 0
		}
		return v
	}
	if d.pos+1 >= len(d.words) {
		d.err = ErrOutOfData
		return 0
	}
	hi := d.words[d.pos] << uint(d.used)
	d.used = nbits - remaining
	d.pos++
	lo := d.words[d.pos] >> uint(32-d.used)
	return (hi >> uint(32-d.used-remaining)) | lo
}

// EndDecoding reports any read past the end of the data.
func (d *DirectBitDecoder) EndDecoding() error { return d.err }
