package entropy

import (
	"github.com/deepteams/draco/internal/bitio"
)

// BitEncoder is the capability shared by every binary coder.
type BitEncoder interface {
	StartEncoding()
	EncodeBit(bit bool)
	// EncodeLeastSignificantBits32 writes the nbits low bits of v, most
	// significant first.
	EncodeLeastSignificantBits32(nbits int, v uint32)
	EndEncoding(dst *bitio.EncoderBuffer) error
}

// BitDecoder is the decoding counterpart of BitEncoder. Decode errors are
// sticky and reported by EndDecoding.
type BitDecoder interface {
	StartDecoding(src *bitio.DecoderBuffer) error
	DecodeNextBit() bool
	DecodeLeastSignificantBits32(nbits int) uint32
	EndDecoding() error
}

// RAnsBitEncoder codes booleans against a single learned probability of
// zero. Bits are buffered and emitted in reverse at EndEncoding because
// the rANS decoder consumes the stream back to front.
type RAnsBitEncoder struct {
	counts   [2]uint64
	bits     []uint32
	local    uint32
	numLocal int
}

// NewRAnsBitEncoder returns a ready RAnsBitEncoder.
func NewRAnsBitEncoder() *RAnsBitEncoder { return &RAnsBitEncoder{} }

// StartEncoding discards any buffered bits.
func (e *RAnsBitEncoder) StartEncoding() {
	e.counts = [2]uint64{}
	e.bits = e.bits[:0]
	e.local = 0
	e.numLocal = 0
}

// EncodeBit buffers one bit.
func (e *RAnsBitEncoder) EncodeBit(bit bool) {
	if bit {
		e.counts[1]++
		e.local |= 1 << uint(e.numLocal)
	} else {
		e.counts[0]++
	}
	e.numLocal++
	if e.numLocal == 32 {
		e.bits = append(e.bits, e.local)
		e.local = 0
		e.numLocal = 0
	}
}

// EncodeLeastSignificantBits32 buffers nbits of v, most significant first.
func (e *RAnsBitEncoder) EncodeLeastSignificantBits32(nbits int, v uint32) {
	for i := nbits - 1; i >= 0; i-- {
		e.EncodeBit((v>>uint(i))&1 != 0)
	}
}

// zeroProbability quantizes P(bit=0) to [1, 255] in 1/256 units.
func (e *RAnsBitEncoder) zeroProbability() uint8 {
	total := e.counts[0] + e.counts[1]
	if total == 0 {
		total = 1
	}
	raw := uint32(float64(e.counts[0])/float64(total)*256.0 + 0.5)
	p := uint8(255)
	if raw < 255 {
		p = uint8(raw)
	}
	if p == 0 {
		p = 1
	}
	return p
}

// EndEncoding writes the probability, the varint payload size and the
// payload.
func (e *RAnsBitEncoder) EndEncoding(dst *bitio.EncoderBuffer) error {
	p0 := e.zeroProbability()
	var w binaryAnsWriter
	w.init((len(e.bits) + 8) * 8)
	for i := e.numLocal - 1; i >= 0; i-- {
		w.write((e.local>>uint(i))&1 != 0, p0)
	}
	for j := len(e.bits) - 1; j >= 0; j-- {
		word := e.bits[j]
		for i := 31; i >= 0; i-- {
			w.write((word>>uint(i))&1 != 0, p0)
		}
	}
	data, err := w.end()
	if err != nil {
		return err
	}
	dst.EncodeU8(p0)
	dst.EncodeVarint(uint64(len(data)))
	dst.EncodeBytes(data)
	e.StartEncoding()
	return nil
}

// RAnsBitDecoder decodes streams produced by RAnsBitEncoder.
type RAnsBitDecoder struct {
	ans      binaryAnsReader
	probZero uint8
	size     int
}

// NewRAnsBitDecoder returns an RAnsBitDecoder.
func NewRAnsBitDecoder() *RAnsBitDecoder { return &RAnsBitDecoder{} }

// StartDecoding reads the header and positions src after the payload.
func (d *RAnsBitDecoder) StartDecoding(src *bitio.DecoderBuffer) error {
	*d = RAnsBitDecoder{}
	p, err := src.DecodeU8()
	if err != nil {
		return err
	}
	d.probZero = p
	size, err := src.DecodeVarintU32()
	if err != nil {
		return err
	}
	data, err := src.DecodeBytes(int(size))
	if err != nil {
		return ErrOutOfData
	}
	d.size = len(data)
	return d.ans.init(data)
}

// MaxBits bounds the number of bits an encoder can store in the payload
// read by StartDecoding. Every bit shrinks the coder state by at least a
// factor of 255/256 + 1/4096, and each payload byte refills 8 bits of it.
func (d *RAnsBitDecoder) MaxBits() int {
	return 1600 * (d.size + 1)
}

// DecodeNextBit decodes one bit.
func (d *RAnsBitDecoder) DecodeNextBit() bool {
	return d.ans.read(d.probZero)
}

// DecodeLeastSignificantBits32 decodes nbits, most significant first.
func (d *RAnsBitDecoder) DecodeLeastSignificantBits32(nbits int) uint32 {
	var v uint32
	for ; nbits > 0; nbits-- {
		v <<= 1
		if d.DecodeNextBit() {
			v |= 1
		}
	}
	return v
}

// EndDecoding verifies that the coder state returned to its base.
func (d *RAnsBitDecoder) EndDecoding() error {
	return d.ans.end()
}
