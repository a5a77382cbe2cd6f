package entropy

import "github.com/deepteams/draco/internal/bitio"

// FoldedBitEncoder codes each bit position of wide integers in its own
// binary context, plus one context for single bits.
type FoldedBitEncoder struct {
	folded [32]RAnsBitEncoder
	bit    RAnsBitEncoder
}

// NewFoldedBitEncoder returns a FoldedBitEncoder.
func NewFoldedBitEncoder() *FoldedBitEncoder { return &FoldedBitEncoder{} }

// StartEncoding resets every context.
func (e *FoldedBitEncoder) StartEncoding() {
	for i := range e.folded {
		e.folded[i].StartEncoding()
	}
	e.bit.StartEncoding()
}

// EncodeBit codes a single bit in the shared context.
func (e *FoldedBitEncoder) EncodeBit(bit bool) { e.bit.EncodeBit(bit) }

// EncodeLeastSignificantBits32 codes bit i (counted from the most
// significant of the nbits) in context i.
func (e *FoldedBitEncoder) EncodeLeastSignificantBits32(nbits int, v uint32) {
	for i := 0; i < nbits; i++ {
		e.folded[i].EncodeBit((v>>uint(nbits-1-i))&1 != 0)
	}
}

// EndEncoding flushes the 32 positional contexts and then the bit context.
func (e *FoldedBitEncoder) EndEncoding(dst *bitio.EncoderBuffer) error {
	for i := range e.folded {
		if err := e.folded[i].EndEncoding(dst); err != nil {
			return err
		}
	}
	return e.bit.EndEncoding(dst)
}

// FoldedBitDecoder decodes streams written by FoldedBitEncoder.
type FoldedBitDecoder struct {
	folded [32]RAnsBitDecoder
	bit    RAnsBitDecoder
}

// NewFoldedBitDecoder returns a FoldedBitDecoder.
func NewFoldedBitDecoder() *FoldedBitDecoder { return &FoldedBitDecoder{} }

// StartDecoding reads all contexts.
func (d *FoldedBitDecoder) StartDecoding(src *bitio.DecoderBuffer) error {
	for i := range d.folded {
		if err := d.folded[i].StartDecoding(src); err != nil {
			return err
		}
	}
	return d.bit.StartDecoding(src)
}

// DecodeNextBit decodes from the shared context.
func (d *FoldedBitDecoder) DecodeNextBit() bool { return d.bit.DecodeNextBit() }

// DecodeLeastSignificantBits32 decodes nbits across positional contexts.
func (d *FoldedBitDecoder) DecodeLeastSignificantBits32(nbits int) uint32 {
	var v uint32
	for i := 0; i < nbits; i++ {
		v <<= 1
		if d.folded[i].DecodeNextBit() {
			v |= 1
		}
	}
	return v
}

// EndDecoding checks every context.
func (d *FoldedBitDecoder) EndDecoding() error {
	for i := range d.folded {
		if err := d.folded[i].EndDecoding(); err != nil {
			return err
		}
	}
	return d.bit.EndDecoding()
}
