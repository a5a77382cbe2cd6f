package bitio

// BitDecoder reads raw bit fields, least significant bit of each byte first.
type BitDecoder struct {
	data   []byte
	bitPos int
}

// Reset points the decoder at data and rewinds it.
func (b *BitDecoder) Reset(data []byte) {
	b.data = data
	b.bitPos = 0
}

// BitsDecoded returns the number of bits consumed so far.
func (b *BitDecoder) BitsDecoded() int { return b.bitPos }

// GetBit reads a single bit.
func (b *BitDecoder) GetBit() (uint32, error) {
	off := b.bitPos >> 3
	if off >= len(b.data) {
		return 0, ErrOutOfData
	}
	bit := uint32(b.data[off]>>uint(b.bitPos&7)) & 1
	b.bitPos++
	return bit, nil
}

// GetBits reads nbits (0..32) and returns them with the first bit read in
// the least significant position.
func (b *BitDecoder) GetBits(nbits int) (uint32, error) {
	if nbits < 0 || nbits > 32 {
		return 0, ErrBadLength
	}
	var v uint32
	for i := 0; i < nbits; i++ {
		bit, err := b.GetBit()
		if err != nil {
			return 0, err
		}
		v |= bit << uint(i)
	}
	return v, nil
}

// BitEncoder is the counterpart of BitDecoder. Bits accumulate in an
// internal byte slice that grows as needed.
type BitEncoder struct {
	buf    []byte
	bitPos int
}

// NewBitEncoder creates a BitEncoder with room for expectedBits bits.
func NewBitEncoder(expectedBits int) *BitEncoder {
	return &BitEncoder{buf: make([]byte, 0, (expectedBits+7)/8)}
}

// PutBits writes the nbits (0..32) low bits of v, least significant first.
func (b *BitEncoder) PutBits(v uint32, nbits int) {
	for i := 0; i < nbits; i++ {
		if b.bitPos&7 == 0 {
			b.buf = append(b.buf, 0)
		}
		if (v>>uint(i))&1 != 0 {
			b.buf[len(b.buf)-1] |= 1 << uint(b.bitPos&7)
		}
		b.bitPos++
	}
}

// BitsEncoded returns the number of bits written.
func (b *BitEncoder) BitsEncoded() int { return b.bitPos }

// Bytes returns the encoded bytes, padded with zero bits to a byte boundary.
func (b *BitEncoder) Bytes() []byte { return b.buf }

// Reset discards all written bits and keeps the allocation.
func (b *BitEncoder) Reset() {
	b.buf = b.buf[:0]
	b.bitPos = 0
}
