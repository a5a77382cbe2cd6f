package entropy

import (
	"math"
	"math/bits"

	"github.com/deepteams/draco/internal/bitio"
)

// SymbolScheme identifies how an integer symbol stream is coded.
type SymbolScheme uint8

const (
	// SchemeTagged codes a bit-length tag per group of components with
	// rANS and stores the values raw at the tag width.
	SchemeTagged SymbolScheme = 0
	// SchemeRaw codes every value with a single large-alphabet rANS table.
	SchemeRaw SymbolScheme = 1
	// SchemeAuto lets the encoder pick the cheaper scheme.
	SchemeAuto SymbolScheme = 0xff
)

const (
	// MaxRawEncodingBitLength caps the alphabet of the raw scheme.
	MaxRawEncodingBitLength = 18
	maxTagSymbolBitLength   = 32
	// tagSymbolBits is the bit length of the tag alphabet (lengths 0..32).
	tagSymbolBits = 5
	// DefaultSymbolCompressionLevel trades raw-scheme precision for speed.
	DefaultSymbolCompressionLevel = 7
)

// SymbolOptions tunes EncodeSymbols. The zero value forces the tagged
// scheme, so callers normally start from DefaultSymbolOptions.
type SymbolOptions struct {
	Scheme           SymbolScheme
	CompressionLevel int
}

// DefaultSymbolOptions returns automatic scheme selection at the default
// level.
func DefaultSymbolOptions() SymbolOptions {
	return SymbolOptions{Scheme: SchemeAuto, CompressionLevel: DefaultSymbolCompressionLevel}
}

// ConvertSignedToSymbol maps a signed value to an unsigned symbol with the
// sign in the least significant bit.
func ConvertSignedToSymbol(v int32) uint32 {
	if v >= 0 {
		return uint32(v) << 1
	}
	// -(v+1) avoids overflow for MinInt32.
	return uint32(-(v+1))<<1 | 1
}

// ConvertSymbolToSigned inverts ConvertSignedToSymbol.
func ConvertSymbolToSigned(s uint32) int32 {
	if s&1 != 0 {
		return -int32(s>>1) - 1
	}
	return int32(s >> 1)
}

// ConvertSignedInts maps a slice of signed values to symbols.
func ConvertSignedInts(in []int32, out []uint32) {
	for i, v := range in {
		out[i] = ConvertSignedToSymbol(v)
	}
}

// ConvertSymbolsToSignedInts maps symbols back to signed values.
func ConvertSymbolsToSignedInts(in []uint32, out []int32) {
	for i, s := range in {
		out[i] = ConvertSymbolToSigned(s)
	}
}

// mostSignificantBit returns the index of the highest set bit of v > 0.
func mostSignificantBit(v uint32) int { return bits.Len32(v) - 1 }

// shannonEntropyBits estimates the bits needed to code symbols with an
// ideal static model.
func shannonEntropyBits(symbols []uint32, maxValue uint32) (entropyBits int64, numUnique int) {
	freqs := make([]uint32, uint64(maxValue)+1)
	for _, s := range symbols {
		freqs[s]++
	}
	n := float64(len(symbols))
	var total float64
	for _, f := range freqs {
		if f > 0 {
			numUnique++
			total += float64(f) * math.Log2(float64(f)/n)
		}
	}
	return int64(-total), numUnique
}

// frequencyTableBits approximates the serialized size of a probability
// table, counting one byte per run of 64 absent symbols.
func frequencyTableBits(maxValue, numUnique int) int64 {
	zeroBits := 8 * (numUnique + (maxValue-numUnique)/64)
	return int64(8*numUnique + zeroBits)
}

func computeBitLengths(symbols []uint32, numComponents int) (lengths []uint32, maxValue uint32) {
	lengths = make([]uint32, 0, len(symbols)/numComponents+1)
	for i := 0; i < len(symbols); i += numComponents {
		m := symbols[i]
		for j := 1; j < numComponents && i+j < len(symbols); j++ {
			if symbols[i+j] > m {
				m = symbols[i+j]
			}
		}
		msb := 0
		if m > 0 {
			msb = mostSignificantBit(m)
		}
		if m > maxValue {
			maxValue = m
		}
		lengths = append(lengths, uint32(msb+1))
	}
	return lengths, maxValue
}

func taggedSchemeBits(lengths []uint32, numComponents int) int64 {
	var total uint64
	for _, l := range lengths {
		total += uint64(l)
	}
	tagBits, unique := shannonEntropyBits(lengths, maxTagSymbolBitLength)
	return tagBits + frequencyTableBits(unique, unique) + int64(total)*int64(numComponents)
}

func rawSchemeBits(symbols []uint32, maxValue uint32) (int64, int) {
	dataBits, unique := shannonEntropyBits(symbols, maxValue)
	return dataBits + frequencyTableBits(int(maxValue), unique), unique
}

// EncodeSymbols codes unsigned symbols in groups of numComponents. The
// scheme byte is written first.
func EncodeSymbols(symbols []uint32, numComponents int, opts SymbolOptions, dst *bitio.EncoderBuffer) error {
	if len(symbols) == 0 {
		return nil
	}
	if numComponents <= 0 {
		numComponents = 1
	}
	lengths, maxValue := computeBitLengths(symbols, numComponents)
	maxValueBits := mostSignificantBit(max(1, maxValue)) + 1

	scheme := opts.Scheme
	if maxValueBits > MaxRawEncodingBitLength {
		// The raw alphabet would not fit a probability table.
		scheme = SchemeTagged
	}
	var unique int
	if scheme != SchemeTagged {
		var rawBits int64
		rawBits, unique = rawSchemeBits(symbols, maxValue)
		if scheme == SchemeAuto {
			scheme = SchemeRaw
			if taggedSchemeBits(lengths, numComponents) < rawBits {
				scheme = SchemeTagged
			}
		}
	}
	dst.EncodeU8(uint8(scheme))
	switch scheme {
	case SchemeTagged:
		return encodeTaggedSymbols(symbols, numComponents, lengths, opts.CompressionLevel, dst)
	case SchemeRaw:
		return encodeRawSymbols(symbols, maxValue, unique, opts.CompressionLevel, dst)
	}
	return ErrBadScheme
}

// Value coders of the tagged scheme.
const (
	valuesDirect uint8 = iota
	valuesFolded
)

// foldedValuesLevel is the lowest compression level that codes tagged
// values with one binary context per bit position.
const foldedValuesLevel = 8

func encodeTaggedSymbols(symbols []uint32, numComponents int, lengths []uint32, level int, dst *bitio.EncoderBuffer) error {
	freqs := make([]uint64, maxTagSymbolBitLength+1)
	for _, l := range lengths {
		freqs[l]++
	}
	tags, err := NewRAnsSymbolEncoder(tagSymbolBits, freqs, dst)
	if err != nil {
		return err
	}
	kind := valuesDirect
	var values BitEncoder = NewDirectBitEncoder()
	if level >= foldedValuesLevel {
		kind = valuesFolded
		values = NewFoldedBitEncoder()
	}
	tags.StartEncoding()
	values.StartEncoding()
	for g := len(lengths) - 1; g >= 0; g-- {
		if err := tags.EncodeSymbol(lengths[g]); err != nil {
			return err
		}
	}
	for g, l := range lengths {
		base := g * numComponents
		for c := 0; c < numComponents && base+c < len(symbols); c++ {
			values.EncodeLeastSignificantBits32(int(l), symbols[base+c])
		}
	}
	if err := tags.EndEncoding(dst); err != nil {
		return err
	}
	dst.EncodeU8(kind)
	return values.EndEncoding(dst)
}

func encodeRawSymbols(symbols []uint32, maxValue uint32, numUnique, level int, dst *bitio.EncoderBuffer) error {
	bitLength := mostSignificantBit(uint32(numUnique)) + 1
	switch {
	case level < 4:
		bitLength -= 2
	case level < 6:
		bitLength--
	case level > 9:
		bitLength += 2
	case level > 7:
		bitLength++
	}
	bitLength = min(max(1, bitLength), MaxRawEncodingBitLength)
	dst.EncodeU8(uint8(bitLength))

	freqs := make([]uint64, uint64(maxValue)+1)
	for _, s := range symbols {
		freqs[s]++
	}
	enc, err := NewRAnsSymbolEncoder(bitLength, freqs, dst)
	if err != nil {
		return err
	}
	enc.StartEncoding()
	for i := len(symbols) - 1; i >= 0; i-- {
		if err := enc.EncodeSymbol(symbols[i]); err != nil {
			return err
		}
	}
	return enc.EndEncoding(dst)
}

// DecodeSymbols decodes len(out) symbols written by EncodeSymbols.
func DecodeSymbols(out []uint32, numComponents int, src *bitio.DecoderBuffer) error {
	if len(out) == 0 {
		return nil
	}
	if numComponents <= 0 {
		numComponents = 1
	}
	scheme, err := src.DecodeU8()
	if err != nil {
		return err
	}
	switch SymbolScheme(scheme) {
	case SchemeTagged:
		return decodeTaggedSymbols(out, numComponents, src)
	case SchemeRaw:
		return decodeRawSymbols(out, src)
	}
	return ErrBadScheme
}

func decodeTaggedSymbols(out []uint32, numComponents int, src *bitio.DecoderBuffer) error {
	tags, err := NewRAnsSymbolDecoder(tagSymbolBits, src)
	if err != nil {
		return err
	}
	if tags.NumSymbols() == 0 {
		return ErrBadTable
	}
	if err := tags.StartDecoding(src); err != nil {
		return err
	}
	kind, err := src.DecodeU8()
	if err != nil {
		return err
	}
	var values BitDecoder
	switch kind {
	case valuesDirect:
		values = NewDirectBitDecoder()
	case valuesFolded:
		values = NewFoldedBitDecoder()
	default:
		return ErrBadScheme
	}
	if err := values.StartDecoding(src); err != nil {
		return err
	}
	for i := 0; i < len(out); i += numComponents {
		l := tags.DecodeSymbol()
		if l > maxTagSymbolBitLength {
			return ErrTooManyBits
		}
		for c := 0; c < numComponents && i+c < len(out); c++ {
			out[i+c] = values.DecodeLeastSignificantBits32(int(l))
		}
	}
	if err := values.EndDecoding(); err != nil {
		return err
	}
	return tags.EndDecoding()
}

func decodeRawSymbols(out []uint32, src *bitio.DecoderBuffer) error {
	bitLength, err := src.DecodeU8()
	if err != nil {
		return err
	}
	if bitLength < 1 || bitLength > MaxRawEncodingBitLength {
		return ErrTooManyBits
	}
	dec, err := NewRAnsSymbolDecoder(int(bitLength), src)
	if err != nil {
		return err
	}
	if dec.NumSymbols() == 0 {
		return ErrBadTable
	}
	if err := dec.StartDecoding(src); err != nil {
		return err
	}
	for i := range out {
		out[i] = dec.DecodeSymbol()
	}
	return dec.EndDecoding()
}
