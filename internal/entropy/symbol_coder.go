package entropy

import (
	"math"
	"sort"

	"github.com/deepteams/draco/internal/bitio"
)

// RAnsSymbolEncoder codes symbols from a fixed alphabet with a static
// probability table derived from frequency counts.
type RAnsSymbolEncoder struct {
	precisionBits int
	table         []ansSymbol
	expectedBits  uint64
	ans           *symbolAnsWriter
}

// NewRAnsSymbolEncoder builds the probability table for the given
// frequencies and serializes it to dst. maxSymbolBits selects the rANS
// precision.
func NewRAnsSymbolEncoder(maxSymbolBits int, freqs []uint64, dst *bitio.EncoderBuffer) (*RAnsSymbolEncoder, error) {
	e := &RAnsSymbolEncoder{precisionBits: precisionFromBitLength(maxSymbolBits)}
	probs, err := buildProbabilities(freqs, uint32(1)<<uint(e.precisionBits))
	if err != nil {
		return nil, err
	}
	e.table = make([]ansSymbol, len(probs))
	var cum uint32
	for i, p := range probs {
		e.table[i] = ansSymbol{prob: p, cumProb: cum}
		cum += p
	}
	precision := float64(uint32(1) << uint(e.precisionBits))
	var bits float64
	for i, p := range probs {
		if p == 0 {
			continue
		}
		bits += float64(freqs[i]) * math.Log2(float64(p)/precision)
	}
	e.expectedBits = uint64(math.Ceil(-bits))
	if err := encodeTable(probs, dst); err != nil {
		return nil, err
	}
	return e, nil
}

// buildProbabilities rescales freqs so the result sums to precision.
// Rounding drift is removed from the most frequent symbols first.
func buildProbabilities(freqs []uint64, precision uint32) ([]uint32, error) {
	var total uint64
	for _, f := range freqs {
		total += f
	}
	probs := make([]uint32, len(freqs))
	if total == 0 {
		if len(freqs) == 0 {
			return probs, nil
		}
		return nil, ErrBadTable
	}
	totalD := float64(total)
	precisionD := float64(precision)
	var totalProb uint32
	for i, f := range freqs {
		p := uint32(float64(f)/totalD*precisionD + 0.5)
		if p == 0 && f > 0 {
			p = 1
		}
		probs[i] = p
		totalProb += p
	}
	if totalProb != precision {
		sorted := make([]int, len(probs))
		for i := range sorted {
			sorted[i] = i
		}
		sort.SliceStable(sorted, func(a, b int) bool {
			return probs[sorted[a]] < probs[sorted[b]]
		})
		if totalProb < precision {
			probs[sorted[len(sorted)-1]] += precision - totalProb
		} else {
			errAmount := totalProb - precision
			for errAmount > 0 {
				relError := precisionD / float64(totalProb)
				progressed := false
				for j := len(sorted) - 1; j >= 0; j-- {
					s := sorted[j]
					if probs[s] <= 1 {
						if j == len(sorted)-1 {
							return nil, ErrBadTable
						}
						break
					}
					newProb := uint32(math.Floor(relError * float64(probs[s])))
					fix := probs[s] - newProb
					if fix == 0 {
						fix = 1
					}
					if fix >= probs[s] {
						fix = probs[s] - 1
					}
					if fix > errAmount {
						fix = errAmount
					}
					probs[s] -= fix
					totalProb -= fix
					errAmount -= fix
					progressed = progressed || fix > 0
					if totalProb == precision {
						break
					}
				}
				if !progressed {
					return nil, ErrBadTable
				}
			}
		}
	}
	var sum uint32
	for _, p := range probs {
		sum += p
	}
	if sum != precision {
		return nil, ErrBadTable
	}
	return probs, nil
}

// encodeTable writes the symbol count and the probabilities. Each nonzero
// probability is stored in 1-3 bytes with a 2-bit extra byte count in the
// low bits; runs of up to 64 zero probabilities collapse into one byte
// tagged 3.
func encodeTable(probs []uint32, dst *bitio.EncoderBuffer) error {
	dst.EncodeVarint(uint64(len(probs)))
	for i := 0; i < len(probs); i++ {
		p := probs[i]
		if p == 0 {
			offset := 0
			for ; offset < (1<<6)-1; offset++ {
				next := i + offset + 1
				if next >= len(probs) || probs[next] > 0 {
					break
				}
			}
			dst.EncodeU8(uint8(offset<<2 | 3))
			i += offset
			continue
		}
		extra := 0
		if p >= 1<<6 {
			extra++
			if p >= 1<<14 {
				extra++
				if p >= 1<<22 {
					return ErrBadTable
				}
			}
		}
		dst.EncodeU8(uint8(p<<2) | uint8(extra))
		for b := 0; b < extra; b++ {
			dst.EncodeU8(uint8(p >> uint(8*(b+1)-2)))
		}
	}
	return nil
}

// NumExpectedBits is the Shannon estimate of the payload size.
func (e *RAnsSymbolEncoder) NumExpectedBits() uint64 { return e.expectedBits }

// StartEncoding prepares the rANS state.
func (e *RAnsSymbolEncoder) StartEncoding() {
	e.ans = newSymbolAnsWriter(e.precisionBits, int(e.expectedBits/8)+16)
}

// EncodeSymbol codes one symbol. Symbols must be fed in reverse of the
// order in which they will be decoded.
func (e *RAnsSymbolEncoder) EncodeSymbol(s uint32) error {
	if int(s) >= len(e.table) || e.table[s].prob == 0 {
		return ErrSymbolRange
	}
	e.ans.write(e.table[s])
	return nil
}

// EndEncoding writes the varint payload size and the payload.
func (e *RAnsSymbolEncoder) EndEncoding(dst *bitio.EncoderBuffer) error {
	data, err := e.ans.end()
	if err != nil {
		return err
	}
	dst.EncodeVarint(uint64(len(data)))
	dst.EncodeBytes(data)
	return nil
}

// RAnsSymbolDecoder decodes symbols written by RAnsSymbolEncoder.
type RAnsSymbolDecoder struct {
	ans        *symbolAnsReader
	numSymbols int
}

// NewRAnsSymbolDecoder reads a probability table from src.
func NewRAnsSymbolDecoder(maxSymbolBits int, src *bitio.DecoderBuffer) (*RAnsSymbolDecoder, error) {
	d := &RAnsSymbolDecoder{ans: newSymbolAnsReader(precisionFromBitLength(maxSymbolBits))}
	n, err := src.DecodeVarintU32()
	if err != nil {
		return nil, err
	}
	// Each table entry takes at least one byte per 64 symbols.
	if int64(n)/64 > int64(src.RemainingSize()) {
		return nil, ErrOutOfData
	}
	d.numSymbols = int(n)
	if n == 0 {
		return d, nil
	}
	probs := make([]uint32, n)
	for i := 0; i < int(n); i++ {
		b, err := src.DecodeU8()
		if err != nil {
			return nil, err
		}
		token := b & 3
		if token == 3 {
			offset := int(b >> 2)
			if i+offset >= int(n) {
				return nil, ErrBadTable
			}
			i += offset
			continue
		}
		p := uint32(b >> 2)
		for k := 0; k < int(token); k++ {
			eb, err := src.DecodeU8()
			if err != nil {
				return nil, err
			}
			p |= uint32(eb) << uint(8*(k+1)-2)
		}
		probs[i] = p
	}
	if err := d.ans.buildLookupTable(probs); err != nil {
		return nil, err
	}
	return d, nil
}

// NumSymbols returns the alphabet size.
func (d *RAnsSymbolDecoder) NumSymbols() int { return d.numSymbols }

// StartDecoding reads the payload and moves src past it.
func (d *RAnsSymbolDecoder) StartDecoding(src *bitio.DecoderBuffer) error {
	size, err := src.DecodeVarintU64()
	if err != nil {
		return err
	}
	if size > uint64(src.RemainingSize()) {
		return ErrOutOfData
	}
	data, err := src.DecodeBytes(int(size))
	if err != nil {
		return err
	}
	if d.numSymbols == 0 {
		return ErrBadTable
	}
	return d.ans.init(data)
}

// DecodeSymbol decodes the next symbol.
func (d *RAnsSymbolDecoder) DecodeSymbol() uint32 { return d.ans.read() }

// EndDecoding verifies the final state.
func (d *RAnsSymbolDecoder) EndDecoding() error { return d.ans.end() }
