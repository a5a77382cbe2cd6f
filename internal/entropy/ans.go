// Package entropy implements the entropy coders used by the mesh codec:
// a byte-renormalized rANS state machine for bits and symbols, folded and
// direct (uncompressed) bit coders, and the tagged/raw integer symbol
// schemes built on top of them.
package entropy

import (
	"encoding/binary"
	"errors"
)

const (
	ansIOBase = 256
	// ansP8Precision is the probability resolution of the binary coder.
	ansP8Precision = 256
	// ansLBase is the lower bound of the binary coder state.
	ansLBase = 4096
)

// Errors returned by the entropy coders.
var (
	ErrCorrupt      = errors.New("entropy: corrupt rANS stream")
	ErrBadTable     = errors.New("entropy: invalid probability table")
	ErrOutOfData    = errors.New("entropy: out of data")
	ErrBadScheme    = errors.New("entropy: unknown symbol coding scheme")
	ErrSymbolRange  = errors.New("entropy: symbol out of range")
	ErrTooManyBits  = errors.New("entropy: symbol bit length too large")
	ErrStateTooWide = errors.New("entropy: final state does not fit the trailer")
)

// writeState appends the final coder state (minus base) as a
// self-describing trailer: the top two bits of the last byte select a
// payload of 6, 14, 22 or 30 bits stored in 1 to 4 little-endian bytes.
func writeState(buf []byte, state uint32) ([]byte, error) {
	switch {
	case state < 1<<6:
		return append(buf, byte(state)), nil
	case state < 1<<14:
		return binary.LittleEndian.AppendUint16(buf, uint16(0x01<<14|state)), nil
	case state < 1<<22:
		v := 0x02<<22 | state
		return append(buf, byte(v), byte(v>>8), byte(v>>16)), nil
	case state < 1<<30:
		return binary.LittleEndian.AppendUint32(buf, 0x03<<30|state), nil
	}
	return buf, ErrStateTooWide
}

// readState parses the trailer written by writeState from the end of buf.
// It returns the state (minus base) and the number of bytes that precede
// the trailer.
func readState(buf []byte) (state uint32, offset int, err error) {
	n := len(buf)
	if n < 1 {
		return 0, 0, ErrCorrupt
	}
	switch buf[n-1] >> 6 {
	case 0:
		return uint32(buf[n-1] & 0x3f), n - 1, nil
	case 1:
		if n < 2 {
			return 0, 0, ErrCorrupt
		}
		return uint32(binary.LittleEndian.Uint16(buf[n-2:])) & 0x3fff, n - 2, nil
	case 2:
		if n < 3 {
			return 0, 0, ErrCorrupt
		}
		v := uint32(buf[n-3]) | uint32(buf[n-2])<<8 | uint32(buf[n-1])<<16
		return v & 0x3fffff, n - 3, nil
	default:
		if n < 4 {
			return 0, 0, ErrCorrupt
		}
		return binary.LittleEndian.Uint32(buf[n-4:]) & 0x3fffffff, n - 4, nil
	}
}

// binaryAnsWriter is the rANS coder specialized for 8-bit probabilities.
type binaryAnsWriter struct {
	buf   []byte
	state uint32
}

func (w *binaryAnsWriter) init(capacity int) {
	w.buf = make([]byte, 0, capacity)
	w.state = ansLBase
}

// write encodes one bit where p0 is the probability of zero in 1/256 units.
func (w *binaryAnsWriter) write(bit bool, p0 uint8) {
	p := ansP8Precision - uint32(p0)
	ls := uint32(p0)
	if bit {
		ls = p
	}
	if w.state >= ansLBase/ansP8Precision*ansIOBase*ls {
		w.buf = append(w.buf, byte(w.state))
		w.state /= ansIOBase
	}
	quot, rem := w.state/ls, w.state%ls
	w.state = quot*ansP8Precision + rem
	if !bit {
		w.state += p
	}
}

func (w *binaryAnsWriter) end() ([]byte, error) {
	return writeState(w.buf, w.state-ansLBase)
}

type binaryAnsReader struct {
	buf    []byte
	offset int
	state  uint32
}

func (r *binaryAnsReader) init(buf []byte) error {
	state, offset, err := readState(buf)
	if err != nil {
		return err
	}
	state += ansLBase
	if state >= ansLBase*ansIOBase {
		return ErrCorrupt
	}
	r.buf, r.offset, r.state = buf, offset, state
	return nil
}

func (r *binaryAnsReader) read(p0 uint8) bool {
	p := ansP8Precision - uint32(p0)
	if r.state < ansLBase && r.offset > 0 {
		r.offset--
		r.state = r.state*ansIOBase + uint32(r.buf[r.offset])
	}
	x := r.state
	quot, rem := x/ansP8Precision, x%ansP8Precision
	xn := quot * p
	bit := rem < p
	if bit {
		r.state = xn + rem
	} else {
		r.state = x - xn - p
	}
	return bit
}

func (r *binaryAnsReader) end() error {
	if r.state != ansLBase || r.offset != 0 {
		return ErrCorrupt
	}
	return nil
}

// ansSymbol is one probability table entry.
type ansSymbol struct {
	prob    uint32
	cumProb uint32
}

// precisionFromBitLength maps the bit length of the largest symbol to the
// rANS precision bits: 1.5x the bit length, clamped to [12, 20].
func precisionFromBitLength(symbolBits int) int {
	p := 3 * symbolBits / 2
	if p < 12 {
		return 12
	}
	if p > 20 {
		return 20
	}
	return p
}

// symbolAnsWriter is the multi-symbol rANS coder.
type symbolAnsWriter struct {
	buf       []byte
	state     uint32
	precision uint32
	lBase     uint32
}

func newSymbolAnsWriter(precisionBits int, capacity int) *symbolAnsWriter {
	precision := uint32(1) << uint(precisionBits)
	return &symbolAnsWriter{
		buf:       make([]byte, 0, capacity),
		precision: precision,
		lBase:     precision * 4,
		state:     precision * 4,
	}
}

func (w *symbolAnsWriter) write(sym ansSymbol) {
	p := sym.prob
	for w.state >= w.lBase/w.precision*ansIOBase*p {
		w.buf = append(w.buf, byte(w.state))
		w.state /= ansIOBase
	}
	w.state = (w.state/p)*w.precision + w.state%p + sym.cumProb
}

func (w *symbolAnsWriter) end() ([]byte, error) {
	return writeState(w.buf, w.state-w.lBase)
}

type symbolAnsReader struct {
	buf       []byte
	offset    int
	state     uint32
	precision uint32
	lBase     uint32
	table     []ansSymbol
	lut       []uint32
}

func newSymbolAnsReader(precisionBits int) *symbolAnsReader {
	precision := uint32(1) << uint(precisionBits)
	return &symbolAnsReader{precision: precision, lBase: precision * 4}
}

// buildLookupTable fills the cumulative table and the remainder-to-symbol
// LUT. The probabilities must sum to exactly the precision.
func (r *symbolAnsReader) buildLookupTable(probs []uint32) error {
	r.table = make([]ansSymbol, len(probs))
	r.lut = make([]uint32, r.precision)
	var cum uint32
	for i, p := range probs {
		r.table[i] = ansSymbol{prob: p, cumProb: cum}
		if uint64(cum)+uint64(p) > uint64(r.precision) {
			return ErrBadTable
		}
		for j := cum; j < cum+p; j++ {
			r.lut[j] = uint32(i)
		}
		cum += p
	}
	if cum != r.precision {
		return ErrBadTable
	}
	return nil
}

func (r *symbolAnsReader) init(buf []byte) error {
	state, offset, err := readState(buf)
	if err != nil {
		return err
	}
	state += r.lBase
	if state >= r.lBase*ansIOBase {
		return ErrCorrupt
	}
	r.buf, r.offset, r.state = buf, offset, state
	return nil
}

func (r *symbolAnsReader) renormalize() {
	for r.state < r.lBase && r.offset > 0 {
		r.offset--
		r.state = r.state*ansIOBase + uint32(r.buf[r.offset])
	}
}

func (r *symbolAnsReader) read() uint32 {
	r.renormalize()
	quo, rem := r.state/r.precision, r.state%r.precision
	s := r.lut[rem]
	sym := r.table[s]
	r.state = quo*sym.prob + rem - sym.cumProb
	return s
}

// end pulls back any bytes the first encoded symbol renormalized out and
// checks that the state returned to its initial value.
func (r *symbolAnsReader) end() error {
	r.renormalize()
	if r.state != r.lBase || r.offset != 0 {
		return ErrCorrupt
	}
	return nil
}
