package edgebreaker

import (
	"fmt"

	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/corner"
	"github.com/deepteams/draco/internal/entropy"
)

const (
	minValence = 2
	maxValence = 7
	// predictedValenceLimit is the valence below which the predictive
	// traversal expects an R symbol rather than a C symbol.
	predictedValenceLimit = 6
)

// traversalSource supplies symbols and start face configurations to the
// connectivity decoder and observes its progress. The decoder calls
// newActiveCornerReached after every face and mergeVertices after every
// split symbol so that valence-based coders can track the same state on
// both sides of the stream.
type traversalSource interface {
	decodeSymbol() Symbol
	newActiveCornerReached(c corner.CornerIndex)
	mergeVertices(dest, src corner.VertexIndex)
	decodeStartFaceConfiguration() bool
}

// valenceTracker counts, per decoded vertex, the edges added by the faces
// decoded so far.
type valenceTracker struct {
	table    *corner.Table
	valences []int
	last     Symbol
}

func (v *valenceTracker) init(table *corner.Table, numVertices int) {
	v.table = table
	v.valences = make([]int, numVertices)
	v.last = SymbolInvalid
}

func (v *valenceTracker) add(vert corner.VertexIndex, n int) {
	if vert >= 0 && int(vert) < len(v.valences) {
		v.valences[vert] += n
	}
}

func (v *valenceTracker) valence(vert corner.VertexIndex) int {
	if vert < 0 || int(vert) >= len(v.valences) {
		return 0
	}
	return v.valences[vert]
}

// update applies the valence change of the last decoded symbol, whose face
// is now the active corner c.
func (v *valenceTracker) update(c corner.CornerIndex) {
	t := v.table
	cur, next, prev := t.Vertex(c), t.Vertex(corner.Next(c)), t.Vertex(corner.Previous(c))
	switch v.last {
	case SymbolC, SymbolS:
		v.add(next, 1)
		v.add(prev, 1)
	case SymbolR:
		v.add(cur, 1)
		v.add(next, 1)
		v.add(prev, 2)
	case SymbolL:
		v.add(cur, 1)
		v.add(next, 2)
		v.add(prev, 1)
	case SymbolE:
		v.add(cur, 2)
		v.add(next, 2)
		v.add(prev, 2)
	}
}

func (v *valenceTracker) merge(dest, src corner.VertexIndex) {
	v.add(dest, v.valence(src))
}

// context returns the valence context of the active corner c.
func (v *valenceTracker) context(c corner.CornerIndex) int {
	val := v.valence(v.table.Vertex(corner.Next(c)))
	val = max(val, minValence)
	val = min(val, maxValence)
	return val - minValence
}

// prediction returns the symbol expected after the last one, or
// SymbolInvalid when no prediction is made.
func (v *valenceTracker) prediction(c corner.CornerIndex) Symbol {
	if v.last != SymbolE && v.last != SymbolR {
		return SymbolInvalid
	}
	if v.valence(v.table.Vertex(corner.Next(c))) < predictedValenceLimit {
		return SymbolR
	}
	return SymbolC
}

// traversalDecoder reads the traversal payload that follows the split
// events. The payload layout depends on the traversal method.
type traversalDecoder struct {
	method     TraversalMethod
	symbols    bitio.BitDecoder
	startFaces entropy.RAnsBitDecoder
	seams      []entropy.RAnsBitDecoder
	failed     bool

	tracker valenceTracker

	// Predictive state.
	predictions entropy.RAnsBitDecoder
	predicted   Symbol

	// Valence state.
	contexts      [][]uint32
	contextOffset []int
	activeContext int
}

var _ traversalSource = (*traversalDecoder)(nil)

// read consumes the traversal payload without touching a corner table, so
// that symbol counts can be checked against the bytes that carry them
// before the table is allocated.
func (d *traversalDecoder) read(src *bitio.DecoderBuffer, numSymbols, numVertices, numSeamCoders int) error {
	d.predicted = SymbolInvalid
	d.activeContext = -1

	var blockBits uint64
	if d.method != TraversalValence {
		size, err := src.DecodeVarintU64()
		if err != nil {
			return fmt.Errorf("edgebreaker: symbol block size: %w", err)
		}
		if size > uint64(src.RemainingSize()) {
			return corrupt("symbol block of %d bytes exceeds input", size)
		}
		blockBits = 8 * size
		if d.method == TraversalStandard && uint64(numSymbols) > blockBits {
			return corrupt("%d symbols in a %d byte block", numSymbols, size)
		}
		data, err := src.DecodeBytes(int(size))
		if err != nil {
			return err
		}
		d.symbols.Reset(data)
	}
	if err := d.startFaces.StartDecoding(src); err != nil {
		return fmt.Errorf("edgebreaker: start faces: %w", err)
	}
	d.seams = make([]entropy.RAnsBitDecoder, numSeamCoders)
	for i := range d.seams {
		if err := d.seams[i].StartDecoding(src); err != nil {
			return fmt.Errorf("edgebreaker: attribute seams %d: %w", i, err)
		}
	}

	switch d.method {
	case TraversalPredictive:
		numSplits, err := src.DecodeI32()
		if err != nil {
			return err
		}
		if numSplits < 0 || int(numSplits) > numVertices {
			return corrupt("predictive split count %d", numSplits)
		}
		if err := d.predictions.StartDecoding(src); err != nil {
			return fmt.Errorf("edgebreaker: predictions: %w", err)
		}
		// Every symbol costs a block bit or a prediction bit.
		if uint64(numSymbols) > blockBits+uint64(d.predictions.MaxBits()) {
			return corrupt("%d symbols exceed the predictive payload", numSymbols)
		}
	case TraversalValence:
		lo, err := src.DecodeU8()
		if err != nil {
			return err
		}
		hi, err := src.DecodeU8()
		if err != nil {
			return err
		}
		if lo != minValence || hi != maxValence {
			return corrupt("valence range [%d, %d]", lo, hi)
		}
		// The first symbol is an implicit E.
		left := max(numSymbols-1, 0)
		n := maxValence - minValence + 1
		d.contexts = make([][]uint32, n)
		d.contextOffset = make([]int, n)
		for i := range d.contexts {
			count, err := src.DecodeVarintU32()
			if err != nil {
				return err
			}
			if count == 0 {
				continue
			}
			if uint64(count) > uint64(left) {
				return corrupt("context %d holds %d symbols, %d left", i, count, left)
			}
			left -= int(count)
			d.contexts[i] = make([]uint32, count)
			if err := entropy.DecodeSymbols(d.contexts[i], 1, src); err != nil {
				return fmt.Errorf("edgebreaker: context %d: %w", i, err)
			}
		}
		if left != 0 {
			return corrupt("valence contexts hold %d symbols fewer than announced", left)
		}
	}
	return nil
}

// attach binds the valence tracker to the table being rebuilt.
func (d *traversalDecoder) attach(table *corner.Table, numVertices int) {
	d.tracker.init(table, numVertices)
}

func (d *traversalDecoder) decodeStandardSymbol() Symbol {
	b, err := d.symbols.GetBit()
	if err != nil {
		d.failed = true
		return SymbolInvalid
	}
	if b == 0 {
		return SymbolC
	}
	suffix, err := d.symbols.GetBits(2)
	if err != nil {
		d.failed = true
		return SymbolInvalid
	}
	return Symbol(1 | suffix<<1)
}

func (d *traversalDecoder) decodeSymbol() Symbol {
	var s Symbol
	switch d.method {
	case TraversalPredictive:
		if d.predicted != SymbolInvalid && d.predictions.DecodeNextBit() {
			s = d.predicted
		} else {
			s = d.decodeStandardSymbol()
		}
	case TraversalValence:
		if d.activeContext < 0 {
			s = SymbolE
			break
		}
		ctx := d.contexts[d.activeContext]
		off := d.contextOffset[d.activeContext]
		if off >= len(ctx) {
			d.failed = true
			return SymbolInvalid
		}
		d.contextOffset[d.activeContext]++
		s = symbolFromID(ctx[off])
	default:
		s = d.decodeStandardSymbol()
	}
	d.tracker.last = s
	return s
}

func (d *traversalDecoder) newActiveCornerReached(c corner.CornerIndex) {
	switch d.method {
	case TraversalPredictive:
		d.tracker.update(c)
		d.predicted = d.tracker.prediction(c)
	case TraversalValence:
		d.tracker.update(c)
		d.activeContext = d.tracker.context(c)
	}
}

func (d *traversalDecoder) mergeVertices(dest, src corner.VertexIndex) {
	if d.method != TraversalStandard {
		d.tracker.merge(dest, src)
	}
}

func (d *traversalDecoder) decodeStartFaceConfiguration() bool {
	return d.startFaces.DecodeNextBit()
}

// decodeSeam reads the seam bit of attribute i.
func (d *traversalDecoder) decodeSeam(i int) bool {
	return d.seams[i].DecodeNextBit()
}

// done verifies that every entropy coder consumed its payload exactly.
func (d *traversalDecoder) done() error {
	if d.failed {
		return corrupt("symbol stream exhausted")
	}
	if err := d.startFaces.EndDecoding(); err != nil {
		return fmt.Errorf("edgebreaker: start faces: %w", err)
	}
	for i := range d.seams {
		if err := d.seams[i].EndDecoding(); err != nil {
			return fmt.Errorf("edgebreaker: attribute seams %d: %w", i, err)
		}
	}
	if d.method == TraversalPredictive {
		if err := d.predictions.EndDecoding(); err != nil {
			return fmt.Errorf("edgebreaker: predictions: %w", err)
		}
	}
	return nil
}

// traversalRecorder replays the encoder's symbols through the connectivity
// decoder and records what the chosen traversal method has to store so
// that a real decoder, tracking identical state, reproduces them.
type traversalRecorder struct {
	method     TraversalMethod
	symbols    []Symbol // decoder order
	next       int
	startFaces []bool
	nextStart  int
	tracker    valenceTracker
	err        error

	explicit    []Symbol
	predictions []bool
	predicted   Symbol

	contexts      [][]uint32
	activeContext int
}

var _ traversalSource = (*traversalRecorder)(nil)

func newTraversalRecorder(method TraversalMethod, symbols []Symbol, startFaces []bool) *traversalRecorder {
	return &traversalRecorder{
		method:        method,
		symbols:       symbols,
		startFaces:    startFaces,
		predicted:     SymbolInvalid,
		contexts:      make([][]uint32, maxValence-minValence+1),
		activeContext: -1,
	}
}

func (r *traversalRecorder) decodeSymbol() Symbol {
	if r.next >= len(r.symbols) {
		r.err = corrupt("recorder ran out of symbols")
		return SymbolInvalid
	}
	s := r.symbols[r.next]
	r.next++
	r.tracker.last = s

	switch r.method {
	case TraversalPredictive:
		if r.predicted != SymbolInvalid {
			hit := r.predicted == s
			r.predictions = append(r.predictions, hit)
			if hit {
				return s
			}
		}
		r.explicit = append(r.explicit, s)
	case TraversalValence:
		if r.activeContext < 0 {
			if s != SymbolE {
				r.err = corrupt("traversal does not start with E")
				return SymbolInvalid
			}
			return s
		}
		r.contexts[r.activeContext] = append(r.contexts[r.activeContext], s.id())
	default:
		r.explicit = append(r.explicit, s)
	}
	return s
}

func (r *traversalRecorder) newActiveCornerReached(c corner.CornerIndex) {
	switch r.method {
	case TraversalPredictive:
		r.tracker.update(c)
		r.predicted = r.tracker.prediction(c)
	case TraversalValence:
		r.tracker.update(c)
		r.activeContext = r.tracker.context(c)
	}
}

func (r *traversalRecorder) mergeVertices(dest, src corner.VertexIndex) {
	if r.method != TraversalStandard {
		r.tracker.merge(dest, src)
	}
}

func (r *traversalRecorder) decodeStartFaceConfiguration() bool {
	if r.nextStart >= len(r.startFaces) {
		r.err = corrupt("recorder ran out of start faces")
		return false
	}
	v := r.startFaces[r.nextStart]
	r.nextStart++
	return v
}

// writeSymbols stores symbols as their bit patterns behind a byte size.
func writeSymbols(symbols []Symbol, dst *bitio.EncoderBuffer) error {
	if err := dst.StartBitEncoding(3*len(symbols), true); err != nil {
		return err
	}
	for _, s := range symbols {
		if err := dst.EncodeLeastSignificantBits32(s.bitLength(), uint32(s)); err != nil {
			return err
		}
	}
	dst.EndBitEncoding()
	return nil
}

// write emits the traversal payload in the layout traversalDecoder.read
// expects. startFaces and seams are the already filled bit coders.
func (r *traversalRecorder) write(dst *bitio.EncoderBuffer, startFaces *entropy.RAnsBitEncoder, seams []*entropy.RAnsBitEncoder, numSplits int, opts entropy.SymbolOptions) error {
	if r.method != TraversalValence {
		if err := writeSymbols(r.explicit, dst); err != nil {
			return err
		}
	}
	if err := startFaces.EndEncoding(dst); err != nil {
		return err
	}
	for _, s := range seams {
		if err := s.EndEncoding(dst); err != nil {
			return err
		}
	}
	switch r.method {
	case TraversalPredictive:
		dst.EncodeI32(int32(numSplits))
		enc := entropy.NewRAnsBitEncoder()
		enc.StartEncoding()
		for _, p := range r.predictions {
			enc.EncodeBit(p)
		}
		if err := enc.EndEncoding(dst); err != nil {
			return err
		}
	case TraversalValence:
		dst.EncodeU8(minValence)
		dst.EncodeU8(maxValence)
		for _, ctx := range r.contexts {
			dst.EncodeVarint(uint64(len(ctx)))
			if len(ctx) == 0 {
				continue
			}
			if err := entropy.EncodeSymbols(ctx, 1, opts, dst); err != nil {
				return err
			}
		}
	}
	return nil
}
