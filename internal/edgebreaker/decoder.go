package edgebreaker

import (
	"fmt"
	"math"

	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/corner"
)

// DefaultMaxFaces bounds the face count a decoder accepts when
// DecodeOptions.MaxFaces is zero.
const DefaultMaxFaces = 1 << 26

// DecodeOptions bounds what Decode allocates for a stream.
type DecodeOptions struct {
	MaxFaces int
}

// Header holds the counts at the start of a connectivity stream.
type Header struct {
	Method          TraversalMethod
	NumVertices     int
	NumFaces        int
	NumAttributes   int
	NumSymbols      int
	NumSplitSymbols int
}

// ReadHeader reads and checks the counts written at the start of a
// connectivity stream. Face counts above maxFaces are rejected with
// ErrTooLarge; zero selects DefaultMaxFaces.
func ReadHeader(src *bitio.DecoderBuffer, maxFaces int) (Header, error) {
	if maxFaces <= 0 {
		maxFaces = DefaultMaxFaces
	}
	var h Header
	m, err := src.DecodeU8()
	if err != nil {
		return h, fmt.Errorf("edgebreaker: traversal method: %w", err)
	}
	h.Method = TraversalMethod(m)
	if h.Method > TraversalValence {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedTraversal, m)
	}
	numVertices, err := src.DecodeVarintU32()
	if err != nil {
		return h, fmt.Errorf("edgebreaker: vertex count: %w", err)
	}
	numFaces, err := src.DecodeVarintU32()
	if err != nil {
		return h, fmt.Errorf("edgebreaker: face count: %w", err)
	}
	if uint64(numFaces) > math.MaxInt32/3 || int(numFaces) > maxFaces {
		return h, fmt.Errorf("%w: %d faces", ErrTooLarge, numFaces)
	}
	numAttrs, err := src.DecodeU8()
	if err != nil {
		return h, fmt.Errorf("edgebreaker: attribute count: %w", err)
	}
	numSymbols, err := src.DecodeVarintU32()
	if err != nil {
		return h, fmt.Errorf("edgebreaker: symbol count: %w", err)
	}
	if numFaces < numSymbols {
		return h, corrupt("%d symbols for %d faces", numSymbols, numFaces)
	}
	if uint64(numFaces) > uint64(numSymbols)+uint64(numSymbols/3) {
		return h, corrupt("%d faces cannot come from %d symbols", numFaces, numSymbols)
	}
	numSplitSymbols, err := src.DecodeVarintU32()
	if err != nil {
		return h, fmt.Errorf("edgebreaker: split symbol count: %w", err)
	}
	if numSplitSymbols > numSymbols {
		return h, corrupt("%d split symbols for %d symbols", numSplitSymbols, numSymbols)
	}
	if uint64(numVertices) > 3*uint64(numFaces) {
		return h, corrupt("%d vertices for %d faces", numVertices, numFaces)
	}
	h.NumVertices = int(numVertices)
	h.NumFaces = int(numFaces)
	h.NumAttributes = int(numAttrs)
	h.NumSymbols = int(numSymbols)
	h.NumSplitSymbols = int(numSplitSymbols)
	return h, nil
}

// Decode reads connectivity written by Encode and rebuilds the corner
// table together with one attribute table per encoded attribute.
func Decode(src *bitio.DecoderBuffer, opts DecodeOptions) (*Result, error) {
	h, err := ReadHeader(src, opts.MaxFaces)
	if err != nil {
		return nil, err
	}
	method := h.Method
	numFaces, numAttrs, numSymbols, numSplitSymbols := h.NumFaces, h.NumAttributes, h.NumSymbols, h.NumSplitSymbols

	splits, err := decodeSplits(src, numFaces, numSymbols)
	if err != nil {
		return nil, err
	}
	holes, err := decodeHoles(src, numSymbols)
	if err != nil {
		return nil, err
	}

	maxVertices := h.NumVertices + numSplitSymbols
	td := &traversalDecoder{method: method}
	if err := td.read(src, numSymbols, maxVertices, numAttrs); err != nil {
		return nil, err
	}

	table := corner.New(numFaces)
	td.attach(table, maxVertices)
	d := &connectivityDecoder{
		table:       table,
		source:      td,
		splits:      splits,
		maxVertices: maxVertices,
	}
	n, err := d.decode(numSymbols)
	if err != nil {
		return nil, err
	}
	if td.failed {
		return nil, corrupt("symbol stream exhausted")
	}
	if err := d.checkHoles(len(holes)); err != nil {
		return nil, err
	}

	attrs := make([]*corner.AttributeTable, numAttrs)
	for i := range attrs {
		attrs[i] = corner.NewAttributeTable(table)
	}
	if len(attrs) > 0 {
		for f := 0; f < table.NumFaces(); f++ {
			c := corner.CornerIndex(3 * f)
			for _, fc := range [3]corner.CornerIndex{c, corner.Next(c), corner.Previous(c)} {
				opp := table.Opposite(fc)
				if opp == corner.InvalidCorner {
					for _, a := range attrs {
						a.AddSeamEdge(fc)
					}
					continue
				}
				if int(corner.Face(opp)) < f {
					continue
				}
				for i, a := range attrs {
					if td.decodeSeam(i) {
						a.AddSeamEdge(fc)
					}
				}
			}
		}
		for _, a := range attrs {
			a.RecomputeVertices(nil)
		}
	}
	if err := td.done(); err != nil {
		return nil, err
	}

	corners := make([]corner.CornerIndex, table.NumFaces())
	for f := range corners {
		corners[f] = corner.CornerIndex(3 * f)
	}

	slogger().Debug("edgebreaker: decoded connectivity",
		"method", method, "faces", numFaces, "vertices", n,
		"symbols", numSymbols, "splits", len(splits), "holes", len(holes))

	return &Result{
		Table:           table,
		Attributes:      attrs,
		Corners:         corners,
		NumVertices:     n,
		NumSymbols:      numSymbols,
		NumSplitSymbols: numSplitSymbols,
		Splits:          splits,
		Holes:           holes,
		Method:          method,
		onHole:          d.isVertHole,
	}, nil
}

func decodeSplits(src *bitio.DecoderBuffer, numFaces, numSymbols int) ([]TopologySplitEvent, error) {
	n, err := src.DecodeVarintU32()
	if err != nil {
		return nil, fmt.Errorf("edgebreaker: split event count: %w", err)
	}
	if int(n) > numFaces {
		return nil, corrupt("%d split events for %d faces", n, numFaces)
	}
	// Each event takes at least two bytes.
	if uint64(n) > uint64(src.RemainingSize())/2 {
		return nil, corrupt("%d split events exceed input", n)
	}
	if n == 0 {
		return nil, nil
	}
	splits := make([]TopologySplitEvent, n)
	last := 0
	for i := range splits {
		delta, err := src.DecodeVarintU32()
		if err != nil {
			return nil, err
		}
		source := last + int(delta)
		if source >= numSymbols || source < last {
			return nil, corrupt("split event source %d", source)
		}
		delta, err = src.DecodeVarintU32()
		if err != nil {
			return nil, err
		}
		if int(delta) > source {
			return nil, corrupt("split event delta %d exceeds source %d", delta, source)
		}
		splits[i] = TopologySplitEvent{SourceSymbolID: source, SplitSymbolID: source - int(delta)}
		last = source
	}
	if _, err := src.StartBitDecoding(false); err != nil {
		return nil, err
	}
	for i := range splits {
		bit, err := src.DecodeLeastSignificantBits32(1)
		if err != nil {
			return nil, fmt.Errorf("edgebreaker: split edges: %w", err)
		}
		splits[i].SourceEdge = EdgeFace(bit & 1)
	}
	src.EndBitDecoding()
	return splits, nil
}

func decodeHoles(src *bitio.DecoderBuffer, numSymbols int) ([]HoleEvent, error) {
	n, err := src.DecodeVarintU32()
	if err != nil {
		return nil, fmt.Errorf("edgebreaker: hole event count: %w", err)
	}
	if int(n) > numSymbols || int(n) > src.RemainingSize() {
		return nil, corrupt("%d hole events for %d symbols", n, numSymbols)
	}
	if n == 0 {
		return nil, nil
	}
	holes := make([]HoleEvent, n)
	last := 0
	for i := range holes {
		delta, err := src.DecodeVarintU32()
		if err != nil {
			return nil, err
		}
		id := last + int(delta)
		if id >= numSymbols || id < last {
			return nil, corrupt("hole event symbol %d", id)
		}
		holes[i] = HoleEvent{SymbolID: id}
		last = id
	}
	return holes, nil
}
