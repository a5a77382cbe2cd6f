package edgebreaker

import (
	"fmt"
	"slices"

	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/corner"
	"github.com/deepteams/draco/internal/entropy"
)

// EncodeOptions configures Encode.
type EncodeOptions struct {
	Method  TraversalMethod
	Symbols entropy.SymbolOptions
}

// Result describes connectivity after encoding or decoding.
type Result struct {
	Table      *corner.Table
	Attributes []*corner.AttributeTable
	// Corners holds one corner per face in the order the decoder creates
	// faces. Attribute traversals visit them in this order on both sides.
	Corners         []corner.CornerIndex
	NumVertices     int
	NumSymbols      int
	NumSplitSymbols int
	Splits          []TopologySplitEvent
	Holes           []HoleEvent
	Method          TraversalMethod

	// onHole flags decoded vertices that lie on an open boundary.
	onHole []bool
}

type encoder struct {
	table *corner.Table
	attrs []*corner.AttributeTable

	visitedFaces    []bool
	visitedVertices []bool
	vertexHoleID    []int
	visitedHoles    []bool

	symbols           []Symbol
	splits            []TopologySplitEvent
	holes             []HoleEvent
	faceToSplitSymbol map[corner.FaceIndex]int
	startFaces        []bool
	processed         []corner.CornerIndex
	initCorners       []corner.CornerIndex
	stack             []corner.CornerIndex
	lastSymbolID      int
	numSplitSymbols   int
}

// Encode writes the connectivity of table, followed by the seams of every
// attribute table built on it, to dst.
func Encode(table *corner.Table, attrs []*corner.AttributeTable, opts EncodeOptions, dst *bitio.EncoderBuffer) (*Result, error) {
	if opts.Method > TraversalValence {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTraversal, opts.Method)
	}
	if len(attrs) > 255 {
		return nil, fmt.Errorf("edgebreaker: %d attribute tables", len(attrs))
	}
	for _, a := range attrs {
		if a.Base() != table {
			return nil, fmt.Errorf("edgebreaker: attribute table built on another corner table")
		}
	}

	e := &encoder{
		table:             table,
		attrs:             attrs,
		visitedFaces:      make([]bool, table.NumFaces()),
		visitedVertices:   make([]bool, table.NumVertices()),
		vertexHoleID:      make([]int, table.NumVertices()),
		faceToSplitSymbol: make(map[corner.FaceIndex]int),
		lastSymbolID:      -1,
	}
	for i := range e.vertexHoleID {
		e.vertexHoleID[i] = -1
	}
	e.findHoles()
	if err := e.traverse(); err != nil {
		return nil, err
	}

	numVertices := table.NumVertices() - table.NumIsolatedVertices()
	numFaces := table.NumFaces() - table.NumDegenerateFaces()

	decodeOrder := slices.Clone(e.symbols)
	slices.Reverse(decodeOrder)
	corners := slices.Clone(e.processed)
	slices.Reverse(corners)
	corners = append(corners, e.initCorners...)

	rec := newTraversalRecorder(opts.Method, decodeOrder, e.startFaces)
	if opts.Method == TraversalStandard {
		rec.explicit = decodeOrder
	} else if err := e.simulate(rec, numFaces, numVertices); err != nil {
		return nil, err
	}

	dst.EncodeU8(uint8(opts.Method))
	dst.EncodeVarint(uint64(numVertices))
	dst.EncodeVarint(uint64(numFaces))
	dst.EncodeU8(uint8(len(attrs)))
	dst.EncodeVarint(uint64(len(e.symbols)))
	dst.EncodeVarint(uint64(e.numSplitSymbols))
	if err := e.writeEvents(dst); err != nil {
		return nil, err
	}

	startFaces := entropy.NewRAnsBitEncoder()
	startFaces.StartEncoding()
	for _, interior := range e.startFaces {
		startFaces.EncodeBit(interior)
	}
	seams := e.encodeSeams(corners)
	if err := rec.write(dst, startFaces, seams, e.numSplitSymbols, opts.Symbols); err != nil {
		return nil, err
	}

	slogger().Debug("edgebreaker: encoded connectivity",
		"method", opts.Method, "faces", numFaces, "vertices", numVertices,
		"symbols", len(e.symbols), "splits", len(e.splits), "holes", len(e.holes))

	return &Result{
		Table:           table,
		Attributes:      attrs,
		Corners:         corners,
		NumVertices:     numVertices,
		NumSymbols:      len(e.symbols),
		NumSplitSymbols: e.numSplitSymbols,
		Splits:          e.splits,
		Holes:           e.holes,
		Method:          opts.Method,
	}, nil
}

// findHoles labels every vertex on an open boundary with the id of its
// boundary loop.
func (e *encoder) findHoles() {
	t := e.table
	for c := corner.CornerIndex(0); int(c) < t.NumCorners(); c++ {
		if t.IsDegenerate(corner.Face(c)) || t.Opposite(c) != corner.InvalidCorner {
			continue
		}
		v := t.Vertex(corner.Next(c))
		if e.vertexHoleID[v] != -1 {
			continue
		}
		id := len(e.visitedHoles)
		e.visitedHoles = append(e.visitedHoles, false)
		cur := c
		for e.vertexHoleID[v] == -1 {
			e.vertexHoleID[v] = id
			cur = corner.Next(cur)
			for t.Opposite(cur) != corner.InvalidCorner {
				cur = corner.Next(t.Opposite(cur))
			}
			v = t.Vertex(corner.Next(cur))
		}
	}
}

func (e *encoder) traverse() error {
	t := e.table
	for c := corner.CornerIndex(0); int(c) < t.NumCorners(); c++ {
		f := corner.Face(c)
		if e.visitedFaces[f] || t.IsDegenerate(f) {
			continue
		}
		start, interior := e.initFaceConfiguration(f)
		e.startFaces = append(e.startFaces, interior)
		if interior {
			for _, v := range t.FaceVertices(f) {
				e.visitedVertices[v] = true
			}
			e.visitedFaces[f] = true
			e.initCorners = append(e.initCorners, corner.Next(start))
			opp := t.Opposite(corner.Next(start))
			if of := corner.Face(opp); of != corner.InvalidFace && !e.visitedFaces[of] {
				if err := e.encodeFromCorner(opp); err != nil {
					return err
				}
			}
			continue
		}
		e.encodeHole(corner.Next(start), true, e.lastSymbolID+1)
		if err := e.encodeFromCorner(start); err != nil {
			return err
		}
	}
	return nil
}

// initFaceConfiguration picks the corner a component traversal starts
// from. Faces touching the boundary start on the boundary edge; fully
// interior faces become an implicit start face.
func (e *encoder) initFaceConfiguration(f corner.FaceIndex) (corner.CornerIndex, bool) {
	t := e.table
	c := corner.FirstCorner(f)
	for i := 0; i < 3; i++ {
		if t.Opposite(c) == corner.InvalidCorner {
			return c, false
		}
		if e.vertexHoleID[t.Vertex(c)] != -1 {
			for right := c; right != corner.InvalidCorner; right = t.SwingRight(right) {
				c = right
			}
			return corner.Previous(c), false
		}
		c = corner.Next(c)
	}
	return c, true
}

// encodeHole marks every vertex of the boundary loop through the vertex of
// start as visited and returns how many were marked. symbolID is the
// symbol during which the loop is reached.
func (e *encoder) encodeHole(start corner.CornerIndex, encodeFirst bool, symbolID int) int {
	t := e.table
	c := corner.Previous(start)
	for t.Opposite(c) != corner.InvalidCorner {
		c = corner.Next(t.Opposite(c))
	}
	startVertex := t.Vertex(start)
	n := 0
	if encodeFirst {
		e.visitedVertices[startVertex] = true
		n++
	}
	if id := e.vertexHoleID[startVertex]; id >= 0 {
		e.visitedHoles[id] = true
	}
	e.holes = append(e.holes, HoleEvent{SymbolID: symbolID})

	for v := t.Vertex(corner.Previous(c)); v != startVertex; v = t.Vertex(corner.Previous(c)) {
		e.visitedVertices[v] = true
		n++
		c = corner.Next(c)
		for t.Opposite(c) != corner.InvalidCorner {
			c = corner.Next(t.Opposite(c))
		}
	}
	return n
}

func (e *encoder) faceVisited(c corner.CornerIndex) bool {
	if c == corner.InvalidCorner {
		return true
	}
	return e.visitedFaces[corner.Face(c)]
}

func (e *encoder) storeSplitEvent(srcSymbol int, edge EdgeFace, neighbor corner.CornerIndex) {
	if neighbor == corner.InvalidCorner {
		return
	}
	split, ok := e.faceToSplitSymbol[corner.Face(neighbor)]
	if !ok {
		return
	}
	e.splits = append(e.splits, TopologySplitEvent{
		SplitSymbolID:  split,
		SourceSymbolID: srcSymbol,
		SourceEdge:     edge,
	})
}

func (e *encoder) encodeFromCorner(c corner.CornerIndex) error {
	t := e.table
	e.stack = append(e.stack[:0], c)
	numFaces := t.NumFaces()

	for len(e.stack) > 0 {
		c = e.stack[len(e.stack)-1]
		if e.faceVisited(c) {
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}
		for visited := 0; visited < numFaces; visited++ {
			e.lastSymbolID++
			f := corner.Face(c)
			e.visitedFaces[f] = true
			e.processed = append(e.processed, c)

			v := t.Vertex(c)
			onBoundary := e.vertexHoleID[v] != -1
			if !e.visitedVertices[v] {
				e.visitedVertices[v] = true
				if !onBoundary {
					e.symbols = append(e.symbols, SymbolC)
					c = t.RightCorner(c)
					continue
				}
			}

			right, left := t.RightCorner(c), t.LeftCorner(c)
			if e.faceVisited(right) {
				e.storeSplitEvent(e.lastSymbolID, RightFaceEdge, right)
				if e.faceVisited(left) {
					e.storeSplitEvent(e.lastSymbolID, LeftFaceEdge, left)
					e.symbols = append(e.symbols, SymbolE)
					e.stack = e.stack[:len(e.stack)-1]
					break
				}
				e.symbols = append(e.symbols, SymbolR)
				c = left
				continue
			}
			if e.faceVisited(left) {
				e.storeSplitEvent(e.lastSymbolID, LeftFaceEdge, left)
				e.symbols = append(e.symbols, SymbolL)
				c = right
				continue
			}

			e.symbols = append(e.symbols, SymbolS)
			e.numSplitSymbols++
			if onBoundary {
				if id := e.vertexHoleID[v]; !e.visitedHoles[id] {
					e.encodeHole(c, false, e.lastSymbolID)
				}
			}
			e.faceToSplitSymbol[f] = e.lastSymbolID
			e.stack[len(e.stack)-1] = left
			e.stack = append(e.stack, right)
			break
		}
	}
	if len(e.symbols) != e.lastSymbolID+1 {
		return fmt.Errorf("edgebreaker: traversal emitted %d symbols for %d faces", len(e.symbols), e.lastSymbolID+1)
	}
	return nil
}

// writeEvents stores split events as delta-coded varints with the edge
// bits packed behind them, followed by the hole events.
func (e *encoder) writeEvents(dst *bitio.EncoderBuffer) error {
	dst.EncodeVarint(uint64(len(e.splits)))
	if len(e.splits) > 0 {
		last := 0
		for _, ev := range e.splits {
			dst.EncodeVarint(uint64(ev.SourceSymbolID - last))
			dst.EncodeVarint(uint64(ev.SourceSymbolID - ev.SplitSymbolID))
			last = ev.SourceSymbolID
		}
		if err := dst.StartBitEncoding(len(e.splits), false); err != nil {
			return err
		}
		for _, ev := range e.splits {
			if err := dst.EncodeLeastSignificantBits32(1, uint32(ev.SourceEdge)); err != nil {
				return err
			}
		}
		dst.EndBitEncoding()
	}

	dst.EncodeVarint(uint64(len(e.holes)))
	last := 0
	for _, h := range e.holes {
		dst.EncodeVarint(uint64(h.SymbolID - last))
		last = h.SymbolID
	}
	return nil
}

// encodeSeams codes, for every attribute, one bit per interior edge in
// the face order the decoder will use.
func (e *encoder) encodeSeams(corners []corner.CornerIndex) []*entropy.RAnsBitEncoder {
	coders := make([]*entropy.RAnsBitEncoder, len(e.attrs))
	for i := range coders {
		coders[i] = entropy.NewRAnsBitEncoder()
		coders[i].StartEncoding()
	}
	if len(coders) == 0 {
		return coders
	}
	t := e.table
	visited := make([]bool, t.NumFaces())
	for _, c := range corners {
		visited[corner.Face(c)] = true
		for _, fc := range [3]corner.CornerIndex{c, corner.Next(c), corner.Previous(c)} {
			opp := t.Opposite(fc)
			if opp == corner.InvalidCorner || visited[corner.Face(opp)] {
				continue
			}
			for i, a := range e.attrs {
				coders[i].EncodeBit(a.IsCornerOppositeToSeamEdge(fc))
			}
		}
	}
	return coders
}

// simulate runs the connectivity decoder over the encoder's own symbols so
// that the recorder captures predictions and contexts exactly as the
// decoder will compute them.
func (e *encoder) simulate(rec *traversalRecorder, numFaces, numVertices int) error {
	table := corner.New(numFaces)
	rec.tracker.init(table, numVertices+e.numSplitSymbols)
	d := &connectivityDecoder{
		table:       table,
		source:      rec,
		splits:      slices.Clone(e.splits),
		maxVertices: numVertices + e.numSplitSymbols,
	}
	if _, err := d.decode(len(e.symbols)); err != nil {
		return fmt.Errorf("edgebreaker: traversal simulation: %w", err)
	}
	if rec.err != nil {
		return fmt.Errorf("edgebreaker: traversal simulation: %w", rec.err)
	}
	return nil
}
