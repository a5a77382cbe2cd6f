package edgebreaker

import (
	"github.com/deepteams/draco/internal/corner"
)

// connectivityDecoder rebuilds a corner table from symbols in decoder
// order. The top of the active corner stack is the corner opposite the
// open edge that the next face attaches to.
type connectivityDecoder struct {
	table       *corner.Table
	source      traversalSource
	splits      []TopologySplitEvent // ascending source ids, consumed from the back
	maxVertices int

	active      []corner.CornerIndex
	splitActive map[int]corner.CornerIndex
	invalid     []corner.VertexIndex
	// isVertHole is set for vertices whose fan is still open: every new
	// vertex starts on a hole and C symbols and start faces close them.
	isVertHole []bool
}

func (d *connectivityDecoder) newVertex() corner.VertexIndex {
	d.isVertHole = append(d.isVertHole, true)
	return d.table.AddNewVertex()
}

// popSplit returns the split event sourced at encoderSymbolID, if any.
func (d *connectivityDecoder) popSplit(encoderSymbolID int) (TopologySplitEvent, bool, error) {
	if len(d.splits) == 0 {
		return TopologySplitEvent{}, false, nil
	}
	ev := d.splits[len(d.splits)-1]
	if ev.SourceSymbolID > encoderSymbolID {
		return ev, false, corrupt("split event source %d was skipped", ev.SourceSymbolID)
	}
	if ev.SourceSymbolID != encoderSymbolID {
		return ev, false, nil
	}
	d.splits = d.splits[:len(d.splits)-1]
	return ev, true, nil
}

// decode processes numSymbols symbols, closes the remaining active edges
// with start faces and compacts the vertex range. It returns the number of
// vertices in the final table.
func (d *connectivityDecoder) decode(numSymbols int) (int, error) {
	t := d.table
	d.splitActive = make(map[int]corner.CornerIndex)
	numFaces := 0

	for symbolID := 0; symbolID < numSymbols; symbolID++ {
		if numFaces >= t.NumFaces() {
			return 0, corrupt("more faces than announced")
		}
		c := corner.CornerIndex(3 * numFaces)
		numFaces++
		checkSplit := false

		switch s := d.source.decodeSymbol(); s {
		case SymbolC:
			if len(d.active) == 0 {
				return 0, corrupt("C symbol with empty active stack")
			}
			a := d.active[len(d.active)-1]
			x := t.Vertex(corner.Next(a))
			b := corner.Next(t.LeftMostCorner(x))
			if b == corner.InvalidCorner || a == b {
				return 0, corrupt("C symbol without a second open edge")
			}
			if t.Opposite(a) != corner.InvalidCorner || t.Opposite(b) != corner.InvalidCorner {
				return 0, corrupt("C symbol on a closed edge")
			}
			t.SetOppositeCorners(a, c+1)
			t.SetOppositeCorners(b, c+2)
			aPrev := t.Vertex(corner.Previous(a))
			bNext := t.Vertex(corner.Next(b))
			if x == aPrev || x == bNext {
				return 0, corrupt("C symbol builds a degenerate face")
			}
			t.MapCornerToVertex(c, x)
			t.MapCornerToVertex(c+1, bNext)
			t.MapCornerToVertex(c+2, aPrev)
			t.SetLeftMostCorner(aPrev, c+2)
			d.isVertHole[x] = false
			d.active[len(d.active)-1] = c

		case SymbolR, SymbolL:
			if len(d.active) == 0 {
				return 0, corrupt("%v symbol with empty active stack", s)
			}
			a := d.active[len(d.active)-1]
			if t.Opposite(a) != corner.InvalidCorner {
				return 0, corrupt("%v symbol on a closed edge", s)
			}
			var opp, cl, cr corner.CornerIndex
			if s == SymbolR {
				opp, cl, cr = c+2, c+1, c
			} else {
				opp, cl, cr = c+1, c, c+2
			}
			t.SetOppositeCorners(opp, a)
			v := d.newVertex()
			if t.NumVertices() > d.maxVertices {
				return 0, corrupt("more vertices than announced")
			}
			t.MapCornerToVertex(opp, v)
			t.SetLeftMostCorner(v, opp)
			vr := t.Vertex(corner.Previous(a))
			t.MapCornerToVertex(cr, vr)
			t.SetLeftMostCorner(vr, cr)
			t.MapCornerToVertex(cl, t.Vertex(corner.Next(a)))
			d.active[len(d.active)-1] = c
			checkSplit = true

		case SymbolS:
			if len(d.active) == 0 {
				return 0, corrupt("S symbol with empty active stack")
			}
			b := d.active[len(d.active)-1]
			d.active = d.active[:len(d.active)-1]
			if sc, ok := d.splitActive[symbolID]; ok {
				d.active = append(d.active, sc)
				delete(d.splitActive, symbolID)
			}
			if len(d.active) == 0 {
				return 0, corrupt("S symbol without a second active edge")
			}
			a := d.active[len(d.active)-1]
			if a == b {
				return 0, corrupt("S symbol joins an edge with itself")
			}
			if t.Opposite(a) != corner.InvalidCorner || t.Opposite(b) != corner.InvalidCorner {
				return 0, corrupt("S symbol on a closed edge")
			}
			t.SetOppositeCorners(a, c+2)
			t.SetOppositeCorners(b, c+1)
			p := t.Vertex(corner.Previous(a))
			t.MapCornerToVertex(c, p)
			t.MapCornerToVertex(c+1, t.Vertex(corner.Next(a)))
			bPrev := t.Vertex(corner.Previous(b))
			t.MapCornerToVertex(c+2, bPrev)
			t.SetLeftMostCorner(bPrev, c+2)

			cn := corner.Next(b)
			n := t.Vertex(cn)
			if n == p {
				return 0, corrupt("S symbol merges a vertex with itself")
			}
			d.source.mergeVertices(p, n)
			t.SetLeftMostCorner(p, t.LeftMostCorner(n))
			first := cn
			for steps := 0; cn != corner.InvalidCorner; steps++ {
				if steps > t.NumCorners() {
					return 0, corrupt("S symbol vertex ring does not terminate")
				}
				t.MapCornerToVertex(cn, p)
				cn = t.SwingLeft(cn)
				if cn == first {
					return 0, corrupt("S symbol on a closed vertex ring")
				}
			}
			t.MakeVertexIsolated(n)
			d.invalid = append(d.invalid, n)
			d.active[len(d.active)-1] = c

		case SymbolE:
			first := d.newVertex()
			t.MapCornerToVertex(c, first)
			t.MapCornerToVertex(c+1, d.newVertex())
			t.MapCornerToVertex(c+2, d.newVertex())
			if t.NumVertices() > d.maxVertices {
				return 0, corrupt("more vertices than announced")
			}
			t.SetLeftMostCorner(first, c)
			t.SetLeftMostCorner(first+1, c+1)
			t.SetLeftMostCorner(first+2, c+2)
			d.active = append(d.active, c)
			checkSplit = true

		default:
			return 0, corrupt("invalid symbol at %d", symbolID)
		}

		d.source.newActiveCornerReached(d.active[len(d.active)-1])

		if !checkSplit {
			continue
		}
		encoderSymbolID := numSymbols - symbolID - 1
		for {
			ev, ok, err := d.popSplit(encoderSymbolID)
			if err != nil {
				return 0, err
			}
			if !ok {
				break
			}
			if ev.SplitSymbolID < 0 || ev.SplitSymbolID >= encoderSymbolID {
				return 0, corrupt("split symbol %d for source %d", ev.SplitSymbolID, ev.SourceSymbolID)
			}
			top := d.active[len(d.active)-1]
			var na corner.CornerIndex
			if ev.SourceEdge == RightFaceEdge {
				na = corner.Next(top)
			} else {
				na = corner.Previous(top)
			}
			d.splitActive[numSymbols-ev.SplitSymbolID-1] = na
		}
	}

	if t.NumVertices() > d.maxVertices {
		return 0, corrupt("more vertices than announced")
	}
	if len(d.splits) > 0 || len(d.splitActive) > 0 {
		return 0, corrupt("%d split events and %d split edges left unused", len(d.splits), len(d.splitActive))
	}

	for len(d.active) > 0 {
		a := d.active[len(d.active)-1]
		d.active = d.active[:len(d.active)-1]
		if !d.source.decodeStartFaceConfiguration() {
			continue
		}
		if numFaces >= t.NumFaces() {
			return 0, corrupt("more faces than announced")
		}
		n := t.Vertex(corner.Next(a))
		b := corner.Next(t.LeftMostCorner(n))
		x := t.Vertex(corner.Next(b))
		cc := corner.Next(t.LeftMostCorner(x))
		if b == corner.InvalidCorner || cc == corner.InvalidCorner || a == b || a == cc || b == cc {
			return 0, corrupt("interior start face without three open edges")
		}
		if t.Opposite(a) != corner.InvalidCorner || t.Opposite(b) != corner.InvalidCorner || t.Opposite(cc) != corner.InvalidCorner {
			return 0, corrupt("interior start face on a closed edge")
		}
		p := t.Vertex(corner.Next(cc))
		c := corner.CornerIndex(3 * numFaces)
		numFaces++
		t.SetOppositeCorners(c, a)
		t.SetOppositeCorners(c+1, b)
		t.SetOppositeCorners(c+2, cc)
		t.MapCornerToVertex(c, x)
		t.MapCornerToVertex(c+1, p)
		t.MapCornerToVertex(c+2, n)
		d.isVertHole[x], d.isVertHole[p], d.isVertHole[n] = false, false, false
	}
	if numFaces != t.NumFaces() {
		return 0, corrupt("decoded %d faces, announced %d", numFaces, t.NumFaces())
	}

	return d.compactVertices()
}

// compactVertices moves the last live vertex into each slot freed by a
// split merge so that vertices occupy a dense range.
func (d *connectivityDecoder) compactVertices() (int, error) {
	t := d.table
	numVertices := t.NumVertices()
	for _, hole := range d.invalid {
		for numVertices > 0 && t.IsVertexIsolated(corner.VertexIndex(numVertices-1)) {
			numVertices--
		}
		if numVertices == 0 {
			break
		}
		src := corner.VertexIndex(numVertices - 1)
		if src < hole {
			continue
		}
		for _, c := range t.VertexCorners(src) {
			if t.Vertex(c) != src {
				return 0, corrupt("vertex %d ring contains corner %d of another vertex", src, c)
			}
			t.MapCornerToVertex(c, hole)
		}
		t.SetLeftMostCorner(hole, t.LeftMostCorner(src))
		d.isVertHole[hole] = d.isVertHole[src]
		t.MakeVertexIsolated(src)
		numVertices--
	}
	for numVertices > 0 && t.IsVertexIsolated(corner.VertexIndex(numVertices-1)) {
		numVertices--
	}
	t.ShrinkVertices(numVertices)
	d.isVertHole = d.isVertHole[:numVertices]
	for v := corner.VertexIndex(0); int(v) < numVertices; v++ {
		if t.IsVertexIsolated(v) {
			return 0, corrupt("vertex %d left without faces", v)
		}
		t.UpdateVertexToCornerMap(v)
	}
	return numVertices, nil
}

// checkHoles verifies that the hole flags match the open fans of the
// rebuilt table and that the boundary forms one loop per hole event.
func (d *connectivityDecoder) checkHoles(numHoles int) error {
	t := d.table
	for v, hole := range d.isVertHole {
		if hole != t.IsOnBoundary(corner.VertexIndex(v)) {
			return corrupt("vertex %d hole flag disagrees with its fan", v)
		}
	}

	// Every open fan contributes exactly one outgoing boundary edge.
	next := make([]corner.VertexIndex, len(d.isVertHole))
	for i := range next {
		next[i] = corner.InvalidVertex
	}
	for c := corner.CornerIndex(0); int(c) < t.NumCorners(); c++ {
		if t.Opposite(c) != corner.InvalidCorner {
			continue
		}
		from, to := t.Vertex(corner.Next(c)), t.Vertex(corner.Previous(c))
		if from < 0 || int(from) >= len(next) || to < 0 || int(to) >= len(next) {
			return corrupt("boundary edge of corner %d leaves the vertex range", c)
		}
		if next[from] != corner.InvalidVertex {
			return corrupt("vertex %d starts two boundary edges", from)
		}
		next[from] = to
	}

	loops := 0
	seen := make([]bool, len(next))
	for v := range next {
		if !d.isVertHole[v] || seen[v] {
			continue
		}
		loops++
		for cur := corner.VertexIndex(v); !seen[cur]; cur = next[cur] {
			if next[cur] == corner.InvalidVertex {
				return corrupt("boundary loop through vertex %d is open", cur)
			}
			seen[cur] = true
		}
	}
	if loops != numHoles {
		return corrupt("%d boundary loops for %d hole events", loops, numHoles)
	}
	return nil
}
