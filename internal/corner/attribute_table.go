package corner

// Connectivity is the read-only view shared by Table and AttributeTable.
// Traversals run on either one.
type Connectivity interface {
	NumCorners() int
	NumFaces() int
	NumVertices() int
	Opposite(c CornerIndex) CornerIndex
	Vertex(c CornerIndex) VertexIndex
	LeftMostCorner(v VertexIndex) CornerIndex
	SwingLeft(c CornerIndex) CornerIndex
	SwingRight(c CornerIndex) CornerIndex
	IsOnBoundary(v VertexIndex) bool
	IsDegenerate(f FaceIndex) bool
}

var (
	_ Connectivity = (*Table)(nil)
	_ Connectivity = (*AttributeTable)(nil)
)

// AttributeTable overlays attribute seams on a base Table. Seam edges act
// as boundaries, so a base vertex whose corners carry different attribute
// values is split into one attribute vertex per fan between seams.
type AttributeTable struct {
	base *Table

	isEdgeOnSeam    []bool
	isVertexOnSeam  []bool
	noInteriorSeams bool

	cornerToVertex []VertexIndex
	vertexCorners  []CornerIndex
	vertexToValue  []int
}

// NewAttributeTable returns a seam-free overlay of base. Seams are added
// with AddSeamEdge and take effect after RecomputeVertices.
func NewAttributeTable(base *Table) *AttributeTable {
	return &AttributeTable{
		base:            base,
		isEdgeOnSeam:    make([]bool, base.NumCorners()),
		isVertexOnSeam:  make([]bool, base.NumVertices()),
		noInteriorSeams: true,
		cornerToVertex:  make([]VertexIndex, base.NumCorners()),
	}
}

// NewAttributeTableFromValues derives seams from per-corner attribute
// value indices: boundary edges are seams, and so is every interior edge
// whose endpoints see different values on its two sides.
func NewAttributeTableFromValues(base *Table, valueOf func(CornerIndex) int) *AttributeTable {
	t := NewAttributeTable(base)
	for c := CornerIndex(0); int(c) < base.NumCorners(); c++ {
		if base.IsDegenerate(Face(c)) {
			continue
		}
		opp := base.Opposite(c)
		if opp == InvalidCorner {
			t.isEdgeOnSeam[c] = true
			t.isVertexOnSeam[base.Vertex(Next(c))] = true
			t.isVertexOnSeam[base.Vertex(Previous(c))] = true
			continue
		}
		if opp < c {
			continue
		}
		act, oppAct := c, opp
		for i := 0; i < 2; i++ {
			act = Next(act)
			oppAct = Previous(oppAct)
			if valueOf(act) != valueOf(oppAct) {
				t.AddSeamEdge(c)
				break
			}
		}
	}
	t.RecomputeVertices(valueOf)
	return t
}

// Base returns the underlying position connectivity.
func (t *AttributeTable) Base() *Table { return t.base }

// AddSeamEdge marks the edge opposite c, and its twin, as a seam.
func (t *AttributeTable) AddSeamEdge(c CornerIndex) {
	t.isEdgeOnSeam[c] = true
	t.isVertexOnSeam[t.base.Vertex(Next(c))] = true
	t.isVertexOnSeam[t.base.Vertex(Previous(c))] = true
	if opp := t.base.Opposite(c); opp != InvalidCorner {
		t.noInteriorSeams = false
		t.isEdgeOnSeam[opp] = true
		t.isVertexOnSeam[t.base.Vertex(Next(opp))] = true
		t.isVertexOnSeam[t.base.Vertex(Previous(opp))] = true
	}
}

// NoInteriorSeams reports whether every seam lies on the mesh boundary.
func (t *AttributeTable) NoInteriorSeams() bool { return t.noInteriorSeams }

// IsCornerOppositeToSeamEdge reports whether the edge opposite c is a seam.
func (t *AttributeTable) IsCornerOppositeToSeamEdge(c CornerIndex) bool {
	return t.isEdgeOnSeam[c]
}

// isCornerOnSeam reports whether the base vertex of c touches a seam.
func (t *AttributeTable) isCornerOnSeam(c CornerIndex) bool {
	return t.isVertexOnSeam[t.base.Vertex(c)]
}

// RecomputeVertices rebuilds attribute vertices from the current seams.
// valueOf supplies the attribute value of a corner; when nil, every
// attribute vertex maps to its own value index.
func (t *AttributeTable) RecomputeVertices(valueOf func(CornerIndex) int) {
	t.vertexCorners = t.vertexCorners[:0]
	t.vertexToValue = t.vertexToValue[:0]
	for i := range t.cornerToVertex {
		t.cornerToVertex[i] = InvalidVertex
	}
	newVertex := func(c CornerIndex) VertexIndex {
		id := VertexIndex(len(t.vertexCorners))
		t.vertexCorners = append(t.vertexCorners, c)
		if valueOf != nil {
			t.vertexToValue = append(t.vertexToValue, valueOf(c))
		} else {
			t.vertexToValue = append(t.vertexToValue, int(id))
		}
		return id
	}

	for v := VertexIndex(0); int(v) < t.base.NumVertices(); v++ {
		start := t.base.LeftMostCorner(v)
		if start == InvalidCorner {
			continue
		}
		first := start
		if t.base.IsOnBoundary(v) {
			for c := t.base.SwingLeft(first); c != InvalidCorner; c = t.base.SwingLeft(c) {
				first = c
			}
		} else if t.isVertexOnSeam[v] {
			for c := t.SwingLeft(first); c != InvalidCorner && c != start; c = t.SwingLeft(c) {
				first = c
			}
		}

		id := newVertex(first)
		t.cornerToVertex[first] = id
		for c := t.base.SwingRight(first); c != InvalidCorner && c != first; c = t.base.SwingRight(c) {
			if t.isEdgeOnSeam[Next(c)] {
				id = newVertex(c)
			}
			t.cornerToVertex[c] = id
		}
	}
}

// NumCorners returns the number of corners of the base table.
func (t *AttributeTable) NumCorners() int { return t.base.NumCorners() }

// NumFaces returns the number of faces of the base table.
func (t *AttributeTable) NumFaces() int { return t.base.NumFaces() }

// NumVertices returns the number of attribute vertices.
func (t *AttributeTable) NumVertices() int { return len(t.vertexCorners) }

// Opposite returns the opposite corner, treating seams as boundaries.
func (t *AttributeTable) Opposite(c CornerIndex) CornerIndex {
	if c < 0 || t.isEdgeOnSeam[c] {
		return InvalidCorner
	}
	return t.base.Opposite(c)
}

// Vertex returns the attribute vertex of corner c.
func (t *AttributeTable) Vertex(c CornerIndex) VertexIndex {
	if c < 0 || int(c) >= len(t.cornerToVertex) {
		return InvalidVertex
	}
	return t.cornerToVertex[c]
}

// LeftMostCorner returns the first corner of attribute vertex v.
func (t *AttributeTable) LeftMostCorner(v VertexIndex) CornerIndex {
	if v < 0 || int(v) >= len(t.vertexCorners) {
		return InvalidCorner
	}
	return t.vertexCorners[v]
}

// SwingLeft rotates counter-clockwise, stopping at seams.
func (t *AttributeTable) SwingLeft(c CornerIndex) CornerIndex {
	return Next(t.Opposite(Next(c)))
}

// SwingRight rotates clockwise, stopping at seams.
func (t *AttributeTable) SwingRight(c CornerIndex) CornerIndex {
	return Previous(t.Opposite(Previous(c)))
}

// IsOnBoundary reports whether the fan of attribute vertex v is bounded
// by a seam or the mesh boundary.
func (t *AttributeTable) IsOnBoundary(v VertexIndex) bool {
	first := t.LeftMostCorner(v)
	if first == InvalidCorner {
		return false
	}
	for c := t.SwingLeft(first); c != first; c = t.SwingLeft(c) {
		if c == InvalidCorner {
			return true
		}
	}
	return false
}

// IsDegenerate reports whether face f of the base table is degenerate.
func (t *AttributeTable) IsDegenerate(f FaceIndex) bool { return t.base.IsDegenerate(f) }

// ValueIndex returns the attribute value index of attribute vertex v.
func (t *AttributeTable) ValueIndex(v VertexIndex) int { return t.vertexToValue[v] }
