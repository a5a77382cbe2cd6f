// Package corner implements the corner table: a compact triangle mesh
// connectivity structure in which every face owns three consecutive
// corners and every corner knows its vertex and its opposite corner.
package corner

// CornerIndex identifies a corner; face f owns corners 3f, 3f+1, 3f+2.
type CornerIndex int32

// VertexIndex identifies a connectivity vertex.
type VertexIndex int32

// FaceIndex identifies a face.
type FaceIndex int32

// Sentinels for missing elements.
const (
	InvalidCorner CornerIndex = -1
	InvalidVertex VertexIndex = -1
	InvalidFace   FaceIndex   = -1
)

// Next returns the next corner of the same face in winding order.
func Next(c CornerIndex) CornerIndex {
	if c < 0 {
		return InvalidCorner
	}
	if c%3 == 2 {
		return c - 2
	}
	return c + 1
}

// Previous returns the previous corner of the same face.
func Previous(c CornerIndex) CornerIndex {
	if c < 0 {
		return InvalidCorner
	}
	if c%3 == 0 {
		return c + 2
	}
	return c - 1
}

// Face returns the face owning corner c.
func Face(c CornerIndex) FaceIndex {
	if c < 0 {
		return InvalidFace
	}
	return FaceIndex(c / 3)
}

// FirstCorner returns the first corner of face f.
func FirstCorner(f FaceIndex) CornerIndex {
	if f < 0 {
		return InvalidCorner
	}
	return CornerIndex(f * 3)
}

// Table is the corner table of a triangle mesh.
//
// Mutators write the arrays directly and do not validate invariants; the
// edgebreaker coder that drives them is responsible for keeping opposite
// links symmetric.
type Table struct {
	cornerToVertex  []VertexIndex
	oppositeCorners []CornerIndex
	vertexCorners   []CornerIndex

	numOriginalVertices int
	numDegenerateFaces  int
	numIsolatedVertices int
	// nonManifoldParents maps vertices created while splitting
	// non-manifold vertices to the vertex they were split from.
	nonManifoldParents []VertexIndex
}

// New returns an empty table with room for numFaces faces. All corners
// start unmapped and on the boundary.
func New(numFaces int) *Table {
	t := &Table{}
	t.Reset(numFaces)
	return t
}

// Reset clears the table to numFaces unmapped faces and no vertices.
func (t *Table) Reset(numFaces int) {
	n := 3 * numFaces
	t.cornerToVertex = make([]VertexIndex, n)
	t.oppositeCorners = make([]CornerIndex, n)
	for i := range t.cornerToVertex {
		t.cornerToVertex[i] = InvalidVertex
		t.oppositeCorners[i] = InvalidCorner
	}
	t.vertexCorners = t.vertexCorners[:0]
	t.numOriginalVertices = 0
	t.numDegenerateFaces = 0
	t.numIsolatedVertices = 0
	t.nonManifoldParents = nil
}

// NewFromFaces builds a table from per-face vertex indices. Opposite
// corners are matched along shared edges, edges shared by more than two
// faces and folded vertex rings are broken, and non-manifold vertices are
// split so that every vertex owns a single fan of corners.
func NewFromFaces(faces [][3]VertexIndex) *Table {
	t := New(len(faces))
	numVertices := 0
	for f, face := range faces {
		for k, v := range face {
			t.cornerToVertex[3*f+k] = v
			if int(v) >= numVertices {
				numVertices = int(v) + 1
			}
		}
	}
	t.computeOppositeCorners(numVertices)
	t.breakNonManifoldEdges()
	t.computeVertexCorners(numVertices)
	return t
}

// NumCorners returns the number of corners.
func (t *Table) NumCorners() int { return len(t.cornerToVertex) }

// NumFaces returns the number of faces.
func (t *Table) NumFaces() int { return len(t.cornerToVertex) / 3 }

// NumVertices returns the number of vertices, isolated ones included.
func (t *Table) NumVertices() int { return len(t.vertexCorners) }

// NumOriginalVertices returns the vertex count before non-manifold
// vertices were split.
func (t *Table) NumOriginalVertices() int { return t.numOriginalVertices }

// NumDegenerateFaces returns the number of faces with repeated vertices.
func (t *Table) NumDegenerateFaces() int { return t.numDegenerateFaces }

// NumIsolatedVertices returns the number of vertices with no corner.
func (t *Table) NumIsolatedVertices() int { return t.numIsolatedVertices }

// nonManifoldParent returns the original vertex a split vertex came from,
// or InvalidVertex for vertices that were not created by splitting.
func (t *Table) nonManifoldParent(v VertexIndex) VertexIndex {
	i := int(v) - t.numOriginalVertices
	if i < 0 || i >= len(t.nonManifoldParents) {
		return InvalidVertex
	}
	return t.nonManifoldParents[i]
}

// Opposite returns the corner across the edge opposite c, or
// InvalidCorner on the boundary.
func (t *Table) Opposite(c CornerIndex) CornerIndex {
	if c < 0 {
		return InvalidCorner
	}
	return t.oppositeCorners[c]
}

// Next returns the next corner in the face of c.
func (t *Table) Next(c CornerIndex) CornerIndex { return Next(c) }

// Previous returns the previous corner in the face of c.
func (t *Table) Previous(c CornerIndex) CornerIndex { return Previous(c) }

// Vertex returns the vertex of corner c.
func (t *Table) Vertex(c CornerIndex) VertexIndex {
	if c < 0 || int(c) >= len(t.cornerToVertex) {
		return InvalidVertex
	}
	return t.cornerToVertex[c]
}

// FaceVertices returns the three vertices of face f.
func (t *Table) FaceVertices(f FaceIndex) [3]VertexIndex {
	c := FirstCorner(f)
	return [3]VertexIndex{t.cornerToVertex[c], t.cornerToVertex[c+1], t.cornerToVertex[c+2]}
}

// LeftMostCorner returns the canonical corner of v. For vertices on the
// boundary it is the corner from which SwingLeft leaves the mesh.
func (t *Table) LeftMostCorner(v VertexIndex) CornerIndex {
	if v < 0 || int(v) >= len(t.vertexCorners) {
		return InvalidCorner
	}
	return t.vertexCorners[v]
}

// SwingRight rotates clockwise around the vertex of c.
func (t *Table) SwingRight(c CornerIndex) CornerIndex {
	return Previous(t.Opposite(Previous(c)))
}

// SwingLeft rotates counter-clockwise around the vertex of c.
func (t *Table) SwingLeft(c CornerIndex) CornerIndex {
	return Next(t.Opposite(Next(c)))
}

// RightCorner returns the corner opposite the edge to the right of c.
func (t *Table) RightCorner(c CornerIndex) CornerIndex { return t.Opposite(Next(c)) }

// LeftCorner returns the corner opposite the edge to the left of c.
func (t *Table) LeftCorner(c CornerIndex) CornerIndex { return t.Opposite(Previous(c)) }

// SetOppositeCorner sets one direction of an opposite link.
func (t *Table) SetOppositeCorner(c, opp CornerIndex) {
	if c < 0 {
		return
	}
	t.oppositeCorners[c] = opp
}

// SetOppositeCorners links c0 and c1 in both directions.
func (t *Table) SetOppositeCorners(c0, c1 CornerIndex) {
	t.SetOppositeCorner(c0, c1)
	t.SetOppositeCorner(c1, c0)
}

// MapCornerToVertex assigns vertex v to corner c.
func (t *Table) MapCornerToVertex(c CornerIndex, v VertexIndex) {
	t.cornerToVertex[c] = v
}

// SetLeftMostCorner records c as the canonical corner of v.
func (t *Table) SetLeftMostCorner(v VertexIndex, c CornerIndex) {
	if v < 0 {
		return
	}
	t.vertexCorners[v] = c
}

// AddNewVertex appends an isolated vertex and returns its index.
func (t *Table) AddNewVertex() VertexIndex {
	t.vertexCorners = append(t.vertexCorners, InvalidCorner)
	return VertexIndex(len(t.vertexCorners) - 1)
}

// MakeVertexIsolated detaches v from every corner.
func (t *Table) MakeVertexIsolated(v VertexIndex) {
	t.vertexCorners[v] = InvalidCorner
}

// IsVertexIsolated reports whether v has no corner.
func (t *Table) IsVertexIsolated(v VertexIndex) bool {
	return t.LeftMostCorner(v) == InvalidCorner
}

// ShrinkVertices drops vertices at or above n.
func (t *Table) ShrinkVertices(n int) {
	if n < len(t.vertexCorners) {
		t.vertexCorners = t.vertexCorners[:n]
	}
}

// IsDegenerate reports whether face f repeats a vertex.
func (t *Table) IsDegenerate(f FaceIndex) bool {
	if f < 0 {
		return true
	}
	v := t.FaceVertices(f)
	return v[0] == v[1] || v[0] == v[2] || v[1] == v[2]
}

// IsOnBoundary reports whether the fan of v is open, found by swinging
// left from its canonical corner until the boundary or the start.
func (t *Table) IsOnBoundary(v VertexIndex) bool {
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

// valence returns the number of edges incident to v, or -1 for isolated
// vertices. Boundary vertices count one more edge than faces.
func (t *Table) valence(v VertexIndex) int {
	first := t.LeftMostCorner(v)
	if first == InvalidCorner {
		return -1
	}
	faces := 1
	c := t.SwingLeft(first)
	for c != InvalidCorner && c != first {
		faces++
		c = t.SwingLeft(c)
	}
	if c == first {
		return faces
	}
	for c = t.SwingRight(first); c != InvalidCorner; c = t.SwingRight(c) {
		faces++
	}
	return faces + 1
}

// VertexCorners returns every corner of v, swinging left from the
// canonical corner and then right if the fan is open.
func (t *Table) VertexCorners(v VertexIndex) []CornerIndex {
	first := t.LeftMostCorner(v)
	if first == InvalidCorner {
		return nil
	}
	corners := []CornerIndex{first}
	c := t.SwingLeft(first)
	for c != InvalidCorner && c != first {
		corners = append(corners, c)
		c = t.SwingLeft(c)
	}
	if c == first {
		return corners
	}
	for c = t.SwingRight(first); c != InvalidCorner; c = t.SwingRight(c) {
		corners = append(corners, c)
	}
	return corners
}

// UpdateVertexToCornerMap moves the canonical corner of v to the left end
// of its fan.
func (t *Table) UpdateVertexToCornerMap(v VertexIndex) {
	first := t.LeftMostCorner(v)
	if first == InvalidCorner {
		return
	}
	c := first
	act := t.SwingLeft(first)
	for act != InvalidCorner && act != first {
		c = act
		act = t.SwingLeft(act)
	}
	if act != first {
		t.vertexCorners[v] = c
	}
}
