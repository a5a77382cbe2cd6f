package attributes

import "github.com/deepteams/draco/internal/corner"

// Sequence is the order in which attribute entries are coded: every
// vertex of a connectivity is visited once by a depth-first walk over its
// faces, starting from a fixed list of corners. Encoder and decoder build
// identical sequences from corresponding connectivities.
type Sequence struct {
	// Vertices lists the visited vertices in order.
	Vertices []corner.VertexIndex
	// Corners holds the corner each vertex was reached through.
	Corners []corner.CornerIndex

	conn         corner.Connectivity
	vertexToItem []int32
}

// NewSequence walks conn from each of starts in turn. Faces unreachable
// from starts, and vertices that belong only to such faces, are skipped.
func NewSequence(conn corner.Connectivity, starts []corner.CornerIndex) *Sequence {
	s := &Sequence{
		conn:         conn,
		vertexToItem: make([]int32, conn.NumVertices()),
		Vertices:     make([]corner.VertexIndex, 0, conn.NumVertices()),
		Corners:      make([]corner.CornerIndex, 0, conn.NumVertices()),
	}
	for i := range s.vertexToItem {
		s.vertexToItem[i] = -1
	}
	t := depthFirst{conn: conn, seq: s, visitedFaces: make([]bool, conn.NumFaces())}
	for _, c := range starts {
		t.traverseFrom(c)
	}
	return s
}

// Len returns the number of visited vertices.
func (s *Sequence) Len() int { return len(s.Vertices) }

// EntryOf returns the position of v in the sequence or -1.
func (s *Sequence) EntryOf(v corner.VertexIndex) int {
	if v < 0 || int(v) >= len(s.vertexToItem) {
		return -1
	}
	return int(s.vertexToItem[v])
}

func (s *Sequence) visited(v corner.VertexIndex) bool { return s.vertexToItem[v] >= 0 }

func (s *Sequence) visit(v corner.VertexIndex, c corner.CornerIndex) {
	s.vertexToItem[v] = int32(len(s.Vertices))
	s.Vertices = append(s.Vertices, v)
	s.Corners = append(s.Corners, c)
}

type depthFirst struct {
	conn         corner.Connectivity
	seq          *Sequence
	visitedFaces []bool
	stack        []corner.CornerIndex
}

func (t *depthFirst) faceVisited(c corner.CornerIndex) bool {
	if c == corner.InvalidCorner {
		return true
	}
	return t.visitedFaces[corner.Face(c)]
}

func (t *depthFirst) visitVertex(c corner.CornerIndex) {
	if v := t.conn.Vertex(c); v >= 0 && !t.seq.visited(v) {
		t.seq.visit(v, c)
	}
}

func (t *depthFirst) traverseFrom(c corner.CornerIndex) {
	if c < 0 || int(c) >= t.conn.NumCorners() || t.faceVisited(c) {
		return
	}
	// The tip is handled by the main loop; the other two vertices of the
	// first face are visited here.
	t.visitVertex(corner.Next(c))
	t.visitVertex(corner.Previous(c))
	t.stack = append(t.stack[:0], c)
	for len(t.stack) > 0 {
		c = t.stack[len(t.stack)-1]
		if t.faceVisited(c) {
			t.stack = t.stack[:len(t.stack)-1]
			continue
		}
		for {
			t.visitedFaces[corner.Face(c)] = true
			v := t.conn.Vertex(c)
			if v < 0 {
				t.stack = t.stack[:len(t.stack)-1]
				break
			}
			if !t.seq.visited(v) {
				onBoundary := t.conn.IsOnBoundary(v)
				t.seq.visit(v, c)
				if !onBoundary {
					c = t.conn.Opposite(corner.Next(c))
					if t.faceVisited(c) {
						// Only reachable on a malformed table.
						t.stack = t.stack[:len(t.stack)-1]
						break
					}
					continue
				}
			}
			right := t.conn.Opposite(corner.Next(c))
			left := t.conn.Opposite(corner.Previous(c))
			rightVisited, leftVisited := t.faceVisited(right), t.faceVisited(left)
			switch {
			case rightVisited && leftVisited:
				t.stack = t.stack[:len(t.stack)-1]
			case rightVisited:
				c = left
				continue
			case leftVisited:
				c = right
				continue
			default:
				t.stack[len(t.stack)-1] = left
				t.stack = append(t.stack, right)
			}
			break
		}
	}
}
