package corner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tetrahedron() [][3]VertexIndex {
	return [][3]VertexIndex{{0, 1, 2}, {0, 3, 1}, {1, 3, 2}, {0, 2, 3}}
}

func quad() [][3]VertexIndex {
	return [][3]VertexIndex{{0, 1, 2}, {0, 2, 3}}
}

// requireSymmetric checks that every opposite link points back and that
// linked corners sit on the same edge in reverse order.
func requireSymmetric(t *testing.T, tab *Table) {
	t.Helper()
	for c := CornerIndex(0); int(c) < tab.NumCorners(); c++ {
		opp := tab.Opposite(c)
		if opp == InvalidCorner {
			continue
		}
		require.Equal(t, c, tab.Opposite(opp), "corner %d", c)
		assert.Equal(t, tab.Vertex(Next(c)), tab.Vertex(Previous(opp)))
		assert.Equal(t, tab.Vertex(Previous(c)), tab.Vertex(Next(opp)))
	}
}

func TestCornerNavigation(t *testing.T) {
	assert.Equal(t, CornerIndex(1), Next(0))
	assert.Equal(t, CornerIndex(3), Next(5))
	assert.Equal(t, CornerIndex(5), Previous(3))
	assert.Equal(t, CornerIndex(4), Previous(5))
	assert.Equal(t, InvalidCorner, Next(InvalidCorner))
	assert.Equal(t, InvalidCorner, Previous(InvalidCorner))
	assert.Equal(t, FaceIndex(2), Face(7))
	assert.Equal(t, InvalidFace, Face(InvalidCorner))
	assert.Equal(t, CornerIndex(9), FirstCorner(3))
}

func TestTetrahedron(t *testing.T) {
	tab := NewFromFaces(tetrahedron())
	require.Equal(t, 4, tab.NumFaces())
	require.Equal(t, 4, tab.NumVertices())
	requireSymmetric(t, tab)

	for c := CornerIndex(0); int(c) < tab.NumCorners(); c++ {
		require.NotEqual(t, InvalidCorner, tab.Opposite(c))
		assert.Equal(t, c, tab.SwingRight(tab.SwingLeft(c)))
	}
	for v := VertexIndex(0); v < 4; v++ {
		assert.False(t, tab.IsOnBoundary(v))
		assert.Equal(t, 3, tab.valence(v))
		assert.Len(t, tab.VertexCorners(v), 3)
	}
	assert.Zero(t, tab.NumIsolatedVertices())
	assert.Zero(t, tab.NumDegenerateFaces())
}

func TestQuadBoundary(t *testing.T) {
	tab := NewFromFaces(quad())
	requireSymmetric(t, tab)
	assert.Equal(t, CornerIndex(5), tab.Opposite(1))
	assert.Equal(t, CornerIndex(1), tab.Opposite(5))

	want := map[VertexIndex]int{0: 3, 1: 2, 2: 3, 3: 2}
	for v, valence := range want {
		assert.True(t, tab.IsOnBoundary(v))
		assert.Equal(t, valence, tab.valence(v), "vertex %d", v)
		c := tab.LeftMostCorner(v)
		require.NotEqual(t, InvalidCorner, c)
		assert.Equal(t, InvalidCorner, tab.SwingLeft(c), "left-most corner of %d", v)
	}
}

func TestNonManifoldVertexSplit(t *testing.T) {
	// Two triangles touching in vertex 0 only.
	tab := NewFromFaces([][3]VertexIndex{{0, 1, 2}, {0, 3, 4}})
	require.Equal(t, 6, tab.NumVertices())
	assert.Equal(t, 5, tab.NumOriginalVertices())
	assert.Equal(t, VertexIndex(0), tab.nonManifoldParent(5))
	assert.Equal(t, InvalidVertex, tab.nonManifoldParent(1))
	assert.NotEqual(t, tab.Vertex(0), tab.Vertex(3))
}

func TestNonManifoldEdge(t *testing.T) {
	// Three faces share the edge 0-1.
	tab := NewFromFaces([][3]VertexIndex{{0, 1, 2}, {1, 0, 3}, {1, 0, 4}})
	requireSymmetric(t, tab)
	linked := 0
	for c := CornerIndex(0); int(c) < tab.NumCorners(); c++ {
		if tab.Opposite(c) != InvalidCorner {
			linked++
		}
	}
	assert.LessOrEqual(t, linked, 2)
}

func TestDegenerateAndIsolated(t *testing.T) {
	tab := NewFromFaces([][3]VertexIndex{{0, 1, 2}, {2, 2, 3}, {0, 2, 5}})
	assert.Equal(t, 1, tab.NumDegenerateFaces())
	assert.True(t, tab.IsDegenerate(1))
	// Vertex 3 only sits on the degenerate face and 4 is never used.
	assert.Equal(t, 2, tab.NumIsolatedVertices())
	assert.True(t, tab.IsVertexIsolated(4))
	requireSymmetric(t, tab)
}

func TestMutators(t *testing.T) {
	tab := New(1)
	for i := 0; i < 3; i++ {
		v := tab.AddNewVertex()
		tab.MapCornerToVertex(CornerIndex(i), v)
		tab.SetLeftMostCorner(v, CornerIndex(i))
	}
	assert.Equal(t, 3, tab.NumVertices())
	assert.Equal(t, [3]VertexIndex{0, 1, 2}, tab.FaceVertices(0))
	assert.Equal(t, 2, tab.valence(1))

	tab.MakeVertexIsolated(2)
	assert.True(t, tab.IsVertexIsolated(2))
	assert.Equal(t, -1, tab.valence(2))
	tab.ShrinkVertices(2)
	assert.Equal(t, 2, tab.NumVertices())
}

func TestUpdateVertexToCornerMap(t *testing.T) {
	tab := NewFromFaces(quad())
	// Point vertex 0 at a corner that is not left-most and restore it.
	want := tab.LeftMostCorner(0)
	other := tab.SwingRight(want)
	require.NotEqual(t, InvalidCorner, other)
	tab.SetLeftMostCorner(0, other)
	tab.UpdateVertexToCornerMap(0)
	assert.Equal(t, want, tab.LeftMostCorner(0))
}

func TestAttributeTableSeams(t *testing.T) {
	tab := NewFromFaces(quad())

	shared := []int{0, 1, 2, 0, 2, 3}
	att := NewAttributeTableFromValues(tab, func(c CornerIndex) int { return shared[c] })
	assert.True(t, att.NoInteriorSeams())
	assert.Equal(t, 4, att.NumVertices())
	assert.Equal(t, CornerIndex(5), att.Opposite(1))

	split := []int{0, 1, 2, 3, 4, 5}
	att = NewAttributeTableFromValues(tab, func(c CornerIndex) int { return split[c] })
	assert.False(t, att.NoInteriorSeams())
	assert.Equal(t, 6, att.NumVertices())
	assert.Equal(t, InvalidCorner, att.Opposite(1))
	assert.True(t, att.IsCornerOppositeToSeamEdge(5))
	assert.True(t, att.isCornerOnSeam(0))
	for c := CornerIndex(0); c < 6; c++ {
		assert.Equal(t, split[c], att.ValueIndex(att.Vertex(c)))
		assert.True(t, att.IsOnBoundary(att.Vertex(c)))
	}
}

func TestAttributeTableAddSeamEdge(t *testing.T) {
	tab := NewFromFaces(tetrahedron())
	att := NewAttributeTable(tab)
	att.RecomputeVertices(nil)
	assert.Equal(t, 4, att.NumVertices())

	// Cut the tetrahedron open along two edges meeting at one vertex.
	att.AddSeamEdge(0)
	att.AddSeamEdge(1)
	att.RecomputeVertices(nil)
	assert.False(t, att.NoInteriorSeams())
	assert.Greater(t, att.NumVertices(), 4)
	for v := VertexIndex(0); int(v) < att.NumVertices(); v++ {
		assert.Equal(t, int(v), att.ValueIndex(v))
		assert.NotEqual(t, InvalidCorner, att.LeftMostCorner(v))
	}
	for c := CornerIndex(0); int(c) < att.NumCorners(); c++ {
		assert.NotEqual(t, InvalidVertex, att.Vertex(c))
	}
}
