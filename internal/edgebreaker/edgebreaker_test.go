package edgebreaker

import (
	"fmt"
	"math/rand"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/corner"
	"github.com/deepteams/draco/internal/entropy"
)

var methods = []TraversalMethod{TraversalStandard, TraversalPredictive, TraversalValence}

func tetrahedron() [][3]corner.VertexIndex {
	return [][3]corner.VertexIndex{{0, 1, 2}, {0, 3, 1}, {1, 3, 2}, {0, 2, 3}}
}

// grid returns an open n x m quad grid split into triangles.
func grid(n, m int) [][3]corner.VertexIndex {
	id := func(i, j int) corner.VertexIndex { return corner.VertexIndex(i*(m+1) + j) }
	var faces [][3]corner.VertexIndex
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a, b, c, d := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			faces = append(faces, [3]corner.VertexIndex{a, b, c}, [3]corner.VertexIndex{a, c, d})
		}
	}
	return faces
}

// torus returns a closed genus one n x m grid.
func torus(n, m int) [][3]corner.VertexIndex {
	id := func(i, j int) corner.VertexIndex { return corner.VertexIndex((i%n)*m + j%m) }
	var faces [][3]corner.VertexIndex
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a, b, c, d := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			faces = append(faces, [3]corner.VertexIndex{a, b, c}, [3]corner.VertexIndex{a, c, d})
		}
	}
	return faces
}

// gridWithHole removes the two faces of every interior cell in rows and
// columns [lo, hi).
func gridWithHole(n, lo, hi int) [][3]corner.VertexIndex {
	all := grid(n, n)
	var faces [][3]corner.VertexIndex
	for k, f := range all {
		cell := k / 2
		i, j := cell/n, cell%n
		if i >= lo && i < hi && j >= lo && j < hi {
			continue
		}
		faces = append(faces, f)
	}
	return faces
}

func dropFaces(faces [][3]corner.VertexIndex, keep float64, seed int64) [][3]corner.VertexIndex {
	rng := rand.New(rand.NewSource(seed))
	var out [][3]corner.VertexIndex
	for _, f := range faces {
		if rng.Float64() < keep {
			out = append(out, f)
		}
	}
	return out
}

func concat(meshes ...[][3]corner.VertexIndex) [][3]corner.VertexIndex {
	var out [][3]corner.VertexIndex
	base := corner.VertexIndex(0)
	for _, m := range meshes {
		next := base
		for _, f := range m {
			g := [3]corner.VertexIndex{f[0] + base, f[1] + base, f[2] + base}
			for _, v := range g {
				next = max(next, v+1)
			}
			out = append(out, g)
		}
		base = next
	}
	return out
}

type testMesh struct {
	name  string
	faces [][3]corner.VertexIndex
}

func testMeshes() []testMesh {
	return []testMesh{
		{"triangle", [][3]corner.VertexIndex{{0, 1, 2}}},
		{"tetrahedron", tetrahedron()},
		{"quad", grid(1, 1)},
		{"grid", grid(6, 5)},
		{"torus", torus(6, 5)},
		{"hole", gridWithHole(7, 2, 4)},
		{"two holes", concat(gridWithHole(6, 1, 2), gridWithHole(5, 2, 3))},
		{"components", concat(tetrahedron(), grid(2, 3), torus(4, 3))},
		{"bowtie", [][3]corner.VertexIndex{{0, 1, 2}, {0, 3, 4}}},
		{"sparse grid", dropFaces(grid(12, 12), 0.7, 1)},
		{"sparse torus", dropFaces(torus(10, 9), 0.85, 2)},
	}
}

func encode(t *testing.T, tab *corner.Table, attrs []*corner.AttributeTable, method TraversalMethod) (*Result, []byte) {
	t.Helper()
	buf := bitio.NewEncoderBuffer(0)
	res, err := Encode(tab, attrs, EncodeOptions{Method: method, Symbols: entropy.DefaultSymbolOptions()}, buf)
	require.NoError(t, err)
	return res, buf.Bytes()
}

// requireEquivalent checks that the decoded table matches the encoder's
// table under the face order correspondence of Result.Corners.
func requireEquivalent(t *testing.T, enc, dec *Result) {
	t.Helper()
	require.Equal(t, len(enc.Corners), len(dec.Corners))
	require.Equal(t, enc.NumVertices, dec.NumVertices)
	require.Equal(t, dec.NumVertices, dec.Table.NumVertices())

	encToDec := make(map[corner.CornerIndex]corner.CornerIndex)
	for i, ec := range enc.Corners {
		dc := dec.Corners[i]
		encToDec[ec] = dc
		encToDec[corner.Next(ec)] = corner.Next(dc)
		encToDec[corner.Previous(ec)] = corner.Previous(dc)
	}

	vertexMap := make(map[corner.VertexIndex]corner.VertexIndex)
	for ec, dc := range encToDec {
		eo, do := enc.Table.Opposite(ec), dec.Table.Opposite(dc)
		if eo == corner.InvalidCorner {
			require.Equal(t, corner.InvalidCorner, do, "corner %d", dc)
		} else {
			require.Equal(t, encToDec[eo], do, "corner %d", dc)
		}
		ev, dv := enc.Table.Vertex(ec), dec.Table.Vertex(dc)
		if prev, ok := vertexMap[ev]; ok {
			require.Equal(t, prev, dv, "vertex of corner %d", dc)
		} else {
			vertexMap[ev] = dv
		}
	}
	seen := make(map[corner.VertexIndex]bool)
	for _, dv := range vertexMap {
		require.False(t, seen[dv], "decoded vertex %d used twice", dv)
		seen[dv] = true
	}
	require.Len(t, seen, dec.NumVertices)
}

func TestRoundTrip(t *testing.T) {
	for _, m := range testMeshes() {
		for _, method := range methods {
			t.Run(fmt.Sprintf("%s/%v", m.name, method), func(t *testing.T) {
				tab := corner.NewFromFaces(m.faces)
				enc, data := encode(t, tab, nil, method)
				dec, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
				require.NoError(t, err)
				assert.Equal(t, method, dec.Method)
				assert.Equal(t, enc.NumSymbols, dec.NumSymbols)
				assert.Equal(t, enc.NumSplitSymbols, dec.NumSplitSymbols)
				assert.Equal(t, enc.Holes, dec.Holes)
				requireEquivalent(t, enc, dec)
			})
		}
	}
}

func TestTetrahedronSymbols(t *testing.T) {
	tab := corner.NewFromFaces(tetrahedron())
	enc, data := encode(t, tab, nil, TraversalStandard)
	// The start face is implicit, the remaining three faces are symbols.
	assert.Equal(t, 3, enc.NumSymbols)
	assert.Zero(t, enc.NumSplitSymbols)
	assert.Empty(t, enc.Holes)

	dec, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, dec.Table.NumFaces())
	assert.Equal(t, 4, dec.NumVertices)
	for c := corner.CornerIndex(0); c < 12; c++ {
		assert.NotEqual(t, corner.InvalidCorner, dec.Table.Opposite(c))
	}
}

func TestTorusNeedsSplits(t *testing.T) {
	tab := corner.NewFromFaces(torus(6, 5))
	enc, _ := encode(t, tab, nil, TraversalStandard)
	assert.Positive(t, enc.NumSplitSymbols)
	assert.NotEmpty(t, enc.Splits)
	for i, ev := range enc.Splits {
		assert.Less(t, ev.SplitSymbolID, ev.SourceSymbolID)
		if i > 0 {
			assert.LessOrEqual(t, enc.Splits[i-1].SourceSymbolID, ev.SourceSymbolID)
		}
	}
}

func TestHoleEvents(t *testing.T) {
	tab := corner.NewFromFaces(gridWithHole(7, 2, 4))
	enc, _ := encode(t, tab, nil, TraversalStandard)
	// The outer boundary starts the traversal and a split symbol reaches
	// the inner hole.
	require.Len(t, enc.Holes, 2)
	assert.Zero(t, enc.Holes[0].SymbolID)
	assert.Positive(t, enc.Holes[1].SymbolID)
}

func TestHoleFlags(t *testing.T) {
	tests := []struct {
		name        string
		faces       [][3]corner.VertexIndex
		vertices    int
		onBoundary  int
		numHoleLoop int
	}{
		{"grid", grid(4, 4), 25, 16, 1},
		// The vertex in the middle of the removed cells is dropped.
		{"hole", gridWithHole(7, 2, 4), 63, 36, 2},
		{"torus", torus(6, 5), 30, 0, 0},
	}
	for _, tt := range tests {
		for _, method := range methods {
			t.Run(fmt.Sprintf("%s/%v", tt.name, method), func(t *testing.T) {
				_, data := encode(t, corner.NewFromFaces(tt.faces), nil, method)
				dec, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
				require.NoError(t, err)
				require.Equal(t, tt.vertices, dec.NumVertices)
				require.Len(t, dec.onHole, dec.NumVertices)
				assert.Len(t, dec.Holes, tt.numHoleLoop)

				flagged := 0
				for v, onHole := range dec.onHole {
					assert.Equal(t, dec.Table.IsOnBoundary(corner.VertexIndex(v)), onHole, "vertex %d", v)
					if onHole {
						flagged++
					}
				}
				assert.Equal(t, tt.onBoundary, flagged)
			})
		}
	}
}

// rewriteEvents re-encodes the split and hole events of an encoded stream
// after passing them through edit.
func rewriteEvents(t *testing.T, data []byte, edit func(Header, []TopologySplitEvent, []HoleEvent) ([]TopologySplitEvent, []HoleEvent)) []byte {
	t.Helper()
	src := bitio.NewDecoderBuffer(data)
	h, err := ReadHeader(src, 0)
	require.NoError(t, err)
	splits, err := decodeSplits(src, h.NumFaces, h.NumSymbols)
	require.NoError(t, err)
	holes, err := decodeHoles(src, h.NumSymbols)
	require.NoError(t, err)

	e := &encoder{}
	e.splits, e.holes = edit(h, splits, holes)
	dst := bitio.NewEncoderBuffer(0)
	dst.EncodeU8(uint8(h.Method))
	dst.EncodeVarint(uint64(h.NumVertices))
	dst.EncodeVarint(uint64(h.NumFaces))
	dst.EncodeU8(uint8(h.NumAttributes))
	dst.EncodeVarint(uint64(h.NumSymbols))
	dst.EncodeVarint(uint64(h.NumSplitSymbols))
	require.NoError(t, e.writeEvents(dst))
	dst.EncodeBytes(src.Remaining())
	return dst.Bytes()
}

func TestDecodeRejectsWrongHoleCount(t *testing.T) {
	_, data := encode(t, corner.NewFromFaces(gridWithHole(7, 2, 4)), nil, TraversalStandard)
	tests := []struct {
		name string
		edit func([]HoleEvent) []HoleEvent
		want error
	}{
		{"unchanged", func(h []HoleEvent) []HoleEvent { return h }, nil},
		{"dropped", func(h []HoleEvent) []HoleEvent { return h[:len(h)-1] }, ErrCorrupt},
		{"extra", func(h []HoleEvent) []HoleEvent { return append(h, h[len(h)-1]) }, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edited := rewriteEvents(t, data, func(_ Header, s []TopologySplitEvent, h []HoleEvent) ([]TopologySplitEvent, []HoleEvent) {
				return s, tt.edit(h)
			})
			_, err := Decode(bitio.NewDecoderBuffer(edited), DecodeOptions{})
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeConsumesSplitEvents(t *testing.T) {
	for _, method := range methods {
		t.Run(method.String(), func(t *testing.T) {
			enc, data := encode(t, corner.NewFromFaces(torus(6, 5)), nil, method)
			require.NotEmpty(t, enc.Splits)
			dec, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
			require.NoError(t, err)
			assert.Equal(t, enc.Splits, dec.Splits)
			requireEquivalent(t, enc, dec)
		})
	}
}

func TestDecodeRejectsUnusedSplitEvent(t *testing.T) {
	_, data := encode(t, corner.NewFromFaces(grid(4, 4)), nil, TraversalStandard)
	// The first decoded symbol is an E. The edge it hands to the second
	// symbol is never taken, since an S needs two active edges.
	stray := rewriteEvents(t, data, func(h Header, s []TopologySplitEvent, holes []HoleEvent) ([]TopologySplitEvent, []HoleEvent) {
		last := h.NumSymbols - 1
		return append(s, TopologySplitEvent{SourceSymbolID: last, SplitSymbolID: last - 1, SourceEdge: LeftFaceEdge}), holes
	})
	_, err := Decode(bitio.NewDecoderBuffer(stray), DecodeOptions{})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestEmptyMesh(t *testing.T) {
	for _, method := range methods {
		enc, data := encode(t, corner.NewFromFaces(nil), nil, method)
		assert.Zero(t, enc.NumSymbols)
		dec, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
		require.NoError(t, err)
		assert.Zero(t, dec.Table.NumFaces())
		assert.Zero(t, dec.NumVertices)
	}
}

func TestDegenerateFacesAreSkipped(t *testing.T) {
	faces := append(grid(2, 2), [3]corner.VertexIndex{0, 0, 1})
	tab := corner.NewFromFaces(faces)
	enc, data := encode(t, tab, nil, TraversalStandard)
	dec, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, dec.Table.NumFaces())
	requireEquivalent(t, enc, dec)
}

func TestAttributeSeamsRoundTrip(t *testing.T) {
	faces := grid(5, 4)
	tab := corner.NewFromFaces(faces)
	// One attribute shared across the mesh, one cut along every face, one
	// cut along a single column.
	shared := corner.NewAttributeTableFromValues(tab, func(c corner.CornerIndex) int { return int(tab.Vertex(c)) })
	perFace := corner.NewAttributeTableFromValues(tab, func(c corner.CornerIndex) int { return int(c) })
	column := corner.NewAttributeTableFromValues(tab, func(c corner.CornerIndex) int {
		v := int(tab.Vertex(c))
		if (int(c)/6)%4 >= 2 {
			return v + 1000
		}
		return v
	})
	attrs := []*corner.AttributeTable{shared, perFace, column}

	for _, method := range methods {
		t.Run(method.String(), func(t *testing.T) {
			enc, data := encode(t, tab, attrs, method)
			dec, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
			require.NoError(t, err)
			requireEquivalent(t, enc, dec)
			require.Len(t, dec.Attributes, len(attrs))

			for i, ea := range attrs {
				da := dec.Attributes[i]
				assert.Equal(t, ea.NumVertices(), da.NumVertices(), "attribute %d", i)
				for k, ec := range enc.Corners {
					dc := dec.Corners[k]
					for r := 0; r < 3; r++ {
						assert.Equal(t, ea.IsCornerOppositeToSeamEdge(ec), da.IsCornerOppositeToSeamEdge(dc))
						ec, dc = corner.Next(ec), corner.Next(dc)
					}
				}
			}
		})
	}
}

func TestValenceTraversalCompressesGrid(t *testing.T) {
	tab := corner.NewFromFaces(grid(40, 40))
	sizes := map[TraversalMethod]int{}
	for _, method := range methods {
		_, data := encode(t, tab, nil, method)
		sizes[method] = len(data)
	}
	// Valence contexts compress a regular grid better than raw bit patterns.
	assert.Less(t, sizes[TraversalValence], sizes[TraversalStandard])
}

func TestDecodeRejectsUnknownMethod(t *testing.T) {
	_, data := encode(t, corner.NewFromFaces(tetrahedron()), nil, TraversalStandard)
	data[0] = 9
	_, err := Decode(bitio.NewDecoderBuffer(data), DecodeOptions{})
	require.ErrorIs(t, err, ErrUnsupportedTraversal)

	_, err = Encode(corner.NewFromFaces(nil), nil, EncodeOptions{Method: 7}, bitio.NewEncoderBuffer(0))
	require.ErrorIs(t, err, ErrUnsupportedTraversal)
}

func TestDecodeRejectsBadCounts(t *testing.T) {
	header := func(vertices, faces, symbols, splits uint64) []byte {
		buf := bitio.NewEncoderBuffer(0)
		buf.EncodeU8(uint8(TraversalStandard))
		buf.EncodeVarint(vertices)
		buf.EncodeVarint(faces)
		buf.EncodeU8(0)
		buf.EncodeVarint(symbols)
		buf.EncodeVarint(splits)
		buf.EncodeVarint(0)
		buf.EncodeVarint(0)
		return buf.Bytes()
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"fewer faces than symbols", header(3, 1, 2, 0), ErrCorrupt},
		{"too many faces per symbol", header(4, 10, 3, 0), ErrCorrupt},
		{"too many split symbols", header(3, 2, 2, 3), ErrCorrupt},
		{"too many vertices", header(100, 1, 1, 0), ErrCorrupt},
		{"face limit", header(3, 1<<20, 1<<20, 0), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bitio.NewDecoderBuffer(tt.data), DecodeOptions{MaxFaces: 1 << 16})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeRejectsCountsBeyondPayload(t *testing.T) {
	const huge = 1<<26 - 1
	stream := func(method TraversalMethod, splitEvents, holeEvents uint64, payload func(*bitio.EncoderBuffer)) []byte {
		buf := bitio.NewEncoderBuffer(0)
		buf.EncodeU8(uint8(method))
		buf.EncodeVarint(3)
		buf.EncodeVarint(huge)
		buf.EncodeU8(0)
		buf.EncodeVarint(huge)
		buf.EncodeVarint(0)
		buf.EncodeVarint(splitEvents)
		if splitEvents == 0 {
			buf.EncodeVarint(holeEvents)
		}
		if payload != nil {
			payload(buf)
		}
		return buf.Bytes()
	}
	// emptyBits writes a bit coder payload holding no bits.
	emptyBits := func(buf *bitio.EncoderBuffer) {
		buf.EncodeU8(128)
		buf.EncodeVarint(1)
		buf.EncodeU8(0)
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"no symbol block", stream(TraversalStandard, 0, 0, nil), nil},
		{"one byte symbol block", stream(TraversalStandard, 0, 0, func(buf *bitio.EncoderBuffer) {
			buf.EncodeVarint(1)
			buf.EncodeU8(0xff)
			emptyBits(buf)
		}), ErrCorrupt},
		{"predictive", stream(TraversalPredictive, 0, 0, func(buf *bitio.EncoderBuffer) {
			buf.EncodeVarint(1)
			buf.EncodeU8(0xff)
			emptyBits(buf)
			buf.EncodeI32(0)
			emptyBits(buf)
		}), ErrCorrupt},
		{"valence context", stream(TraversalValence, 0, 0, func(buf *bitio.EncoderBuffer) {
			emptyBits(buf)
			buf.EncodeU8(minValence)
			buf.EncodeU8(maxValence)
			buf.EncodeVarint(huge)
		}), ErrCorrupt},
		{"split events", stream(TraversalStandard, 1<<20, 0, nil), ErrCorrupt},
		{"hole events", stream(TraversalStandard, 0, 1<<20, nil), ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := Decode(bitio.NewDecoderBuffer(tt.data), DecodeOptions{})
			runtime.ReadMemStats(&after)
			if tt.want == nil {
				require.Error(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), "bytes allocated")
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, method := range methods {
		_, data := encode(t, corner.NewFromFaces(torus(5, 4)), nil, method)
		for cut := 0; cut < len(data); cut++ {
			_, err := Decode(bitio.NewDecoderBuffer(data[:cut]), DecodeOptions{})
			require.Error(t, err, "%v cut at %d of %d", method, cut, len(data))
		}
	}
}

func TestDecodeCorruptedNeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, method := range methods {
		_, data := encode(t, corner.NewFromFaces(dropFaces(torus(8, 7), 0.9, 3)), nil, method)
		for i := 0; i < 300; i++ {
			mutated := append([]byte(nil), data...)
			for k := 0; k < 1+rng.Intn(3); k++ {
				mutated[rng.Intn(len(mutated))] ^= byte(1 + rng.Intn(255))
			}
			assert.NotPanics(t, func() {
				_, _ = Decode(bitio.NewDecoderBuffer(mutated), DecodeOptions{MaxFaces: 1 << 16})
			})
		}
	}
}
