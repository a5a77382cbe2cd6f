package attributes

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ungerik/go3d/float64/vec3"

	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/corner"
	"github.com/deepteams/draco/internal/entropy"
)

func gridTable(n, m int) *corner.Table {
	id := func(i, j int) corner.VertexIndex { return corner.VertexIndex(i*(m+1) + j) }
	var faces [][3]corner.VertexIndex
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a, b, c, d := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			faces = append(faces, [3]corner.VertexIndex{a, b, c}, [3]corner.VertexIndex{a, c, d})
		}
	}
	return corner.NewFromFaces(faces)
}

func faceStarts(t *corner.Table) []corner.CornerIndex {
	starts := make([]corner.CornerIndex, t.NumFaces())
	for f := range starts {
		starts[f] = corner.FirstCorner(corner.FaceIndex(f))
	}
	return starts
}

// gridPositions returns the positions of the grid vertices in sequence
// order, slightly bent so that no component is constant.
func gridPositions(seq *Sequence, m int) []float32 {
	out := make([]float32, 0, 3*seq.Len())
	for _, v := range seq.Vertices {
		i, j := int(v)/(m+1), int(v)%(m+1)
		x, y := float64(j)*0.5, float64(i)*0.5
		out = append(out, float32(x), float32(y), float32(0.01*x*y))
	}
	return out
}

func TestQuantizationRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	values := make([]float32, 300)
	for i := range values {
		values[i] = rng.Float32()*20 - 10
	}
	for _, bits := range []int{4, 11, 16, 30} {
		q, err := ComputeQuantization(values, 3, bits)
		require.NoError(t, err)
		ints := make([]int32, len(values))
		q.Quantize(values, ints)
		back := make([]float32, len(values))
		q.Dequantize(ints, back)
		tol := float64(q.Range)/float64(int64(1)<<bits-1)/2 + 1e-5
		for i := range values {
			require.GreaterOrEqual(t, ints[i], int32(0))
			require.LessOrEqual(t, ints[i], q.maxQuantized())
			assert.InDelta(t, values[i], back[i], tol, "bits %d value %d", bits, i)
		}
	}
}

func TestQuantizationConstantValues(t *testing.T) {
	q, err := ComputeQuantization([]float32{2, 2, 2, 2}, 2, 8)
	require.NoError(t, err)
	assert.Equal(t, float32(1), q.Range)
	ints := make([]int32, 4)
	q.Quantize([]float32{2, 2, 2, 2}, ints)
	assert.Equal(t, []int32{0, 0, 0, 0}, ints)
}

func TestComputeQuantizationRejects(t *testing.T) {
	_, err := ComputeQuantization([]float32{1, 2, 3}, 3, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ComputeQuantization([]float32{1, 2, 3}, 3, 31)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ComputeQuantization([]float32{1, 2}, 3, 8)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ComputeQuantization([]float32{float32(math.NaN()), 2, 3}, 3, 8)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOctahedronRoundTrip(t *testing.T) {
	o, err := NewOctahedron(10)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(5))
	check := func(v vec3.T) {
		n := v.Scaled(1 / math.Sqrt(v.LengthSqr()))
		s, tt := o.Encode(v)
		require.GreaterOrEqual(t, s, int32(0))
		require.LessOrEqual(t, s, o.MaxValue())
		require.GreaterOrEqual(t, tt, int32(0))
		require.LessOrEqual(t, tt, o.MaxValue())
		got := o.Decode(s, tt)
		assert.InDelta(t, 1.0, got.LengthSqr(), 1e-9)
		assert.Greater(t, vec3.Dot(&n, &got), 0.999, "vector %v decoded as %v", v, got)
	}
	for _, v := range []vec3.T{
		{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
		{1, 1, 1}, {-1, -1, -1}, {-1, 1, -1}, {-3, 0.5, 2},
	} {
		check(v)
	}
	for range 1000 {
		check(vec3.T{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
	}
}

func TestOctahedronZeroVector(t *testing.T) {
	o, err := NewOctahedron(8)
	require.NoError(t, err)
	got := o.Decode(o.Encode(vec3.T{}))
	assert.InDelta(t, 1.0, got[0], 1e-6)
}

func TestOctahedronCanonicalize(t *testing.T) {
	o, err := NewOctahedron(6)
	require.NoError(t, err)
	m := o.MaxValue()
	for _, st := range [][2]int32{{0, 0}, {0, m}, {m, 0}, {m, m}} {
		s, tt := o.Canonicalize(st[0], st[1])
		assert.Equal(t, [2]int32{m, m}, [2]int32{s, tt})
	}
	// Every border coordinate decodes to the same direction as its
	// canonical form.
	for k := int32(0); k <= m; k++ {
		for _, st := range [][2]int32{{0, k}, {m, k}, {k, 0}, {k, m}} {
			s, tt := o.Canonicalize(st[0], st[1])
			want, got := o.Decode(st[0], st[1]), o.Decode(s, tt)
			assert.InDelta(t, 1.0, vec3.Dot(&want, &got), 1e-9, "border point %v folded to %d,%d", st, s, tt)
		}
	}
	_, err = NewOctahedron(1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWrapTransformInverts(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	data := make([]int32, 200)
	for i := range data {
		data[i] = rng.Int31n(1000) - 300
	}
	w, err := newWrapTransform(data, 2)
	require.NoError(t, err)
	for range 500 {
		orig := []int32{rng.Int31n(1000) - 300, rng.Int31n(1000) - 300}
		orig[0] = min(max(orig[0], w.min), w.max)
		orig[1] = min(max(orig[1], w.min), w.max)
		pred := []int32{rng.Int31n(4000) - 2000, rng.Int31n(4000) - 2000}
		corr := make([]int32, 2)
		w.correction(orig, pred, corr)
		for _, c := range corr {
			assert.GreaterOrEqual(t, int64(c), w.minCorr)
			assert.LessOrEqual(t, int64(c), w.maxCorr)
		}
		back := make([]int32, 2)
		w.original(pred, corr, back)
		assert.Equal(t, orig, back)
	}
}

func TestWrapTransformRejectsHugeRange(t *testing.T) {
	_, err := newWrapTransform([]int32{math.MinInt32, math.MaxInt32}, 1)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSequenceVisitsEveryVertexOnce(t *testing.T) {
	table := gridTable(6, 9)
	seq := NewSequence(table, faceStarts(table))
	require.Equal(t, table.NumVertices(), seq.Len())
	seen := map[corner.VertexIndex]bool{}
	for i, v := range seq.Vertices {
		assert.False(t, seen[v], "vertex %d visited twice", v)
		seen[v] = true
		assert.Equal(t, i, seq.EntryOf(v))
		assert.Equal(t, v, table.Vertex(seq.Corners[i]))
	}
	assert.Equal(t, -1, seq.EntryOf(corner.InvalidVertex))
}

func TestSequenceIsDeterministic(t *testing.T) {
	table := gridTable(5, 5)
	a := NewSequence(table, []corner.CornerIndex{0})
	b := NewSequence(table, []corner.CornerIndex{0})
	assert.Equal(t, a.Vertices, b.Vertices)
	assert.Equal(t, a.Corners, b.Corners)
}

func TestSequenceFollowsSeams(t *testing.T) {
	const n, m, k = 4, 6, 3
	table := gridTable(n, m)
	attr := corner.NewAttributeTableFromValues(table, func(c corner.CornerIndex) int {
		v := int(table.Vertex(c))
		col := v % (m + 1)
		cellCol := int(corner.Face(c)) / 2 % m
		if col == k && cellCol >= k {
			return v + 1000
		}
		return v
	})
	seq := NewSequence(attr, faceStarts(table))
	assert.Equal(t, attr.NumVertices(), seq.Len())
	assert.Equal(t, table.NumVertices()+n+1, seq.Len())
}

func encodeDecode(t *testing.T, values []float32, n int, seq *Sequence, cfg Config) (*Decoded, int) {
	t.Helper()
	buf := bitio.NewEncoderBuffer(0)
	require.NoError(t, Encode(values, n, seq, cfg, buf))
	src := bitio.NewDecoderBuffer(buf.Bytes())
	d, err := Decode(src, seq, false)
	require.NoError(t, err)
	assert.Zero(t, src.RemainingSize())
	return d, buf.Len()
}

func TestPositionsRoundTrip(t *testing.T) {
	const n, m = 12, 15
	table := gridTable(n, m)
	seq := NewSequence(table, faceStarts(table))
	values := gridPositions(seq, m)
	sizes := map[PredictionMethod]int{}
	for _, method := range []PredictionMethod{PredictionNone, PredictionDelta, PredictionParallelogram} {
		cfg := Config{Transform: TransformQuantization, Prediction: method, Bits: 14, Symbols: entropy.DefaultSymbolOptions()}
		d, size := encodeDecode(t, values, 3, seq, cfg)
		sizes[method] = size
		require.Len(t, d.Values, len(values))
		tol := float64(d.Quantization.Range)/float64(int64(1)<<14-1)/2 + 1e-5
		for i := range values {
			require.InDelta(t, values[i], d.Values[i], tol, "%s value %d", method, i)
		}
	}
	assert.Less(t, sizes[PredictionParallelogram], sizes[PredictionNone])
}

func TestNormalsRoundTrip(t *testing.T) {
	table := gridTable(8, 8)
	seq := NewSequence(table, faceStarts(table))
	rng := rand.New(rand.NewSource(12))
	values := make([]float32, 0, 3*seq.Len())
	for range seq.Len() {
		v := vec3.T{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64() + 3}
		v = v.Scaled(1 / math.Sqrt(v.LengthSqr()))
		values = append(values, float32(v[0]), float32(v[1]), float32(v[2]))
	}
	cfg := Config{Transform: TransformOctahedron, Prediction: PredictionDelta, Bits: 10, Symbols: entropy.DefaultSymbolOptions()}
	d, _ := encodeDecode(t, values, 3, seq, cfg)
	assert.Equal(t, 2, d.PortableComponents)
	assert.Equal(t, 10, d.OctahedronBits)
	for i := 0; i < len(values); i += 3 {
		dot := float64(values[i])*float64(d.Values[i]) + float64(values[i+1])*float64(d.Values[i+1]) + float64(values[i+2])*float64(d.Values[i+2])
		assert.Greater(t, dot, 0.999)
	}
}

func TestRawRoundTripIsExact(t *testing.T) {
	table := gridTable(3, 3)
	seq := NewSequence(table, faceStarts(table))
	values := make([]float32, 2*seq.Len())
	for i := range values {
		values[i] = float32(i)*0.37 - 1e-7
	}
	d, _ := encodeDecode(t, values, 2, seq, Config{Transform: TransformRaw, Prediction: PredictionParallelogram})
	assert.Equal(t, values, d.Values)
	assert.Nil(t, d.Portable)
}

func TestSkipTransformKeepsPortableValues(t *testing.T) {
	table := gridTable(4, 4)
	seq := NewSequence(table, faceStarts(table))
	values := gridPositions(seq, 4)
	cfg := Config{Transform: TransformQuantization, Prediction: PredictionParallelogram, Bits: 10, Symbols: entropy.DefaultSymbolOptions()}
	buf := bitio.NewEncoderBuffer(0)
	require.NoError(t, Encode(values, 3, seq, cfg, buf))

	d, err := Decode(bitio.NewDecoderBuffer(buf.Bytes()), seq, true)
	require.NoError(t, err)
	assert.Nil(t, d.Values)
	q, err := ComputeQuantization(values, 3, 10)
	require.NoError(t, err)
	want := make([]int32, len(values))
	q.Quantize(values, want)
	assert.Equal(t, want, d.Portable)
}

func TestEncodeRejectsBadInput(t *testing.T) {
	table := gridTable(2, 2)
	seq := NewSequence(table, faceStarts(table))
	buf := bitio.NewEncoderBuffer(0)
	err := Encode(make([]float32, 5), 3, seq, Config{Transform: TransformQuantization, Bits: 8}, buf)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = Encode(make([]float32, 2*seq.Len()), 2, seq, Config{Transform: TransformOctahedron, Bits: 8}, buf)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = Encode(make([]float32, 3*seq.Len()), 3, seq, Config{Transform: TransformQuantization, Bits: 40}, buf)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDecodeRejectsMismatchedSequence(t *testing.T) {
	table := gridTable(3, 3)
	seq := NewSequence(table, faceStarts(table))
	values := gridPositions(seq, 3)
	buf := bitio.NewEncoderBuffer(0)
	require.NoError(t, Encode(values, 3, seq, Config{Transform: TransformQuantization, Bits: 8, Symbols: entropy.DefaultSymbolOptions()}, buf))

	other := gridTable(2, 2)
	_, err := Decode(bitio.NewDecoderBuffer(buf.Bytes()), NewSequence(other, faceStarts(other)), false)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeCorruptedNeverPanics(t *testing.T) {
	table := gridTable(5, 5)
	seq := NewSequence(table, faceStarts(table))
	values := gridPositions(seq, 5)
	buf := bitio.NewEncoderBuffer(0)
	cfg := Config{Transform: TransformQuantization, Prediction: PredictionParallelogram, Bits: 11, Symbols: entropy.DefaultSymbolOptions()}
	require.NoError(t, Encode(values, 3, seq, cfg, buf))
	data := buf.Bytes()

	rng := rand.New(rand.NewSource(21))
	for range 300 {
		mutated := append([]byte(nil), data...)
		for range 1 + rng.Intn(4) {
			mutated[rng.Intn(len(mutated))] ^= byte(1 + rng.Intn(255))
		}
		if rng.Intn(3) == 0 {
			mutated = mutated[:rng.Intn(len(mutated))]
		}
		assert.NotPanics(t, func() {
			_, _ = Decode(bitio.NewDecoderBuffer(mutated), seq, false)
		})
	}
}
