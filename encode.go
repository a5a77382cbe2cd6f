package draco

import (
	"fmt"
	"io"

	"github.com/deepteams/draco/internal/attributes"
	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/container"
	"github.com/deepteams/draco/internal/corner"
	"github.com/deepteams/draco/internal/edgebreaker"
	"github.com/deepteams/draco/internal/entropy"
	"github.com/deepteams/draco/internal/mesh"
	"github.com/deepteams/draco/internal/pool"
)

// SymbolScheme selects how integer symbol streams are entropy coded.
type SymbolScheme int

const (
	// SchemeAuto estimates the cost of both schemes and keeps the cheaper.
	SchemeAuto SymbolScheme = iota
	// SchemeTagged codes a bit length per value group and stores the
	// values at that width.
	SchemeTagged
	// SchemeRaw codes values with one large-alphabet rANS table. Streams
	// whose values need more than 18 bits fall back to SchemeTagged.
	SchemeRaw
)

// Default quantization precision per attribute type, in bits.
const (
	DefaultPositionBits = 11
	DefaultNormalBits   = 8
	DefaultTexCoordBits = 10
	DefaultColorBits    = 8
	DefaultGenericBits  = 8
)

// EncoderOptions controls mesh encoding.
type EncoderOptions struct {
	// Speed trades compression for encoding speed (0-10, default 5).
	//   0-4  = valence-context traversal, best connectivity compression
	//   5-6  = predictive traversal
	//   7-10 = plain traversal, fastest
	// Speed 10 also replaces parallelogram prediction of positions with
	// delta prediction.
	Speed int

	// PositionBits is the quantization precision of positions (1-30).
	// Zero selects DefaultPositionBits. A negative value stores the
	// original float32 values without quantization.
	PositionBits int

	// NormalBits is the precision of each octahedral normal coordinate
	// (2-30). Zero and negative values behave as for PositionBits.
	NormalBits int

	// TexCoordBits, ColorBits and GenericBits set the quantization
	// precision of the remaining attribute types (1-30). Zero and negative
	// values behave as for PositionBits.
	TexCoordBits int
	ColorBits    int
	GenericBits  int

	// SymbolScheme forces the coding scheme of attribute residuals and
	// valence-context symbols.
	SymbolScheme SymbolScheme

	// Deduplicate merges bit-identical attribute values and the points
	// that share all of them before encoding. The input mesh is not
	// modified.
	Deduplicate bool
}

// DefaultOptions returns encoding options with speed 5, default
// quantization for every attribute type, and deduplication enabled.
func DefaultOptions() *EncoderOptions {
	return &EncoderOptions{
		Speed:       5,
		Deduplicate: true,
	}
}

// validateConfig checks option ranges. Zero and negative bit counts are
// valid sentinels, so only the upper bound of each is checked.
func validateConfig(opts *EncoderOptions) error {
	if opts.Speed < 0 || opts.Speed > 10 {
		return fmt.Errorf("%w: Speed %d (must be 0-10)", ErrInvalidOptions, opts.Speed)
	}
	for _, f := range []struct {
		name string
		bits int
		max  int
	}{
		{"PositionBits", opts.PositionBits, attributes.MaxQuantizationBits},
		{"NormalBits", opts.NormalBits, attributes.MaxOctahedronBits},
		{"TexCoordBits", opts.TexCoordBits, attributes.MaxQuantizationBits},
		{"ColorBits", opts.ColorBits, attributes.MaxQuantizationBits},
		{"GenericBits", opts.GenericBits, attributes.MaxQuantizationBits},
	} {
		if f.bits > f.max {
			return fmt.Errorf("%w: %s %d (must be at most %d)", ErrInvalidOptions, f.name, f.bits, f.max)
		}
	}
	if opts.NormalBits == 1 {
		return fmt.Errorf("%w: NormalBits 1 (must be at least %d)", ErrInvalidOptions, attributes.MinOctahedronBits)
	}
	if opts.SymbolScheme < SchemeAuto || opts.SymbolScheme > SchemeRaw {
		return fmt.Errorf("%w: SymbolScheme %d", ErrInvalidOptions, opts.SymbolScheme)
	}
	return nil
}

// resolveBits returns the effective precision for a bits option: zero
// maps to def and negative values to 0, meaning no quantization.
func resolveBits(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	}
	return v
}

// resolveTraversal maps Speed to a connectivity traversal.
func resolveTraversal(speed int) edgebreaker.TraversalMethod {
	switch {
	case speed <= 4:
		return edgebreaker.TraversalValence
	case speed <= 6:
		return edgebreaker.TraversalPredictive
	}
	return edgebreaker.TraversalStandard
}

func resolveSymbolOptions(opts *EncoderOptions) entropy.SymbolOptions {
	so := entropy.SymbolOptions{CompressionLevel: 10 - opts.Speed}
	switch opts.SymbolScheme {
	case SchemeTagged:
		so.Scheme = entropy.SchemeTagged
	case SchemeRaw:
		so.Scheme = entropy.SchemeRaw
	default:
		so.Scheme = entropy.SchemeAuto
	}
	return so
}

// attributeConfig picks the transform and prediction of a.
func attributeConfig(a *Attribute, opts *EncoderOptions) attributes.Config {
	cfg := attributes.Config{
		Transform:  attributes.TransformQuantization,
		Prediction: attributes.PredictionDelta,
		Symbols:    resolveSymbolOptions(opts),
	}
	switch a.Type {
	case Position:
		cfg.Bits = resolveBits(opts.PositionBits, DefaultPositionBits)
		if opts.Speed < 10 {
			cfg.Prediction = attributes.PredictionParallelogram
		}
	case Normal:
		cfg.Bits = resolveBits(opts.NormalBits, DefaultNormalBits)
		if a.NumComponents == 3 {
			cfg.Transform = attributes.TransformOctahedron
		}
	case TexCoord:
		cfg.Bits = resolveBits(opts.TexCoordBits, DefaultTexCoordBits)
	case Color:
		cfg.Bits = resolveBits(opts.ColorBits, DefaultColorBits)
	default:
		cfg.Bits = resolveBits(opts.GenericBits, DefaultGenericBits)
	}
	if cfg.Bits == 0 {
		cfg.Transform = attributes.TransformRaw
		cfg.Prediction = attributes.PredictionNone
	}
	return cfg
}

// Encode writes m to w. A nil opts uses DefaultOptions.
//
// Connectivity is coded with Edgebreaker over the position values, so
// points that share a position are joined into one vertex unless another
// attribute tells them apart. Points not referenced by any face, and
// degenerate faces, are not encoded.
func Encode(w io.Writer, m *Mesh, opts *EncoderOptions) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validateConfig(opts); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: nil mesh", ErrInvalidMesh)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("draco: %w", err)
	}
	if len(m.Attributes) > 255 {
		return fmt.Errorf("%w: %d attributes", ErrInvalidMesh, len(m.Attributes))
	}

	buf := bitio.NewEncoderBufferFrom(pool.Get(estimateSize(m)))
	defer func() { pool.Put(buf.Bytes()) }()
	if err := encodeMesh(buf, m, opts); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("draco: writing data: %w", err)
	}
	return nil
}

func estimateSize(m *Mesh) int {
	n := 64 + 2*len(m.Faces)
	for _, a := range m.Attributes {
		n += 2 * len(a.Values)
	}
	return n
}

// cloneForDedup returns a copy of m whose attributes and faces may be
// rewritten without touching m.
func cloneForDedup(m *Mesh) *Mesh {
	c := &Mesh{
		Faces:     append([]Face(nil), m.Faces...),
		NumPoints: m.NumPoints,
		Metadata:  m.Metadata,
	}
	for _, a := range m.Attributes {
		ca := *a
		ca.PointToValue = append([]uint32(nil), a.PointToValue...)
		c.Attributes = append(c.Attributes, &ca)
	}
	return c
}

func encodeMesh(dst *bitio.EncoderBuffer, m *Mesh, opts *EncoderOptions) error {
	if opts.Deduplicate {
		m = cloneForDedup(m)
		for _, a := range m.Attributes {
			a.DeduplicateValues(m.NumPoints)
		}
		removed := m.DeduplicatePoints()
		slogger().Debug("draco: deduplicated points", "removed", removed, "points", m.NumPoints)
	}

	container.WriteHeader(dst, container.NewHeader(len(m.Metadata) > 0))
	if len(m.Metadata) > 0 {
		if err := container.WriteMetadata(dst, m.Metadata); err != nil {
			return fmt.Errorf("draco: %w", err)
		}
	}

	posID := m.NamedAttributeID(Position)
	pos := m.Attributes[posID]
	faces := make([][3]corner.VertexIndex, len(m.Faces))
	for i, f := range m.Faces {
		for k, p := range f {
			faces[i][k] = corner.VertexIndex(pos.ValueIndex(p))
		}
	}
	table := corner.NewFromFaces(faces)
	pointOf := func(c corner.CornerIndex) mesh.PointIndex { return m.Faces[c/3][c%3] }

	// Attributes whose values change across interior edges get their own
	// seam table; the others follow the position connectivity.
	var seamTables []*corner.AttributeTable
	conns := make([]int, len(m.Attributes))
	for i, a := range m.Attributes {
		conns[i] = -1
		if i == posID {
			continue
		}
		at := corner.NewAttributeTableFromValues(table, func(c corner.CornerIndex) int {
			return int(a.ValueIndex(pointOf(c)))
		})
		if !at.NoInteriorSeams() {
			conns[i] = len(seamTables)
			seamTables = append(seamTables, at)
		}
	}

	dst.EncodeU8(uint8(len(m.Attributes)))
	for i, a := range m.Attributes {
		dst.EncodeU8(uint8(a.Type))
		dst.EncodeU8(uint8(conns[i] + 1))
	}

	res, err := edgebreaker.Encode(table, seamTables, edgebreaker.EncodeOptions{
		Method:  resolveTraversal(opts.Speed),
		Symbols: resolveSymbolOptions(opts),
	}, dst)
	if err != nil {
		return fmt.Errorf("draco: encoding connectivity: %w", err)
	}

	seqs := make(map[int]*attributes.Sequence)
	for i, a := range m.Attributes {
		seq, ok := seqs[conns[i]]
		if !ok {
			var conn corner.Connectivity = res.Table
			if conns[i] >= 0 {
				conn = res.Attributes[conns[i]]
			}
			seq = attributes.NewSequence(conn, res.Corners)
			seqs[conns[i]] = seq
		}
		values := make([]float32, 0, seq.Len()*a.NumComponents)
		for _, c := range seq.Corners {
			values = append(values, a.PointValue(pointOf(c))...)
		}
		if err := attributes.Encode(values, a.NumComponents, seq, attributeConfig(a, opts), dst); err != nil {
			return fmt.Errorf("draco: encoding %s attribute %d: %w", a.Type, i, err)
		}
	}

	slogger().Debug("draco: encoded mesh",
		"faces", table.NumFaces()-table.NumDegenerateFaces(),
		"vertices", res.NumVertices,
		"split_vertices", table.NumVertices()-table.NumOriginalVertices(),
		"attributes", len(m.Attributes),
		"seam_tables", len(seamTables),
		"traversal", res.Method.String(),
		"bytes", dst.Len())
	return nil
}
