package draco

import (
	"errors"
	"fmt"
	"io"

	"github.com/deepteams/draco/internal/attributes"
	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/container"
	"github.com/deepteams/draco/internal/corner"
	"github.com/deepteams/draco/internal/edgebreaker"
	"github.com/deepteams/draco/internal/mesh"
)

// Errors returned by the encoder and decoder. Decode errors wrap one of
// ErrFormat, ErrUnsupported or ErrTooLarge together with the cause.
var (
	ErrFormat         = errors.New("draco: malformed bitstream")
	ErrUnsupported    = errors.New("draco: unsupported bitstream")
	ErrTooLarge       = errors.New("draco: mesh exceeds decoder limits")
	ErrInvalidMesh    = mesh.ErrInvalidMesh
	ErrInvalidOptions = errors.New("draco: invalid options")
)

// DecoderOptions controls decoding.
type DecoderOptions struct {
	// SkipAttributeTransform leaves quantized attributes as integers in
	// Attribute.Quantized instead of converting them to floats.
	SkipAttributeTransform bool

	// MaxFaces rejects streams that declare more faces (default 1<<26).
	MaxFaces int
}

// Features describes an encoded mesh without decoding it.
type Features struct {
	VersionMajor   int
	VersionMinor   int
	NumFaces       int
	NumVertices    int
	Traversal      string // "standard", "predictive" or "valence"
	AttributeTypes []AttributeType
	HasMetadata    bool
}

// readAll reads all data from r. If r implements Len() int (e.g.
// *bytes.Reader), a single exact-sized allocation is used instead of
// the repeated doublings that io.ReadAll performs.
func readAll(r io.Reader) ([]byte, error) {
	if lr, ok := r.(interface{ Len() int }); ok {
		n := lr.Len()
		if n > 0 {
			data := make([]byte, n)
			_, err := io.ReadFull(r, data)
			return data, err
		}
	}
	return io.ReadAll(r)
}

// Decode reads a mesh from r.
func Decode(r io.Reader) (*Mesh, error) {
	return DecodeWithOptions(r, nil)
}

// DecodeWithOptions reads a mesh from r. A nil opts uses the defaults.
func DecodeWithOptions(r io.Reader, opts *DecoderOptions) (*Mesh, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("draco: reading data: %w", err)
	}
	if opts == nil {
		opts = &DecoderOptions{}
	}
	m, err := decodeMesh(data, opts)
	if err != nil {
		return nil, classify(err)
	}
	return m, nil
}

// GetFeatures reads the header and counts of an encoded mesh.
func GetFeatures(r io.Reader) (*Features, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("draco: reading data: %w", err)
	}
	src := bitio.NewDecoderBuffer(data)
	h, _, descs, err := decodePreamble(src)
	if err != nil {
		return nil, classify(err)
	}
	eh, err := edgebreaker.ReadHeader(src, 0)
	if err != nil {
		return nil, classify(err)
	}
	f := &Features{
		VersionMajor: int(h.VersionMajor),
		VersionMinor: int(h.VersionMinor),
		NumFaces:     eh.NumFaces,
		NumVertices:  eh.NumVertices,
		Traversal:    eh.Method.String(),
		HasMetadata:  h.HasMetadata(),
	}
	for _, d := range descs {
		f.AttributeTypes = append(f.AttributeTypes, d.typ)
	}
	return f, nil
}

// classify wraps a decode error with the public sentinel it belongs to.
func classify(err error) error {
	switch {
	case errors.Is(err, edgebreaker.ErrTooLarge):
		return fmt.Errorf("%w: %w", ErrTooLarge, err)
	case errors.Is(err, container.ErrUnsupported), errors.Is(err, edgebreaker.ErrUnsupportedTraversal):
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	case errors.Is(err, ErrFormat):
		return err
	}
	return fmt.Errorf("%w: %w", ErrFormat, err)
}

type attributeDescriptor struct {
	typ AttributeType
	// conn is -1 for the position connectivity, otherwise the index of
	// the attribute's seam table.
	conn int
}

func decodePreamble(src *bitio.DecoderBuffer) (container.Header, map[string][]byte, []attributeDescriptor, error) {
	h, err := container.ParseHeader(src)
	if err != nil {
		return h, nil, nil, err
	}
	var md map[string][]byte
	if h.HasMetadata() {
		if md, err = container.ParseMetadata(src); err != nil {
			return h, nil, nil, err
		}
	}
	n, err := src.DecodeU8()
	if err != nil {
		return h, nil, nil, fmt.Errorf("attribute count: %w", err)
	}
	descs := make([]attributeDescriptor, n)
	hasPosition := false
	for i := range descs {
		t, err := src.DecodeU8()
		if err != nil {
			return h, nil, nil, err
		}
		conn, err := src.DecodeU8()
		if err != nil {
			return h, nil, nil, err
		}
		if AttributeType(t) > Generic {
			return h, nil, nil, fmt.Errorf("%w: attribute type %d", ErrFormat, t)
		}
		descs[i] = attributeDescriptor{typ: AttributeType(t), conn: int(conn) - 1}
		if descs[i].typ == Position {
			if descs[i].conn != -1 {
				return h, nil, nil, fmt.Errorf("%w: position attribute on a seam table", ErrFormat)
			}
			hasPosition = true
		}
	}
	if !hasPosition {
		return h, nil, nil, fmt.Errorf("%w: no position attribute", ErrFormat)
	}
	return h, md, descs, nil
}

func decodeMesh(data []byte, opts *DecoderOptions) (*Mesh, error) {
	src := bitio.NewDecoderBuffer(data)
	_, md, descs, err := decodePreamble(src)
	if err != nil {
		return nil, err
	}
	res, err := edgebreaker.Decode(src, edgebreaker.DecodeOptions{MaxFaces: opts.MaxFaces})
	if err != nil {
		return nil, err
	}
	for i, d := range descs {
		if d.conn >= len(res.Attributes) {
			return nil, fmt.Errorf("%w: attribute %d uses seam table %d of %d", ErrFormat, i, d.conn, len(res.Attributes))
		}
	}

	cornerToPoint, pointCorners := assignPoints(res.Table, res.Attributes)
	m := &Mesh{
		Faces:     make([]Face, res.Table.NumFaces()),
		NumPoints: len(pointCorners),
		Metadata:  md,
	}
	for f := range m.Faces {
		m.Faces[f] = Face{cornerToPoint[3*f], cornerToPoint[3*f+1], cornerToPoint[3*f+2]}
	}

	seqs := make(map[int]*attributes.Sequence)
	for i, d := range descs {
		var conn corner.Connectivity = res.Table
		if d.conn >= 0 {
			conn = res.Attributes[d.conn]
		}
		seq, ok := seqs[d.conn]
		if !ok {
			seq = attributes.NewSequence(conn, res.Corners)
			seqs[d.conn] = seq
		}
		dec, err := attributes.Decode(src, seq, opts.SkipAttributeTransform)
		if err != nil {
			return nil, fmt.Errorf("%s attribute %d: %w", d.typ, i, err)
		}
		a := &Attribute{
			Type:          d.typ,
			NumComponents: dec.NumComponents,
			Values:        dec.Values,
			PointToValue:  make([]uint32, len(pointCorners)),
		}
		for p, c := range pointCorners {
			e := seq.EntryOf(conn.Vertex(c))
			if e < 0 {
				return nil, fmt.Errorf("%w: point %d has no %s value", ErrFormat, p, d.typ)
			}
			a.PointToValue[p] = uint32(e)
		}
		if dec.Values == nil {
			a.Quantized = &Quantized{
				Values:        dec.Portable,
				NumComponents: dec.PortableComponents,
				Bits:          dec.Quantization.Bits,
				Min:           dec.Quantization.Min,
				Range:         dec.Quantization.Range,
				Octahedral:    dec.Transform == attributes.TransformOctahedron,
			}
			if a.Quantized.Octahedral {
				a.Quantized.Bits = dec.OctahedronBits
			}
		}
		m.Attributes = append(m.Attributes, a)
	}

	slogger().Debug("draco: decoded mesh",
		"faces", len(m.Faces),
		"points", m.NumPoints,
		"attributes", len(m.Attributes),
		"traversal", res.Method.String())
	return m, nil
}

// assignPoints splits every vertex of table into one point per distinct
// combination of attribute vertices found around it. It returns the point
// of every corner and one corner per point.
func assignPoints(table *corner.Table, seams []*corner.AttributeTable) ([]mesh.PointIndex, []corner.CornerIndex) {
	cornerToPoint := make([]mesh.PointIndex, table.NumCorners())
	assigned := make([]bool, table.NumCorners())
	pointCorners := make([]corner.CornerIndex, 0, table.NumVertices())
	sameAttributes := func(a, b corner.CornerIndex) bool {
		for _, s := range seams {
			if s.Vertex(a) != s.Vertex(b) {
				return false
			}
		}
		return true
	}
	for v := corner.VertexIndex(0); int(v) < table.NumVertices(); v++ {
		first := len(pointCorners)
		for _, c := range table.VertexCorners(v) {
			p := -1
			for q := first; q < len(pointCorners); q++ {
				if sameAttributes(c, pointCorners[q]) {
					p = q
					break
				}
			}
			if p < 0 {
				p = len(pointCorners)
				pointCorners = append(pointCorners, c)
			}
			cornerToPoint[c] = mesh.PointIndex(p)
			assigned[c] = true
		}
	}
	// Corners outside every vertex fan only occur in inconsistent tables;
	// each still gets a point so that faces stay in range.
	for c := range assigned {
		if !assigned[c] {
			cornerToPoint[c] = mesh.PointIndex(len(pointCorners))
			pointCorners = append(pointCorners, corner.CornerIndex(c))
		}
	}
	return cornerToPoint, pointCorners
}
