// Package mesh holds the triangle mesh model the codec reads and writes:
// faces over point indices, and attributes that map every point to a
// value.
package mesh

import (
	"errors"
	"fmt"

	"github.com/ungerik/go3d/float64/vec3"
)

var ErrInvalidMesh = errors.New("mesh: invalid mesh")

// AttributeType is the semantic of an attribute.
type AttributeType uint8

const (
	Position AttributeType = iota
	Normal
	Color
	TexCoord
	Generic
)

func (t AttributeType) String() string {
	switch t {
	case Position:
		return "position"
	case Normal:
		return "normal"
	case Color:
		return "color"
	case TexCoord:
		return "texcoord"
	case Generic:
		return "generic"
	}
	return fmt.Sprintf("AttributeType(%d)", uint8(t))
}

// PointIndex identifies a point of a mesh.
type PointIndex = uint32

// Face is a triangle given by three point indices.
type Face [3]PointIndex

// Attribute stores NumComponents floats per value. Several points may
// share one value.
type Attribute struct {
	Type          AttributeType
	NumComponents int
	Values        []float32
	// PointToValue maps each point to a value index. When nil, point i
	// uses value i.
	PointToValue []uint32
	// Quantized is set instead of Values when a decoder skipped the
	// inverse attribute transform.
	Quantized *Quantized
}

// Quantized holds the integers an attribute was coded as, together with
// the parameters that map them back to floats.
type Quantized struct {
	// Values holds NumComponents integers per value.
	Values        []int32
	NumComponents int
	Bits          int
	// Min and Range describe the quantization grid. They are unset for
	// octahedral normals, whose two components are coordinates on the
	// unfolded octahedron.
	Min        []float32
	Range      float32
	Octahedral bool
}

// NewAttribute returns an attribute whose points map to values one to
// one.
func NewAttribute(t AttributeType, numComponents int, values []float32) *Attribute {
	return &Attribute{Type: t, NumComponents: numComponents, Values: values}
}

// NumValues returns the number of distinct stored values.
func (a *Attribute) NumValues() int {
	if a.NumComponents <= 0 {
		return 0
	}
	return len(a.Values) / a.NumComponents
}

// ValueIndex returns the value index used by point p.
func (a *Attribute) ValueIndex(p PointIndex) uint32 {
	if a.PointToValue == nil {
		return p
	}
	return a.PointToValue[p]
}

// Value returns the components of value index v.
func (a *Attribute) Value(v uint32) []float32 {
	n := uint32(a.NumComponents)
	return a.Values[v*n : (v+1)*n]
}

// PointValue returns the components used by point p.
func (a *Attribute) PointValue(p PointIndex) []float32 {
	return a.Value(a.ValueIndex(p))
}

// Vec3 returns the first three components of point p as a vector;
// missing components are zero.
func (a *Attribute) Vec3(p PointIndex) vec3.T {
	var v vec3.T
	for i, c := range a.PointValue(p) {
		if i == 3 {
			break
		}
		v[i] = float64(c)
	}
	return v
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Faces      []Face
	NumPoints  int
	Attributes []*Attribute
	// Metadata holds named application data carried next to the geometry.
	Metadata map[string][]byte
}

// New returns an empty mesh with numPoints points.
func New(numPoints int) *Mesh {
	return &Mesh{NumPoints: numPoints}
}

// AddFace appends a triangle.
func (m *Mesh) AddFace(a, b, c PointIndex) {
	m.Faces = append(m.Faces, Face{a, b, c})
}

func (m *Mesh) NumFaces() int { return len(m.Faces) }

// AddAttribute appends a and returns its id.
func (m *Mesh) AddAttribute(a *Attribute) int {
	m.Attributes = append(m.Attributes, a)
	return len(m.Attributes) - 1
}

// NamedAttribute returns the first attribute of type t, or nil.
func (m *Mesh) NamedAttribute(t AttributeType) *Attribute {
	if id := m.NamedAttributeID(t); id >= 0 {
		return m.Attributes[id]
	}
	return nil
}

// NamedAttributeID returns the id of the first attribute of type t, or -1.
func (m *Mesh) NamedAttributeID(t AttributeType) int {
	for i, a := range m.Attributes {
		if a.Type == t {
			return i
		}
	}
	return -1
}

// Bounds returns the axis aligned bounding box of the positions.
func (m *Mesh) Bounds() (lo, hi vec3.T) {
	pos := m.NamedAttribute(Position)
	if pos == nil || m.NumPoints == 0 {
		return lo, hi
	}
	lo = pos.Vec3(0)
	hi = lo
	for p := 1; p < m.NumPoints; p++ {
		v := pos.Vec3(PointIndex(p))
		for i := range 3 {
			lo[i] = min(lo[i], v[i])
			hi[i] = max(hi[i], v[i])
		}
	}
	return lo, hi
}

// Validate checks that faces and attribute mappings stay in range.
func (m *Mesh) Validate() error {
	if m.NumPoints < 0 {
		return fmt.Errorf("%w: %d points", ErrInvalidMesh, m.NumPoints)
	}
	for i, f := range m.Faces {
		for _, p := range f {
			if int(p) >= m.NumPoints {
				return fmt.Errorf("%w: face %d references point %d of %d", ErrInvalidMesh, i, p, m.NumPoints)
			}
		}
	}
	if m.NamedAttribute(Position) == nil {
		return fmt.Errorf("%w: no position attribute", ErrInvalidMesh)
	}
	for id, a := range m.Attributes {
		if a.NumComponents <= 0 || a.NumComponents > 255 || len(a.Values)%a.NumComponents != 0 {
			return fmt.Errorf("%w: attribute %d has %d values for %d components", ErrInvalidMesh, id, len(a.Values), a.NumComponents)
		}
		numValues := uint32(a.NumValues())
		if a.PointToValue == nil {
			if int(numValues) < m.NumPoints {
				return fmt.Errorf("%w: attribute %d has %d values for %d points", ErrInvalidMesh, id, numValues, m.NumPoints)
			}
			continue
		}
		if len(a.PointToValue) != m.NumPoints {
			return fmt.Errorf("%w: attribute %d maps %d points of %d", ErrInvalidMesh, id, len(a.PointToValue), m.NumPoints)
		}
		for p, v := range a.PointToValue {
			if v >= numValues {
				return fmt.Errorf("%w: attribute %d point %d maps to value %d of %d", ErrInvalidMesh, id, p, v, numValues)
			}
		}
	}
	return nil
}
