package draco

import "github.com/deepteams/draco/internal/mesh"

// Mesh is an indexed triangle mesh: faces over point indices plus
// attributes that give every point a value.
type Mesh = mesh.Mesh

// Face is a triangle given by three point indices.
type Face = mesh.Face

// Attribute stores the values of one per-point property.
type Attribute = mesh.Attribute

// Quantized holds attribute integers returned when decoding skips the
// inverse transform.
type Quantized = mesh.Quantized

// AttributeType is the semantic of an attribute.
type AttributeType = mesh.AttributeType

const (
	Position = mesh.Position
	Normal   = mesh.Normal
	Color    = mesh.Color
	TexCoord = mesh.TexCoord
	Generic  = mesh.Generic
)

// NewMesh returns an empty mesh with numPoints points.
func NewMesh(numPoints int) *Mesh { return mesh.New(numPoints) }

// NewAttribute returns an attribute with one value per point.
func NewAttribute(t AttributeType, numComponents int, values []float32) *Attribute {
	return mesh.NewAttribute(t, numComponents, values)
}
