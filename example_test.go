package draco_test

import (
	"bytes"
	"fmt"

	"github.com/deepteams/draco"
)

func square() *draco.Mesh {
	m := draco.NewMesh(4)
	m.AddFace(0, 1, 2)
	m.AddFace(0, 2, 3)
	m.AddAttribute(draco.NewAttribute(draco.Position, 3, []float32{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	}))
	return m
}

func ExampleEncode() {
	var buf bytes.Buffer
	if err := draco.Encode(&buf, square(), draco.DefaultOptions()); err != nil {
		fmt.Println(err)
		return
	}
	m, err := draco.Decode(&buf)
	if err != nil {
		fmt.Println(err)
		return
	}
	lo, hi := m.Bounds()
	fmt.Printf("faces: %d, points: %d\n", m.NumFaces(), m.NumPoints)
	fmt.Printf("bounds: %v %v\n", lo, hi)
	// Output:
	// faces: 2, points: 4
	// bounds: [0 0 0] [1 1 0]
}

func ExampleGetFeatures() {
	var buf bytes.Buffer
	if err := draco.Encode(&buf, square(), &draco.EncoderOptions{Speed: 2}); err != nil {
		fmt.Println(err)
		return
	}
	feat, err := draco.GetFeatures(&buf)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("version %d.%d, %d faces, %d vertices, %s traversal\n",
		feat.VersionMajor, feat.VersionMinor, feat.NumFaces, feat.NumVertices, feat.Traversal)
	fmt.Println(feat.AttributeTypes)
	// Output:
	// version 2.2, 2 faces, 4 vertices, valence traversal
	// [position]
}

func ExampleDefaultOptions() {
	opts := draco.DefaultOptions()
	fmt.Printf("speed=%d deduplicate=%v\n", opts.Speed, opts.Deduplicate)
	// Output:
	// speed=5 deduplicate=true
}
