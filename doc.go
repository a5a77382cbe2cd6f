// Package draco provides a pure Go encoder and decoder for compressed
// triangle meshes.
//
// Connectivity is coded with Edgebreaker: the faces are visited in a
// spiral traversal that emits one of five CLERS symbols per face, plus
// the few events needed to rebuild handles and holes. Attribute values
// (positions, normals, texture coordinates, colors or generic data) are
// quantized, predicted from values already decoded in the traversal
// order, and the residuals are compressed with rANS entropy coding.
//
// The package supports:
//   - Standard, predictive and valence-context symbol coding
//   - Uniform quantization and octahedral normals
//   - Delta and parallelogram prediction
//   - Attribute seams, so texture coordinates may change across edges
//   - Named metadata entries stored next to the geometry
//
// Basic usage for encoding:
//
//	err := draco.Encode(writer, mesh, &draco.EncoderOptions{Speed: 5})
//
// Basic usage for decoding:
//
//	mesh, err := draco.Decode(reader)
//
// Decoded meshes are equivalent to the input rather than identical: faces
// may be reordered and rotated, and points are renumbered.
//
// # Format compatibility
//
// Files open with the "DRACO" magic and version 2.2, but the payload after
// the header does not follow the layout of the reference C++ library: the
// attribute descriptors, the hole events and the attribute seam coding
// differ. Files written here can only be read by this package, and files
// produced by other Draco encoders fail to decode with ErrFormat.
package draco
