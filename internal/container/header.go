// Package container reads and writes the file header and the metadata
// block that precede the geometry payload.
package container

import (
	"errors"
	"fmt"

	"github.com/deepteams/draco/internal/bitio"
)

// Magic opens every file.
const Magic = "DRACO"

// Bitstream version written by this package. Older versions use
// different integer layouts and are rejected. The payload that follows
// the header is specific to this package and does not match the layout
// other Draco 2.2 decoders expect.
const (
	VersionMajor = 2
	VersionMinor = 2
)

// GeometryType identifies what the payload describes.
type GeometryType uint8

const (
	GeometryPointCloud   GeometryType = 0
	GeometryTriangleMesh GeometryType = 1
)

// Method identifies the connectivity coder.
type Method uint8

const (
	MethodSequential  Method = 0
	MethodEdgebreaker Method = 1
)

// Header flags.
const (
	FlagMetadata uint16 = 0x8000
	validFlags          = FlagMetadata
)

// HeaderSize is the encoded size of a Header.
const HeaderSize = len(Magic) + 6

var (
	ErrInvalidMagic = errors.New("container: invalid magic")
	ErrUnsupported  = errors.New("container: unsupported format")
	ErrInvalidFlags = errors.New("container: invalid header flags")
)

// Header is the fixed-size file preamble.
type Header struct {
	VersionMajor uint8
	VersionMinor uint8
	Geometry     GeometryType
	Method       Method
	Flags        uint16
}

// NewHeader returns the header written for an Edgebreaker-coded mesh.
func NewHeader(hasMetadata bool) Header {
	h := Header{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		Geometry:     GeometryTriangleMesh,
		Method:       MethodEdgebreaker,
	}
	if hasMetadata {
		h.Flags |= FlagMetadata
	}
	return h
}

// Version packs the version as major<<8 | minor.
func (h Header) Version() uint16 { return uint16(h.VersionMajor)<<8 | uint16(h.VersionMinor) }

// HasMetadata reports whether a metadata block follows the header.
func (h Header) HasMetadata() bool { return h.Flags&FlagMetadata != 0 }

// WriteHeader appends h to dst.
func WriteHeader(dst *bitio.EncoderBuffer, h Header) {
	dst.EncodeBytes([]byte(Magic))
	dst.EncodeU8(h.VersionMajor)
	dst.EncodeU8(h.VersionMinor)
	dst.EncodeU8(uint8(h.Geometry))
	dst.EncodeU8(uint8(h.Method))
	dst.EncodeU16(h.Flags)
}

// ParseHeader reads the header and checks that the rest of the stream can
// be decoded by this package. The buffer's version is set on success.
func ParseHeader(src *bitio.DecoderBuffer) (Header, error) {
	var h Header
	magic, err := src.Peek(len(Magic))
	if err != nil || string(magic) != Magic {
		// Foreign streams are left unread.
		return h, ErrInvalidMagic
	}
	if err := src.Advance(len(Magic)); err != nil {
		return h, err
	}
	var b [4]uint8
	for i := range b {
		if b[i], err = src.DecodeU8(); err != nil {
			return h, fmt.Errorf("container: header: %w", err)
		}
	}
	h.VersionMajor, h.VersionMinor = b[0], b[1]
	h.Geometry, h.Method = GeometryType(b[2]), Method(b[3])
	if h.Flags, err = src.DecodeU16(); err != nil {
		return h, fmt.Errorf("container: header: %w", err)
	}
	if h.VersionMajor != VersionMajor || h.VersionMinor > VersionMinor {
		return h, fmt.Errorf("%w: version %d.%d", ErrUnsupported, h.VersionMajor, h.VersionMinor)
	}
	if h.VersionMinor < VersionMinor {
		return h, fmt.Errorf("%w: legacy version %d.%d", ErrUnsupported, h.VersionMajor, h.VersionMinor)
	}
	if h.Geometry != GeometryTriangleMesh {
		return h, fmt.Errorf("%w: geometry type %d", ErrUnsupported, h.Geometry)
	}
	if h.Method != MethodEdgebreaker {
		return h, fmt.Errorf("%w: encoding method %d", ErrUnsupported, h.Method)
	}
	if h.Flags&^validFlags != 0 {
		return h, fmt.Errorf("%w: %#04x", ErrInvalidFlags, h.Flags)
	}
	src.SetVersion(h.Version())
	return h, nil
}
