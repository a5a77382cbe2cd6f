package container

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/deepteams/draco/internal/bitio"
)

// MaxMetadataEntries bounds the entry count a decoder accepts.
const MaxMetadataEntries = 1 << 16

var ErrInvalidMetadata = errors.New("container: invalid metadata")

// WriteMetadata appends the entries of md sorted by name.
func WriteMetadata(dst *bitio.EncoderBuffer, md map[string][]byte) error {
	if len(md) > MaxMetadataEntries {
		return fmt.Errorf("%w: %d entries", ErrInvalidMetadata, len(md))
	}
	dst.EncodeVarint(uint64(len(md)))
	for _, name := range slices.Sorted(maps.Keys(md)) {
		if name == "" || len(name) > 255 {
			return fmt.Errorf("%w: entry name %q", ErrInvalidMetadata, name)
		}
		value := md[name]
		dst.EncodeU8(uint8(len(name)))
		dst.EncodeBytes([]byte(name))
		dst.EncodeVarint(uint64(len(value)))
		dst.EncodeBytes(value)
	}
	return nil
}

// ParseMetadata reads a block written by WriteMetadata. Values are
// copied out of src.
func ParseMetadata(src *bitio.DecoderBuffer) (map[string][]byte, error) {
	n, err := src.DecodeVarintU32()
	if err != nil {
		return nil, fmt.Errorf("container: metadata: %w", err)
	}
	if n > MaxMetadataEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrInvalidMetadata, n)
	}
	md := make(map[string][]byte, min(int(n), src.RemainingSize()))
	for range n {
		nameLen, err := src.DecodeU8()
		if err != nil {
			return nil, fmt.Errorf("container: metadata: %w", err)
		}
		if nameLen == 0 {
			return nil, fmt.Errorf("%w: empty entry name", ErrInvalidMetadata)
		}
		name, err := src.DecodeBytes(int(nameLen))
		if err != nil {
			return nil, fmt.Errorf("container: metadata: %w", err)
		}
		valueLen, err := src.DecodeVarintU32()
		if err != nil {
			return nil, fmt.Errorf("container: metadata: %w", err)
		}
		if int(valueLen) > src.RemainingSize() {
			return nil, fmt.Errorf("%w: entry %q truncated", ErrInvalidMetadata, name)
		}
		value, err := src.DecodeBytes(int(valueLen))
		if err != nil {
			return nil, fmt.Errorf("container: metadata: %w", err)
		}
		if _, dup := md[string(name)]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrInvalidMetadata, name)
		}
		md[string(name)] = slices.Clone(value)
	}
	return md, nil
}
