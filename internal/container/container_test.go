package container

import (
	"bytes"
	"errors"
	"testing"

	"github.com/deepteams/draco/internal/bitio"
)

func encodeHeader(h Header) []byte {
	buf := bitio.NewEncoderBuffer(HeaderSize)
	WriteHeader(buf, h)
	return buf.Bytes()
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, md := range []bool{false, true} {
		data := encodeHeader(NewHeader(md))
		if len(data) != HeaderSize {
			t.Fatalf("header is %d bytes, want %d", len(data), HeaderSize)
		}
		src := bitio.NewDecoderBuffer(data)
		h, err := ParseHeader(src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.HasMetadata() != md {
			t.Fatalf("HasMetadata = %v, want %v", h.HasMetadata(), md)
		}
		if src.Version() != 0x0202 {
			t.Fatalf("buffer version = %#x, want 0x0202", src.Version())
		}
		if src.RemainingSize() != 0 {
			t.Fatalf("%d bytes left after header", src.RemainingSize())
		}
	}
}

func TestParseHeader_BadMagic(t *testing.T) {
	data := encodeHeader(NewHeader(false))
	copy(data, "DRACA")
	src := bitio.NewDecoderBuffer(data)
	_, err := ParseHeader(src)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
	if src.Pos() != 0 {
		t.Fatalf("foreign stream advanced to %d", src.Pos())
	}
}

func TestParseHeader_TooShort(t *testing.T) {
	data := encodeHeader(NewHeader(false))
	for n := 0; n < len(data); n++ {
		if _, err := ParseHeader(bitio.NewDecoderBuffer(data[:n])); err == nil {
			t.Fatalf("truncated header of %d bytes accepted", n)
		}
	}
}

func TestParseHeader_Unsupported(t *testing.T) {
	cases := map[string]func(*Header){
		"old major":   func(h *Header) { h.VersionMajor = 1 },
		"legacy":      func(h *Header) { h.VersionMinor = 1 },
		"future":      func(h *Header) { h.VersionMinor = 3 },
		"point cloud": func(h *Header) { h.Geometry = GeometryPointCloud },
		"sequential":  func(h *Header) { h.Method = MethodSequential },
	}
	for name, mutate := range cases {
		h := NewHeader(false)
		mutate(&h)
		_, err := ParseHeader(bitio.NewDecoderBuffer(encodeHeader(h)))
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s: expected ErrUnsupported, got %v", name, err)
		}
	}
}

func TestParseHeader_UnknownFlags(t *testing.T) {
	h := NewHeader(false)
	h.Flags = 0x0001
	_, err := ParseHeader(bitio.NewDecoderBuffer(encodeHeader(h)))
	if !errors.Is(err, ErrInvalidFlags) {
		t.Fatalf("expected ErrInvalidFlags, got %v", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	md := map[string][]byte{
		"name":      []byte("bunny"),
		"generator": []byte("draco-go"),
		"scale":     {0, 0, 128, 63},
	}
	buf := bitio.NewEncoderBuffer(0)
	if err := WriteMetadata(buf, md); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := append([]byte(nil), buf.Bytes()...)

	src := bitio.NewDecoderBuffer(buf.Bytes())
	got, err := ParseMetadata(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(md) {
		t.Fatalf("got %d entries, want %d", len(got), len(md))
	}
	for k, v := range md {
		if !bytes.Equal(got[k], v) {
			t.Errorf("entry %q = %v, want %v", k, got[k], v)
		}
	}

	// Entries are written in name order, so encoding is deterministic.
	again := bitio.NewEncoderBuffer(0)
	if err := WriteMetadata(again, got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first, again.Bytes()) {
		t.Fatal("metadata encoding is not deterministic")
	}
}

func TestWriteMetadata_BadName(t *testing.T) {
	buf := bitio.NewEncoderBuffer(0)
	err := WriteMetadata(buf, map[string][]byte{"": {1}})
	if !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("expected ErrInvalidMetadata, got %v", err)
	}
}

func TestParseMetadata_Truncated(t *testing.T) {
	buf := bitio.NewEncoderBuffer(0)
	if err := WriteMetadata(buf, map[string][]byte{"key": []byte("value")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := buf.Bytes()
	for n := 0; n < len(data); n++ {
		if _, err := ParseMetadata(bitio.NewDecoderBuffer(data[:n])); err == nil {
			t.Fatalf("truncated metadata of %d bytes accepted", n)
		}
	}
}
