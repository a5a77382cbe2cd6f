// Package attributes codes per-vertex attribute values in the order of a
// connectivity traversal. Values are converted to portable integers by a
// transform (quantization or octahedral normals), predicted from entries
// coded earlier in the traversal, and the residuals are entropy coded.
package attributes

import (
	"errors"
	"fmt"
	"math"

	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/entropy"
	"github.com/deepteams/draco/internal/pool"
	"github.com/ungerik/go3d/float64/vec3"
)

var (
	ErrCorrupt       = errors.New("attributes: corrupt attribute data")
	ErrInvalidConfig = errors.New("attributes: invalid configuration")
)

// Transform converts attribute values to the integers that are coded.
type Transform uint8

const (
	// TransformRaw stores float32 components verbatim. No prediction is
	// applied.
	TransformRaw Transform = iota
	// TransformQuantization quantizes every component on a uniform grid.
	TransformQuantization
	// TransformOctahedron codes three-component unit vectors as two
	// octahedral coordinates.
	TransformOctahedron
)

func (t Transform) String() string {
	switch t {
	case TransformRaw:
		return "raw"
	case TransformQuantization:
		return "quantization"
	case TransformOctahedron:
		return "octahedron"
	}
	return fmt.Sprintf("Transform(%d)", uint8(t))
}

// Config selects how one attribute is coded.
type Config struct {
	Transform  Transform
	Prediction PredictionMethod
	// Bits is the quantization precision for TransformQuantization and
	// TransformOctahedron.
	Bits    int
	Symbols entropy.SymbolOptions
}

// Decoded is an attribute read back by Decode. Values and Portable are
// indexed by sequence entry.
type Decoded struct {
	NumComponents int
	Transform     Transform
	// Values holds NumComponents floats per entry. It is nil when the
	// transform was skipped.
	Values []float32
	// Portable holds the integers that were entropy coded,
	// PortableComponents per entry. It is nil for TransformRaw.
	Portable           []int32
	PortableComponents int
	Quantization       Quantization
	OctahedronBits     int
}

// Encode writes values, numComponents floats per entry of seq, to dst.
func Encode(values []float32, numComponents int, seq *Sequence, cfg Config, dst *bitio.EncoderBuffer) error {
	if numComponents <= 0 || numComponents > 255 {
		return fmt.Errorf("%w: %d components", ErrInvalidConfig, numComponents)
	}
	if len(values) != seq.Len()*numComponents {
		return fmt.Errorf("%w: %d values for %d entries", ErrInvalidConfig, len(values), seq.Len())
	}
	if cfg.Transform == TransformOctahedron && numComponents != 3 {
		return fmt.Errorf("%w: octahedron transform needs 3 components, got %d", ErrInvalidConfig, numComponents)
	}
	prediction := cfg.Prediction
	if cfg.Transform == TransformRaw || prediction > PredictionParallelogram {
		prediction = PredictionNone
	}
	dst.EncodeU8(uint8(cfg.Transform))
	dst.EncodeU8(uint8(prediction))
	dst.EncodeU8(uint8(numComponents))
	dst.EncodeVarint(uint64(seq.Len()))

	var portable []int32
	portableComponents := numComponents
	switch cfg.Transform {
	case TransformRaw:
		for _, v := range values {
			dst.EncodeF32(v)
		}
		return nil
	case TransformQuantization:
		q, err := ComputeQuantization(values, numComponents, cfg.Bits)
		if err != nil {
			return err
		}
		q.write(dst)
		portable = make([]int32, len(values))
		q.Quantize(values, portable)
	case TransformOctahedron:
		o, err := NewOctahedron(cfg.Bits)
		if err != nil {
			return err
		}
		dst.EncodeU8(uint8(cfg.Bits))
		portableComponents = 2
		portable = make([]int32, 0, 2*seq.Len())
		for i := 0; i < len(values); i += 3 {
			s, t := o.Encode(vec3.T{float64(values[i]), float64(values[i+1]), float64(values[i+2])})
			portable = append(portable, s, t)
		}
	default:
		return fmt.Errorf("%w: transform %d", ErrInvalidConfig, cfg.Transform)
	}
	if err := encodePortable(portable, portableComponents, seq, prediction, cfg.Symbols, dst); err != nil {
		return err
	}
	slogger().Debug("attribute encoded",
		"transform", cfg.Transform.String(),
		"prediction", prediction.String(),
		"entries", seq.Len(),
		"bytes", dst.Len())
	return nil
}

func encodePortable(data []int32, n int, seq *Sequence, method PredictionMethod, opts entropy.SymbolOptions, dst *bitio.EncoderBuffer) error {
	if len(data) == 0 {
		return nil
	}
	w, err := newWrapTransform(data, n)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	w.write(dst)
	corr := computeCorrections(data, &predictor{method: method, seq: seq, n: n}, w)
	symbols := pool.GetUint32(len(corr))
	defer pool.PutUint32(symbols)
	entropy.ConvertSignedInts(corr, symbols)
	return entropy.EncodeSymbols(symbols, n, opts, dst)
}

// Decode reads one attribute written by Encode for a sequence that
// corresponds to seq. With skipTransform set the portable integers are
// returned without converting them back to floats.
func Decode(src *bitio.DecoderBuffer, seq *Sequence, skipTransform bool) (*Decoded, error) {
	var hdr [3]uint8
	for i := range hdr {
		b, err := src.DecodeU8()
		if err != nil {
			return nil, err
		}
		hdr[i] = b
	}
	transform, prediction := Transform(hdr[0]), PredictionMethod(hdr[1])
	n := int(hdr[2])
	if transform > TransformOctahedron || prediction > PredictionParallelogram || n == 0 {
		return nil, fmt.Errorf("%w: transform %d prediction %d components %d", ErrCorrupt, hdr[0], hdr[1], n)
	}
	if transform == TransformOctahedron && n != 3 {
		return nil, fmt.Errorf("%w: octahedron transform with %d components", ErrCorrupt, n)
	}
	numEntries, err := src.DecodeVarintU32()
	if err != nil {
		return nil, err
	}
	if int(numEntries) != seq.Len() {
		return nil, fmt.Errorf("%w: %d entries, traversal visits %d", ErrCorrupt, numEntries, seq.Len())
	}
	d := &Decoded{NumComponents: n, Transform: transform, PortableComponents: n}

	switch transform {
	case TransformRaw:
		if src.RemainingSize()/4 < seq.Len()*n {
			return nil, fmt.Errorf("%w: raw values truncated", ErrCorrupt)
		}
		d.Values = make([]float32, seq.Len()*n)
		for i := range d.Values {
			if d.Values[i], err = src.DecodeF32(); err != nil {
				return nil, err
			}
		}
		return d, nil
	case TransformQuantization:
		if d.Quantization, err = readQuantization(src, n); err != nil {
			return nil, err
		}
	case TransformOctahedron:
		bits, err := src.DecodeU8()
		if err != nil {
			return nil, err
		}
		if bits < MinOctahedronBits || bits > MaxOctahedronBits {
			return nil, fmt.Errorf("%w: %d octahedron bits", ErrCorrupt, bits)
		}
		d.OctahedronBits = int(bits)
		d.PortableComponents = 2
	}

	if d.Portable, err = decodePortable(src, seq, prediction, d.PortableComponents); err != nil {
		return nil, err
	}
	if skipTransform {
		return d, nil
	}
	d.Values = make([]float32, seq.Len()*n)
	switch transform {
	case TransformQuantization:
		d.Quantization.Dequantize(d.Portable, d.Values)
	case TransformOctahedron:
		o, err := NewOctahedron(d.OctahedronBits)
		if err != nil {
			return nil, err
		}
		for i := range seq.Len() {
			v := o.Decode(d.Portable[2*i], d.Portable[2*i+1])
			d.Values[3*i] = float32(v[0])
			d.Values[3*i+1] = float32(v[1])
			d.Values[3*i+2] = float32(v[2])
		}
	}
	return d, nil
}

func decodePortable(src *bitio.DecoderBuffer, seq *Sequence, method PredictionMethod, n int) ([]int32, error) {
	if seq.Len() == 0 {
		return nil, nil
	}
	if seq.Len() > math.MaxInt32/n {
		return nil, fmt.Errorf("%w: %d entries", ErrCorrupt, seq.Len())
	}
	w, err := readWrapTransform(src, n)
	if err != nil {
		return nil, err
	}
	symbols := pool.GetUint32(seq.Len() * n)
	defer pool.PutUint32(symbols)
	if err := entropy.DecodeSymbols(symbols, n, src); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	data := make([]int32, len(symbols))
	entropy.ConvertSymbolsToSignedInts(symbols, data)
	restoreValues(data, &predictor{method: method, seq: seq, n: n}, w)
	return data, nil
}
