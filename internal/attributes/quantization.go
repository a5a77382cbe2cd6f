package attributes

import (
	"fmt"
	"math"

	"github.com/deepteams/draco/internal/bitio"
)

const (
	MinQuantizationBits = 1
	MaxQuantizationBits = 30
)

// Quantization maps every component onto an integer grid of
// (1<<Bits)-1 steps that spans [Min[c], Min[c]+Range]. A single range is
// shared by all components so the grid stays uniform in every direction.
type Quantization struct {
	Min   []float32
	Range float32
	Bits  int
}

// ComputeQuantization derives the grid for values, which hold
// numComponents floats per entry.
func ComputeQuantization(values []float32, numComponents, bits int) (Quantization, error) {
	if bits < MinQuantizationBits || bits > MaxQuantizationBits {
		return Quantization{}, fmt.Errorf("%w: %d quantization bits", ErrInvalidConfig, bits)
	}
	if numComponents <= 0 || len(values)%numComponents != 0 {
		return Quantization{}, fmt.Errorf("%w: %d values for %d components", ErrInvalidConfig, len(values), numComponents)
	}
	q := Quantization{Min: make([]float32, numComponents), Bits: bits}
	if len(values) == 0 {
		q.Range = 1
		return q, nil
	}
	maxValues := make([]float32, numComponents)
	copy(q.Min, values[:numComponents])
	copy(maxValues, values[:numComponents])
	for i := 0; i < len(values); i += numComponents {
		for c := range numComponents {
			v := values[i+c]
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return Quantization{}, fmt.Errorf("%w: non-finite value at entry %d", ErrInvalidConfig, i/numComponents)
			}
			q.Min[c] = min(q.Min[c], v)
			maxValues[c] = max(maxValues[c], v)
		}
	}
	for c := range numComponents {
		q.Range = max(q.Range, maxValues[c]-q.Min[c])
	}
	if math.IsInf(float64(q.Range), 0) {
		return Quantization{}, fmt.Errorf("%w: value range overflows float32", ErrInvalidConfig)
	}
	if q.Range == 0 {
		// All entries equal; any non-zero range maps them to zero.
		q.Range = 1
	}
	return q, nil
}

func (q Quantization) maxQuantized() int32 { return int32(1)<<q.Bits - 1 }

// Quantize writes one integer per component of values to out.
func (q Quantization) Quantize(values []float32, out []int32) {
	inverseDelta := float64(q.maxQuantized()) / float64(q.Range)
	n := len(q.Min)
	for i, v := range values {
		scaled := float64(v-q.Min[i%n]) * inverseDelta
		out[i] = int32(math.Floor(scaled + 0.5))
	}
}

// Dequantize inverts Quantize up to half a grid step.
func (q Quantization) Dequantize(in []int32, out []float32) {
	delta := float64(q.Range) / float64(q.maxQuantized())
	n := len(q.Min)
	for i, v := range in {
		out[i] = float32(float64(v)*delta + float64(q.Min[i%n]))
	}
}

func (q Quantization) write(dst *bitio.EncoderBuffer) {
	for _, m := range q.Min {
		dst.EncodeF32(m)
	}
	dst.EncodeF32(q.Range)
	dst.EncodeU8(uint8(q.Bits))
}

func readQuantization(src *bitio.DecoderBuffer, numComponents int) (Quantization, error) {
	q := Quantization{Min: make([]float32, numComponents)}
	for c := range q.Min {
		m, err := src.DecodeF32()
		if err != nil {
			return q, err
		}
		q.Min[c] = m
	}
	r, err := src.DecodeF32()
	if err != nil {
		return q, err
	}
	bits, err := src.DecodeU8()
	if err != nil {
		return q, err
	}
	if bits < MinQuantizationBits || bits > MaxQuantizationBits {
		return q, fmt.Errorf("%w: %d quantization bits", ErrCorrupt, bits)
	}
	if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) || r <= 0 {
		return q, fmt.Errorf("%w: quantization range %v", ErrCorrupt, r)
	}
	q.Range = r
	q.Bits = int(bits)
	return q, nil
}
