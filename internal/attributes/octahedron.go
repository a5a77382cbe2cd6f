package attributes

import (
	"fmt"
	"math"

	"github.com/ungerik/go3d/float64/vec3"
)

const (
	MinOctahedronBits = 2
	MaxOctahedronBits = 30
)

// Octahedron maps unit vectors to quantized (s, t) coordinates on the
// octahedron unfolded into a square. Coordinates lie in [0, maxValue];
// points on the square border that alias each other are folded onto one
// canonical representative.
type Octahedron struct {
	bits         int
	maxQuantized int32
	maxValue     int32
	center       int32
	dequantScale float64
}

// NewOctahedron returns the mapping for the given number of bits per
// coordinate.
func NewOctahedron(bits int) (*Octahedron, error) {
	if bits < MinOctahedronBits || bits > MaxOctahedronBits {
		return nil, fmt.Errorf("%w: %d octahedron bits", ErrInvalidConfig, bits)
	}
	o := &Octahedron{bits: bits, maxQuantized: int32(1)<<bits - 1}
	o.maxValue = o.maxQuantized - 1
	o.center = o.maxValue / 2
	o.dequantScale = 2 / float64(o.maxValue)
	return o, nil
}

func (o *Octahedron) Bits() int { return o.bits }

// MaxValue is the largest coordinate Encode produces.
func (o *Octahedron) MaxValue() int32 { return o.maxValue }

// Encode quantizes v, which need not be normalized. The zero vector maps
// to the +X direction.
func (o *Octahedron) Encode(v vec3.T) (s, t int32) {
	absSum := math.Abs(v[0]) + math.Abs(v[1]) + math.Abs(v[2])
	scaled := vec3.T{1, 0, 0}
	if absSum > 1e-6 {
		scaled = v.Scaled(1 / absSum)
	}
	center := float64(o.center)
	var iv [3]int32
	iv[0] = int32(math.Floor(scaled[0]*center + 0.5))
	iv[1] = int32(math.Floor(scaled[1]*center + 0.5))
	// The L1 norm must equal center exactly.
	iv[2] = o.center - abs32(iv[0]) - abs32(iv[1])
	if iv[2] < 0 {
		if iv[1] > 0 {
			iv[1] += iv[2]
		} else {
			iv[1] -= iv[2]
		}
		iv[2] = 0
	}
	if scaled[2] < 0 {
		iv[2] = -iv[2]
	}
	return o.integerVectorToCoords(iv)
}

func (o *Octahedron) integerVectorToCoords(iv [3]int32) (s, t int32) {
	if iv[0] >= 0 {
		s = iv[1] + o.center
		t = iv[2] + o.center
	} else {
		if iv[1] < 0 {
			s = abs32(iv[2])
		} else {
			s = o.maxValue - abs32(iv[2])
		}
		if iv[2] < 0 {
			t = abs32(iv[1])
		} else {
			t = o.maxValue - abs32(iv[1])
		}
	}
	return o.Canonicalize(s, t)
}

// Canonicalize folds border coordinates that describe the same direction
// onto a single representative.
func (o *Octahedron) Canonicalize(s, t int32) (int32, int32) {
	m, c := o.maxValue, o.center
	switch {
	case (s == 0 && t == 0) || (s == 0 && t == m) || (s == m && t == 0):
		s, t = m, m
	case s == 0 && t > c:
		t = c - (t - c)
	case s == m && t < c:
		t = c + (c - t)
	case t == m && s < c:
		s = c + (c - s)
	case t == 0 && s > c:
		s = c - (s - c)
	}
	return s, t
}

// Decode returns the unit vector for quantized coordinates. Coordinates
// outside [0, MaxValue] are clamped.
func (o *Octahedron) Decode(s, t int32) vec3.T {
	s = min(max(s, 0), o.maxValue)
	t = min(max(t, 0), o.maxValue)
	y := float64(s)*o.dequantScale - 1
	z := float64(t)*o.dequantScale - 1
	x := 1 - math.Abs(y) - math.Abs(z)
	// Points outside the central diamond belong to the -X hemisphere and
	// fold back across its edges.
	offset := max(-x, 0)
	if y < 0 {
		y += offset
	} else {
		y -= offset
	}
	if z < 0 {
		z += offset
	} else {
		z -= offset
	}
	v := vec3.T{x, y, z}
	n := v.LengthSqr()
	if n < 1e-6 {
		return vec3.T{}
	}
	return v.Scaled(1 / math.Sqrt(n))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
