package attributes

import (
	"fmt"
	"math"

	"github.com/deepteams/draco/internal/bitio"
	"github.com/deepteams/draco/internal/corner"
)

// PredictionMethod selects how each entry is predicted from entries that
// precede it in traversal order.
type PredictionMethod uint8

const (
	PredictionNone PredictionMethod = iota
	// PredictionDelta predicts the previous entry.
	PredictionDelta
	// PredictionParallelogram completes the parallelogram spanned by the
	// triangle across the edge opposite to the entry's corner, falling back
	// to delta when that triangle is not fully decoded yet.
	PredictionParallelogram
)

func (m PredictionMethod) String() string {
	switch m {
	case PredictionNone:
		return "none"
	case PredictionDelta:
		return "delta"
	case PredictionParallelogram:
		return "parallelogram"
	}
	return fmt.Sprintf("PredictionMethod(%d)", uint8(m))
}

// wrapTransform keeps corrections inside the value range of the data by
// wrapping them around [min, max].
type wrapTransform struct {
	min, max           int32
	maxDif             int64
	minCorr, maxCorr   int64
	clamped, predicted []int32
}

func newWrapTransform(data []int32, numComponents int) (*wrapTransform, error) {
	w := &wrapTransform{}
	if len(data) > 0 {
		w.min, w.max = data[0], data[0]
		for _, v := range data[1:] {
			w.min = min(w.min, v)
			w.max = max(w.max, v)
		}
	}
	if err := w.init(numComponents); err != nil {
		return nil, err
	}
	return w, nil
}

func readWrapTransform(src *bitio.DecoderBuffer, numComponents int) (*wrapTransform, error) {
	lo, err := src.DecodeI32()
	if err != nil {
		return nil, err
	}
	hi, err := src.DecodeI32()
	if err != nil {
		return nil, err
	}
	w := &wrapTransform{min: lo, max: hi}
	if err := w.init(numComponents); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *wrapTransform) init(numComponents int) error {
	dif := int64(w.max) - int64(w.min)
	if dif < 0 || dif >= math.MaxInt32 {
		return fmt.Errorf("%w: wrap range [%d, %d]", ErrCorrupt, w.min, w.max)
	}
	w.maxDif = 1 + dif
	w.maxCorr = w.maxDif / 2
	w.minCorr = -w.maxCorr
	if w.maxDif&1 == 0 {
		w.maxCorr--
	}
	w.clamped = make([]int32, numComponents)
	w.predicted = make([]int32, numComponents)
	return nil
}

func (w *wrapTransform) write(dst *bitio.EncoderBuffer) {
	dst.EncodeI32(w.min)
	dst.EncodeI32(w.max)
}

func (w *wrapTransform) clamp(pred []int32) []int32 {
	for i, p := range pred {
		w.clamped[i] = min(max(p, w.min), w.max)
	}
	return w.clamped
}

func (w *wrapTransform) correction(orig, pred, out []int32) {
	pred = w.clamp(pred)
	for i := range orig {
		c := int64(orig[i]) - int64(pred[i])
		if c < w.minCorr {
			c += w.maxDif
		} else if c > w.maxCorr {
			c -= w.maxDif
		}
		out[i] = int32(c)
	}
}

func (w *wrapTransform) original(pred, corr, out []int32) {
	pred = w.clamp(pred)
	for i := range corr {
		v := int64(pred[i]) + int64(corr[i])
		if v > int64(w.max) {
			v -= w.maxDif
		} else if v < int64(w.min) {
			v += w.maxDif
		}
		out[i] = int32(v)
	}
}

// predictor computes the prediction of entry i from data[:i*n], which
// holds already coded entries in traversal order.
type predictor struct {
	method PredictionMethod
	seq    *Sequence
	n      int
}

func (p *predictor) predict(data []int32, i int, out []int32) {
	if i == 0 || p.method == PredictionNone {
		clear(out)
		return
	}
	if p.method == PredictionParallelogram && p.parallelogram(data, i, out) {
		return
	}
	copy(out, data[(i-1)*p.n:i*p.n])
}

func (p *predictor) parallelogram(data []int32, i int, out []int32) bool {
	conn := p.seq.conn
	opp := conn.Opposite(p.seq.Corners[i])
	if opp == corner.InvalidCorner {
		return false
	}
	eo := p.seq.EntryOf(conn.Vertex(opp))
	en := p.seq.EntryOf(conn.Vertex(corner.Next(opp)))
	ep := p.seq.EntryOf(conn.Vertex(corner.Previous(opp)))
	if eo < 0 || en < 0 || ep < 0 || eo >= i || en >= i || ep >= i {
		return false
	}
	for c := range p.n {
		v := int64(data[en*p.n+c]) + int64(data[ep*p.n+c]) - int64(data[eo*p.n+c])
		out[c] = int32(min(max(v, math.MinInt32), math.MaxInt32))
	}
	return true
}

// computeCorrections returns the wrapped prediction residuals of data.
func computeCorrections(data []int32, p *predictor, w *wrapTransform) []int32 {
	n := p.n
	corr := make([]int32, len(data))
	for i := 0; i*n < len(data); i++ {
		p.predict(data, i, w.predicted)
		w.correction(data[i*n:(i+1)*n], w.predicted, corr[i*n:(i+1)*n])
	}
	return corr
}

// restoreValues inverts computeCorrections in place.
func restoreValues(corr []int32, p *predictor, w *wrapTransform) {
	n := p.n
	for i := 0; i*n < len(corr); i++ {
		p.predict(corr, i, w.predicted)
		w.original(w.predicted, corr[i*n:(i+1)*n], corr[i*n:(i+1)*n])
	}
}
