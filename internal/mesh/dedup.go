package mesh

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// hashIndex finds previously seen keys by their xxhash. Colliding keys
// are told apart by equal.
type hashIndex struct {
	buckets map[uint64][]uint32
	buf     []byte
}

func newHashIndex(capacity int) *hashIndex {
	return &hashIndex{buckets: make(map[uint64][]uint32, capacity)}
}

// lookup returns the id stored for the key in buf, or stores next under
// it and returns next.
func (h *hashIndex) lookup(next uint32, equal func(id uint32) bool) uint32 {
	sum := xxhash.Sum64(h.buf)
	for _, id := range h.buckets[sum] {
		if equal(id) {
			return id
		}
	}
	h.buckets[sum] = append(h.buckets[sum], next)
	return next
}

func sameBits(a, b []float32) bool {
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}

// DeduplicateValues merges bit-identical values of a and rewrites its
// point mapping for numPoints points. It returns the number of values
// left.
func (a *Attribute) DeduplicateValues(numPoints int) int {
	n := a.NumValues()
	nc := a.NumComponents
	idx := newHashIndex(n)
	remap := make([]uint32, n)
	unique := make([]float32, 0, len(a.Values))
	for v := range n {
		vals := a.Value(uint32(v))
		idx.buf = idx.buf[:0]
		for _, f := range vals {
			idx.buf = binary.LittleEndian.AppendUint32(idx.buf, math.Float32bits(f))
		}
		next := uint32(len(unique) / nc)
		id := idx.lookup(next, func(id uint32) bool {
			return sameBits(unique[int(id)*nc:int(id+1)*nc], vals)
		})
		if id == next {
			unique = append(unique, vals...)
		}
		remap[v] = id
	}
	ptv := make([]uint32, numPoints)
	for p := range ptv {
		ptv[p] = remap[a.ValueIndex(PointIndex(p))]
	}
	a.Values = unique
	a.PointToValue = ptv
	return len(unique) / nc
}

// DeduplicatePoints merges points whose values agree in every attribute
// and remaps the faces. Attribute values should be deduplicated first.
// It returns the number of points removed.
func (m *Mesh) DeduplicatePoints() int {
	numAttrs := len(m.Attributes)
	idx := newHashIndex(m.NumPoints)
	keys := make([]uint32, 0, m.NumPoints*numAttrs)
	pointMap := make([]PointIndex, m.NumPoints)
	var firstPoint []PointIndex
	for p := range m.NumPoints {
		idx.buf = idx.buf[:0]
		start := len(keys)
		for _, a := range m.Attributes {
			v := a.ValueIndex(PointIndex(p))
			keys = append(keys, v)
			idx.buf = binary.LittleEndian.AppendUint32(idx.buf, v)
		}
		key := keys[start:]
		next := uint32(len(firstPoint))
		id := idx.lookup(next, func(id uint32) bool {
			for i, v := range key {
				if keys[int(id)*numAttrs+i] != v {
					return false
				}
			}
			return true
		})
		if id == next {
			firstPoint = append(firstPoint, PointIndex(p))
		} else {
			keys = keys[:start]
		}
		pointMap[p] = id
	}
	removed := m.NumPoints - len(firstPoint)
	if removed == 0 {
		return 0
	}
	for _, a := range m.Attributes {
		ptv := make([]uint32, len(firstPoint))
		for i, p := range firstPoint {
			ptv[i] = a.ValueIndex(p)
		}
		a.PointToValue = ptv
	}
	for i, f := range m.Faces {
		m.Faces[i] = Face{pointMap[f[0]], pointMap[f[1]], pointMap[f[2]]}
	}
	m.NumPoints = len(firstPoint)
	return removed
}
