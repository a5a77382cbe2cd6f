// Package pool keeps bucketed sync.Pool instances of scratch slices so
// repeated encodes and decodes reuse their output and symbol buffers.
package pool

import "sync"

// Size classes, in elements.
const (
	Size256 = 256
	Size4K  = 4096
	Size64K = 65536
	Size1M  = 1 << 20
)

var sizes = [...]int{Size256, Size4K, Size64K, Size1M}

// bucketIndex returns the class that holds slices of n elements, or -1
// when n is larger than every class.
func bucketIndex(n int) int {
	for i, s := range sizes {
		if n <= s {
			return i
		}
	}
	return -1
}

// buckets pools slices of T by size class.
type buckets[T any] struct {
	pools [len(sizes)]sync.Pool
}

func (b *buckets[T]) get(n int) []T {
	idx := bucketIndex(n)
	if idx < 0 {
		return make([]T, n)
	}
	if p, ok := b.pools[idx].Get().(*[]T); ok && cap(*p) >= n {
		return (*p)[:n]
	}
	return make([]T, n, sizes[idx])
}

func (b *buckets[T]) put(s []T) {
	c := cap(s)
	if c < Size256 {
		return
	}
	// A slice goes to the largest class it can fully serve.
	idx := len(sizes) - 1
	for idx >= 0 && sizes[idx] > c {
		idx--
	}
	s = s[:0]
	b.pools[idx].Put(&s)
}

var (
	bytePool   buckets[byte]
	uint32Pool buckets[uint32]
)

// Get returns a byte slice of length size. The caller should Put it back
// when done.
func Get(size int) []byte { return bytePool.get(size) }

// Put returns b to the pool. Slices below the smallest class are dropped.
func Put(b []byte) { bytePool.put(b) }

// GetUint32 returns a zeroed uint32 slice of the given length.
func GetUint32(length int) []uint32 {
	s := uint32Pool.get(length)
	clear(s)
	return s
}

// PutUint32 returns s to the pool.
func PutUint32(s []uint32) { uint32Pool.put(s) }
