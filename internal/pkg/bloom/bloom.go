package bloom

import (
	"hash/fnv"
	"math"
	"sync"
)

// Filter is an in-process bloom filter. A negative answer is definite, a
// positive one only means "look it up".
type Filter struct {
	bits      []uint64
	size      uint64
	hashCount uint64
	mutex     sync.RWMutex
}

func NewFilter(size, hashCount uint64) *Filter {
	if size == 0 {
		size = 64
	}
	if hashCount == 0 {
		hashCount = 1
	}

	return &Filter{
		bits:      make([]uint64, (size+63)/64),
		size:      size,
		hashCount: hashCount,
	}
}

func NewFilterWithExpectedItems(expectedItems uint64, falsePositiveProb float64) *Filter {
	m, k := OptimalParameters(expectedItems, falsePositiveProb)
	return NewFilter(m, k)
}

func (f *Filter) Add(item string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	h1, h2 := hashPair(item)
	for i := uint64(0); i < f.hashCount; i++ {
		pos := (h1 + i*h2) % f.size
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

func (f *Filter) Contains(item string) bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	h1, h2 := hashPair(item)
	for i := uint64(0); i < f.hashCount; i++ {
		pos := (h1 + i*h2) % f.size
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}

	return true
}

func (f *Filter) Clear() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.bits = make([]uint64, len(f.bits))
}

// Positions returns the k bit offsets for item in a filter of m bits. The
// Redis-backed filter uses it so both implementations agree on layout.
func Positions(item string, m, k uint64) []uint64 {
	h1, h2 := hashPair(item)
	out := make([]uint64, k)
	for i := uint64(0); i < k; i++ {
		out[i] = (h1 + i*h2) % m
	}
	return out
}

func hashPair(item string) (uint64, uint64) {
	a := fnv.New64a()
	a.Write([]byte(item))
	h1 := a.Sum64()

	b := fnv.New64()
	b.Write([]byte(item))
	h2 := b.Sum64() | 1

	return h1, h2
}

func OptimalParameters(expectedItems uint64, falsePositiveProb float64) (m, k uint64) {
	if expectedItems == 0 {
		expectedItems = 1
	}

	m = uint64(math.Ceil(-float64(expectedItems) * math.Log(falsePositiveProb) / math.Pow(math.Log(2), 2)))
	k = uint64(math.Max(1, math.Round(float64(m)/float64(expectedItems)*math.Log(2))))
	return m, k
}
