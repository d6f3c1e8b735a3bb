package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int64
	}

	// Bits is a dense set of small non-negative keys.
	// Range visits keys in ascending order.
	// Values share storage like slices do, use Copy to fork.
	Bits[K Key] struct {
		b []uint64
	}
)

var zeros = [8]uint64{}

func MakeBits[K Key](keys ...K) Bits[K] {
	var s Bits[K]

	for _, k := range keys {
		s.Set(k)
	}

	return s
}

func (s *Bits[K]) Copy() Bits[K] {
	c := MakeBits[K]()

	c.grow(len(s.b) - 1)
	copy(c.b, s.b)

	return c
}

func (s *Bits[K]) Set(k K) {
	i, j := s.ij(k)

	s.grow(i)

	s.b[i] |= 1 << j
}

func (s *Bits[K]) IsSet(k K) bool {
	i, j := s.ij(k)

	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

func (s *Bits[K]) Clear(k K) {
	i, j := s.ij(k)

	if i >= len(s.b) {
		return
	}

	s.b[i] &^= 1 << j
}

// Merge adds all keys of x to s.
func (s *Bits[K]) Merge(x Bits[K]) {
	s.grow(len(x.b) - 1)

	for i, x := range x.b {
		s.b[i] |= x
	}
}

// Substract removes all keys of x from s.
func (s *Bits[K]) Substract(x Bits[K]) {
	n := len(s.b)
	if m := len(x.b); m < n {
		n = m
	}

	for i, x := range x.b[:n] {
		s.b[i] &^= x
	}
}

func (s *Bits[K]) Equal(x Bits[K]) bool {
	n := len(s.b)
	if len(x.b) > n {
		n = len(x.b)
	}

	for i := 0; i < n; i++ {
		if s.word(i) != x.word(i) {
			return false
		}
	}

	return true
}

func (s *Bits[K]) Size() (r int) {
	for _, c := range s.b {
		r += bits.OnesCount64(c)
	}

	return r
}

func (s *Bits[K]) Range(f func(k K) bool) {
	for i, x := range s.b {
		for x != 0 {
			j := bits.TrailingZeros64(x)
			x &^= 1 << j

			if !f(K(i*64 + j)) {
				return
			}
		}
	}
}

func (s *Bits[K]) Keys() []K {
	r := make([]K, 0, s.Size())

	s.Range(func(k K) bool {
		r = append(r, k)
		return true
	})

	return r
}

func (s *Bits[K]) First() K {
	for i, x := range s.b {
		if x != 0 {
			return K(i*64 + bits.TrailingZeros64(x))
		}
	}

	return -1
}

func (s *Bits[K]) Reset() {
	for i := 0; i < len(s.b); {
		i += copy(s.b[i:], zeros[:])
	}
}

func (s Bits[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func (s *Bits[K]) word(i int) uint64 {
	if i < len(s.b) {
		return s.b[i]
	}

	return 0
}

func (s *Bits[K]) ij(k K) (i int, j int) {
	if k < 0 {
		panic(k)
	}

	p := int(k)
	i, j = p/64, p%64

	return i, j
}

func (s *Bits[K]) grow(i int) {
	for i >= len(s.b) {
		s.b = append(s.b, 0)
	}
}
