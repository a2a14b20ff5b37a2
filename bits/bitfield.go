package bits

import "math/bits"

// Bitfield is a row selection mask sized for a whole table.
type Bitfield struct {
	words []uint64
	size  int
}

func NewBitfield(size int) *Bitfield {
	return &Bitfield{
		words: make([]uint64, (size+63)>>6),
		size:  size,
	}
}

// NewFullBitfield returns a mask with every row selected.
func NewFullBitfield(size int) *Bitfield {
	b := NewBitfield(size)
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	b.clearTail()
	return b
}

func (b *Bitfield) Len() int {
	return b.size
}

func (b *Bitfield) Set(bit int) {
	word := bit >> 6 // bit / 64
	mask := uint64(1) << (bit & 63)
	b.words[word] |= mask
}

func (b *Bitfield) Clear(bit int) {
	word := bit >> 6
	mask := uint64(1) << (bit & 63)
	b.words[word] &^= mask
}

func (b *Bitfield) SetTo(bit int, v bool) {
	word := bit >> 6
	mask := uint64(1) << (bit & 63)
	if v {
		b.words[word] |= mask // set
	} else {
		b.words[word] &^= mask // clear
	}
}

func (b *Bitfield) Get(bit int) bool {
	word := bit >> 6
	return (b.words[word]>>(bit&63))&1 == 1
}

func (b *Bitfield) ToIndices(out []int64) []int64 {
	for wi, w := range b.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, int64(wi*64+tz))
			w &= w - 1 // clear lowest set bit
		}
	}
	return out
}

func (b *Bitfield) Any() bool {
	for _, w := range b.words {
		if w != 0 {
			return true
		}
	}
	return false
}

func (b *Bitfield) Count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// And intersects b with other in place. Both masks must have the same size.
func (b *Bitfield) And(other *Bitfield) {
	if other.size != b.size {
		panic("bitfield size mismatch")
	}
	for i := range b.words {
		b.words[i] &= other.words[i]
	}
}

func (b *Bitfield) Or(other *Bitfield) {
	if other.size != b.size {
		panic("bitfield size mismatch")
	}
	for i := range b.words {
		b.words[i] |= other.words[i]
	}
}

func (b *Bitfield) clearTail() {
	if rem := b.size & 63; rem != 0 {
		b.words[len(b.words)-1] &= (uint64(1) << rem) - 1
	}
}
