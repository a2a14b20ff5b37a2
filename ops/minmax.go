package ops

import (
	"github.com/ankoh/dashql-sub001/bits"
)

type Bounds[T NumericTypes] struct {
	Min T
	Max T
}

func (b *Bounds[T]) Morph(other Bounds[T]) {
	if other.Min < b.Min {
		b.Min = other.Min
	}
	if other.Max > b.Max {
		b.Max = other.Max
	}
}

// ArgMinMax returns the positions of the smallest and largest valid values.
// Both are -1 when no row is valid. A nil mask treats every row as valid.
// The first occurrence wins on ties.
func ArgMinMax[T NumericTypes](arr []T, valid *bits.Bitfield) (minIdx int, maxIdx int) {
	minIdx, maxIdx = -1, -1

	for i, v := range arr {
		if valid != nil && !valid.Get(i) {
			continue
		}
		if v != v {
			// NaN
			continue
		}
		if minIdx < 0 {
			minIdx, maxIdx = i, i
			continue
		}
		if v < arr[minIdx] {
			minIdx = i
		}
		if v > arr[maxIdx] {
			maxIdx = i
		}
	}
	return
}

func GetMaxMin[T NumericTypes](arr []T) Bounds[T] {

	resultBounds := Bounds[T]{
		Min: arr[0],
		Max: arr[0],
	}

	for _, v := range arr[1:] {
		if v < resultBounds.Min {
			resultBounds.Min = v
		}
		if v > resultBounds.Max {
			resultBounds.Max = v
		}
	}
	return resultBounds
}
