package ops

import (
	"github.com/ankoh/dashql-sub001/bits"
)

// CompareValuesAreSmaller sets bit i of out when arr[i] < cmp.
func CompareValuesAreSmaller[T NumericTypes](arr []T, cmp T, out *bits.Bitfield) int {
	n := len(arr)
	filled := 0
	i := 0

	for ; i+3 < n; i += 4 {
		a0, a1 := arr[i], arr[i+1]
		a2, a3 := arr[i+2], arr[i+3]
		if a0 < cmp {
			out.Set(i)
			filled++
		}
		if a1 < cmp {
			out.Set(i + 1)
			filled++
		}
		if a2 < cmp {
			out.Set(i + 2)
			filled++
		}
		if a3 < cmp {
			out.Set(i + 3)
			filled++
		}
	}

	// Tail element
	for ; i < n; i++ {
		if arr[i] < cmp {
			out.Set(i)
			filled++
		}
	}
	return filled
}

func CompareValuesAreSmallerOrEqual[T NumericTypes](arr []T, cmp T, out *bits.Bitfield) int {
	return compareWith(arr, out, func(v T) bool { return v <= cmp })
}

func CompareValuesAreBigger[T NumericTypes](arr []T, cmp T, out *bits.Bitfield) int {
	n := len(arr)
	filled := 0
	i := 0

	for ; i+3 < n; i += 4 {
		a0, a1 := arr[i], arr[i+1]
		a2, a3 := arr[i+2], arr[i+3]
		if a0 > cmp {
			out.Set(i)
			filled++
		}
		if a1 > cmp {
			out.Set(i + 1)
			filled++
		}
		if a2 > cmp {
			out.Set(i + 2)
			filled++
		}
		if a3 > cmp {
			out.Set(i + 3)
			filled++
		}
	}

	for ; i < n; i++ {
		if arr[i] > cmp {
			out.Set(i)
			filled++
		}
	}
	return filled
}

func CompareValuesAreBiggerOrEqual[T NumericTypes](arr []T, cmp T, out *bits.Bitfield) int {
	return compareWith(arr, out, func(v T) bool { return v >= cmp })
}

func CompareValuesAreEqual[T comparable](arr []T, cmp T, out *bits.Bitfield) int {
	return compareWith(arr, out, func(v T) bool { return v == cmp })
}

func compareWith[T any](arr []T, out *bits.Bitfield, pred func(T) bool) int {
	filled := 0
	for i, v := range arr {
		if pred(v) {
			out.Set(i)
			filled++
		}
	}
	return filled
}
