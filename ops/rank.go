package ops

import (
	"slices"

	"github.com/ankoh/dashql-sub001/bits"
	"golang.org/x/exp/constraints"
)

// DenseRank assigns 1-based dense ranks in ascending order.
// Invalid rows share the rank after the largest valid value.
func DenseRank[T constraints.Ordered](arr []T, valid *bits.Bitfield) []int64 {
	order := make([]int, 0, len(arr))
	for i := range arr {
		if valid == nil || valid.Get(i) {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case arr[a] < arr[b]:
			return -1
		case arr[a] > arr[b]:
			return 1
		default:
			return 0
		}
	})

	ranks := make([]int64, len(arr))
	rank := int64(0)
	for k, idx := range order {
		if k == 0 || arr[order[k-1]] != arr[idx] {
			rank++
		}
		ranks[idx] = rank
	}

	if len(order) != len(arr) {
		rank++
		for i := range arr {
			if !valid.Get(i) {
				ranks[i] = rank
			}
		}
	}
	return ranks
}
