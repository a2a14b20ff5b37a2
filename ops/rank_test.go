package ops

import (
	"testing"

	"github.com/ankoh/dashql-sub001/bits"
	"github.com/stretchr/testify/require"
)

func TestDenseRank(t *testing.T) {
	input := []string{"b", "a", "", "b", "c"}
	valid := bits.NewFullBitfield(len(input))
	valid.Clear(2)

	require.Equal(t, []int64{2, 1, 4, 2, 3}, DenseRank(input, valid))
	require.Equal(t, []int64{3, 2, 1, 3, 4}, DenseRank(input, nil))
	require.Empty(t, DenseRank([]int64{}, nil))
}
