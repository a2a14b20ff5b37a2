package ops

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ankoh/dashql-sub001/bits"
	"github.com/stretchr/testify/require"
)

func TestMinMax(t *testing.T) {

	minVal := float64(0)
	maxVal := float64(7000)

	input := []float64{minVal, maxVal, 1, 2, 3, 4, 5, 6, 0}

	result := GetMaxMin(input)

	if result.Max != maxVal {
		t.Errorf("Expected %v but got %v", maxVal, result.Max)
	}

	if result.Min != minVal {
		t.Errorf("Expected %v but got %v", minVal, result.Min)
	}
}

func TestArgMinMaxRespectsValidity(t *testing.T) {
	input := []float64{-100, 42, 10, 10, 30, math.NaN()}

	valid := bits.NewFullBitfield(len(input))
	valid.Clear(0)

	minIdx, maxIdx := ArgMinMax(input, valid)
	require.Equal(t, 2, minIdx)
	require.Equal(t, 1, maxIdx)

	minIdx, maxIdx = ArgMinMax(input, bits.NewBitfield(len(input)))
	require.Equal(t, -1, minIdx)
	require.Equal(t, -1, maxIdx)

	minIdx, _ = ArgMinMax(input, nil)
	require.Equal(t, 0, minIdx)
}

func TestBoundsMorph(t *testing.T) {
	b := Bounds[int64]{Min: 5, Max: 10}
	b.Morph(Bounds[int64]{Min: -1, Max: 7})
	require.Equal(t, Bounds[int64]{Min: -1, Max: 10}, b)
}

func BenchmarkMinMaxRand(b *testing.B) {

	size := 40000

	input := make([]uint64, size)

	for i := 0; i < size; i++ {
		input[i] = uint64(rand.Int63n(50000))
	}

	var result Bounds[uint64]

	for b.Loop() {
		result = GetMaxMin(input)
	}

	b.Logf("min : %d, max : %d", result.Min, result.Max)
}
