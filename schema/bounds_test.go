package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinMath(t *testing.T) {
	domain := BoundsFloat{Min: 10, Max: 42}

	require.Equal(t, 2.0, domain.BinWidth(16))
	require.Equal(t, 0.0, domain.FractionalBin(10, 16))
	require.Equal(t, 16.0, domain.FractionalBin(42, 16))
	require.Equal(t, 10.0, domain.FractionalBin(30, 16))

	require.Equal(t, 15, BinIndex(domain.FractionalBin(42, 16), 16))
	require.Equal(t, 0, BinIndex(-0.5, 16))
	require.Equal(t, 10, BinIndex(10.99, 16))

	require.Equal(t, 30.0, domain.BinLowerBound(10, 16))
	require.Equal(t, 32.0, domain.BinUpperBound(10, 16))
}

func TestBinMathDegenerateDomain(t *testing.T) {
	domain := BoundsFloat{Min: 7, Max: 7}
	require.Equal(t, 0.0, domain.FractionalBin(7, 16))
	require.Equal(t, 0, BinIndex(domain.FractionalBin(7, 16), 16))
	require.Equal(t, 0, BinIndex(3, 0))
}

func TestBoundsMorph(t *testing.T) {
	b := BoundsFloat{Min: 0, Max: 1}
	require.False(t, b.Morph(BoundsFloat{Min: 0.5, Max: 0.7}))
	require.True(t, b.Morph(BoundsFloat{Min: -1, Max: 0.7}))
	require.Equal(t, BoundsFloat{Min: -1, Max: 1}, b)
}
