package schema

import "math"

// BoundsFloat is the value domain of an ordinal column, widened to float64.
type BoundsFloat struct {
	Min float64
	Max float64
}

func (b *BoundsFloat) Morph(other BoundsFloat) bool {

	changes := 0

	if other.Min < b.Min {
		b.Min = other.Min
		changes += 1
	}
	if other.Max > b.Max {
		b.Max = other.Max
		changes += 1
	}

	return changes != 0
}

func (b BoundsFloat) BinWidth(binCount int) float64 {
	return (b.Max - b.Min) / float64(max(1, binCount))
}

// FractionalBin maps v into [0, binCount]. A degenerate domain maps everything to 0.
func (b BoundsFloat) FractionalBin(v float64, binCount int) float64 {
	width := b.BinWidth(binCount)
	if width == 0 || math.IsNaN(width) {
		return 0
	}
	return (v - b.Min) / width
}

func (b BoundsFloat) BinLowerBound(bin int, binCount int) float64 {
	return b.Min + float64(bin)*b.BinWidth(binCount)
}

func (b BoundsFloat) BinUpperBound(bin int, binCount int) float64 {
	return b.Min + float64(bin+1)*b.BinWidth(binCount)
}

// BinIndex floors a fractional bin and clamps it to [0, binCount-1].
func BinIndex(fractional float64, binCount int) int {
	if math.IsNaN(fractional) {
		return 0
	}
	idx := math.Floor(fractional)
	if idx < 0 {
		return 0
	}
	if upper := float64(max(1, binCount) - 1); idx > upper {
		return int(upper)
	}
	return int(idx)
}
