package state

import (
	"testing"

	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
)

func TestCrossFilters(t *testing.T) {
	score := schema.OrdinalColumn{InputFieldName: "score", InputFieldType: arrow.PrimitiveTypes.Float64, BinFieldName: "_1_bin"}
	age := schema.OrdinalColumn{InputFieldName: "age", InputFieldType: arrow.PrimitiveTypes.Float64, BinFieldName: "_2_bin"}

	var filters CrossFilters
	require.Empty(t, filters.FilterTransforms())
	require.True(t, filters.ContainsHistogramFilter(1, nil))

	filters.AddHistogramFilter(2, age, &[2]float64{0, 1.5})
	filters.AddHistogramFilter(1, score, &[2]float64{2, 3})
	require.True(t, filters.ContainsHistogramFilter(1, &[2]float64{2, 3}))
	require.False(t, filters.ContainsHistogramFilter(1, &[2]float64{2, 4}))
	require.False(t, filters.ContainsHistogramFilter(1, nil))
	require.False(t, filters.ContainsHistogramFilter(3, &[2]float64{2, 3}))

	require.Equal(t, []transform.FilterTransform{
		transform.Compare("_1_bin", transform.GreaterEqual, 2),
		transform.Compare("_1_bin", transform.LessEqual, 3),
		transform.Compare("_2_bin", transform.GreaterEqual, 0),
		transform.Compare("_2_bin", transform.LessEqual, 1.5),
	}, filters.FilterTransforms())

	copied := filters.Clone()
	require.True(t, copied.Equal(&filters))
	copied.AddHistogramFilter(2, age, &[2]float64{1, 1.5})
	require.False(t, copied.Equal(&filters))
	require.True(t, filters.ContainsHistogramFilter(2, &[2]float64{0, 1.5}))

	copied.AddHistogramFilter(2, age, nil)
	require.Equal(t, 1, copied.Len())
	require.True(t, copied.ContainsHistogramFilter(2, nil))
	require.Len(t, copied.FilterTransforms(), 2)

	var nilFilters *CrossFilters
	require.True(t, nilFilters.Equal(&CrossFilters{}))
	require.Nil(t, nilFilters.FilterTransforms())
}

func TestCrossFilterWithoutBinField(t *testing.T) {
	var filters CrossFilters
	filters.AddHistogramFilter(1, schema.OrdinalColumn{InputFieldName: "score"}, &[2]float64{0, 1})
	require.True(t, filters.ContainsHistogramFilter(1, &[2]float64{0, 1}))
	require.Empty(t, filters.FilterTransforms())
}
