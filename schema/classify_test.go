package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
)

func TestClassifyColumns(t *testing.T) {
	s := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "flag", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "created", Type: arrow.FixedWidthTypes.Timestamp_ms},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String)},
		{Name: "blob", Type: arrow.BinaryTypes.Binary},
		{Name: "nested", Type: arrow.StructOf(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int32})},
	}, nil)

	groups := ClassifyColumns(s)
	require.Len(t, groups, 8)

	kinds := make([]ColumnKind, len(groups))
	for i, g := range groups {
		kinds[i] = g.Kind()
		require.Equal(t, s.Field(i).Name, g.FieldName())
	}
	require.Equal(t, []ColumnKind{
		OrdinalColumnKind,
		OrdinalColumnKind,
		OrdinalColumnKind,
		OrdinalColumnKind,
		StringColumnKind,
		ListColumnKind,
		SkippedColumnKind,
		SkippedColumnKind,
	}, kinds)

	score := groups[1].(OrdinalColumn)
	require.True(t, score.Nullable)
	require.Nil(t, score.StatsFields)
	require.Equal(t, 6, CountSummarized(groups))
}

func TestClassifyColumnsIsIdempotent(t *testing.T) {
	s := arrow.NewSchema([]arrow.Field{
		{Name: "rowNumber", Type: arrow.PrimitiveTypes.Int32},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
		{Name: "name", Type: arrow.BinaryTypes.LargeString},
	}, nil)

	first := ClassifyColumnsWithRowNumber(s, "rowNumber")
	second := ClassifyColumnsWithRowNumber(s, "rowNumber")
	require.Equal(t, first, second)
	require.Equal(t, RowNumberColumn{RowNumberFieldName: "rowNumber"}, first[0])
	require.Equal(t, 2, CountSummarized(first))
}

func TestClassifyEmptySchema(t *testing.T) {
	require.Empty(t, ClassifyColumns(arrow.NewSchema(nil, nil)))
}

func TestColumnKindString(t *testing.T) {
	require.Equal(t, "Ordinal", OrdinalColumnKind.String())
	require.Panics(t, func() { _ = ColumnKind(99).String() })
}
