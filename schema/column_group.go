package schema

import "github.com/apache/arrow-go/v18/arrow"

// ColumnGroup is the analysis classification of a single schema field.
// Implemented by RowNumberColumn, OrdinalColumn, StringColumn, ListColumn and SkippedColumn.
type ColumnGroup interface {
	Kind() ColumnKind
	FieldName() string

	isColumnGroup()
}

type (
	RowNumberColumn struct {
		RowNumberFieldName string
	}

	OrdinalStatsFields struct {
		CountField string
		MinField   string
		MaxField   string
	}

	OrdinalColumn struct {
		InputFieldName string
		InputFieldType arrow.DataType
		Nullable       bool

		// resolved by the table aggregation
		StatsFields *OrdinalStatsFields

		// resolved by the system column computation
		BinFieldName string
		BinCount     int
	}

	FrequentValueStatsFields struct {
		CountField         string
		DistinctCountField string
	}

	StringColumn struct {
		InputFieldName string
		InputFieldType arrow.DataType
		Nullable       bool

		StatsFields      *FrequentValueStatsFields
		ValueIDFieldName string
	}

	ListColumn struct {
		InputFieldName string
		InputFieldType arrow.DataType
		Nullable       bool

		StatsFields      *FrequentValueStatsFields
		ValueIDFieldName string
	}

	SkippedColumn struct {
		InputFieldName string
		InputFieldType arrow.DataType
		Nullable       bool
	}
)

func (RowNumberColumn) Kind() ColumnKind { return RowNumberColumnKind }
func (OrdinalColumn) Kind() ColumnKind   { return OrdinalColumnKind }
func (StringColumn) Kind() ColumnKind    { return StringColumnKind }
func (ListColumn) Kind() ColumnKind      { return ListColumnKind }
func (SkippedColumn) Kind() ColumnKind   { return SkippedColumnKind }

func (c RowNumberColumn) FieldName() string { return c.RowNumberFieldName }
func (c OrdinalColumn) FieldName() string   { return c.InputFieldName }
func (c StringColumn) FieldName() string    { return c.InputFieldName }
func (c ListColumn) FieldName() string      { return c.InputFieldName }
func (c SkippedColumn) FieldName() string   { return c.InputFieldName }

func (RowNumberColumn) isColumnGroup() {}
func (OrdinalColumn) isColumnGroup()   {}
func (StringColumn) isColumnGroup()    {}
func (ListColumn) isColumnGroup()      {}
func (SkippedColumn) isColumnGroup()   {}

// IsSummarized reports whether a group receives a per-column summary.
func IsSummarized(g ColumnGroup) bool {
	switch g.Kind() {
	case OrdinalColumnKind, StringColumnKind, ListColumnKind:
		return true
	default:
		return false
	}
}

// CountSummarized returns the number of groups that receive a per-column summary.
func CountSummarized(groups []ColumnGroup) int {
	n := 0
	for _, g := range groups {
		if IsSummarized(g) {
			n++
		}
	}
	return n
}
