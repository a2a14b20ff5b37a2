package state

import (
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// TableSummary is the single-row table-level aggregation.
type TableSummary struct {
	DataFrame          *worker.DataFrame
	Table              arrow.Record
	TableFieldsByName  map[string]int
	CountStarFieldName string
}

func (s *TableSummary) frame() *worker.DataFrame {
	if s == nil {
		return nil
	}
	return s.DataFrame
}

// Int64Field reads a single-row Int64 aggregate, null reads as 0.
func (s *TableSummary) Int64Field(name string) (int64, bool) {
	idx, ok := s.TableFieldsByName[name]
	if !ok || s.Table.NumRows() == 0 {
		return 0, false
	}
	col, ok := s.Table.Column(idx).(*array.Int64)
	if !ok {
		return 0, false
	}
	if col.IsNull(0) {
		return 0, true
	}
	return col.Value(0), true
}

func (s *TableSummary) CountStar() int64 {
	n, _ := s.Int64Field(s.CountStarFieldName)
	return n
}

// FilterTable holds the row numbers that pass the current filters.
type FilterTable struct {
	DataFrame          *worker.DataFrame
	DataTable          arrow.Record
	RowNumberFieldName string
	InputEpoch         int
}

func (f *FilterTable) frame() *worker.DataFrame {
	if f == nil {
		return nil
	}
	return f.DataFrame
}

type OrderedTable struct {
	DataFrame   *worker.DataFrame
	DataTable   arrow.Record
	Constraints []transform.OrderByConstraint
}

// SystemColumns is the input table extended by row numbers, value ids and bins.
type SystemColumns struct {
	DataFrame          *worker.DataFrame
	DataTable          arrow.Record
	ColumnGroups       []schema.ColumnGroup
	RowNumberFieldName string
}

type OrdinalColumnAnalysis struct {
	CountNotNull   int64
	CountNull      int64
	MinValue       string
	MaxValue       string
	BinCount       int
	BinValueCounts []int64
	BinPercentages []float64
	BinLowerBounds []string
}

type FrequentValueAnalysis struct {
	CountNotNull             int64
	CountNull                int64
	CountDistinct            int64
	IsUnique                 bool
	FrequentValueStrings     []string
	FrequentValueIsNull      []bool
	FrequentValueIDs         []int64
	FrequentValueCounts      []int64
	FrequentValuePercentages []float64
}

// FilteredColumnAnalysis is a column histogram restricted to filtered rows.
type FilteredColumnAnalysis struct {
	DataFrame   *worker.DataFrame
	Table       arrow.Record
	FilterEpoch int
	Counts      []int64
	Percentages []float64
}

func (f *FilteredColumnAnalysis) frame() *worker.DataFrame {
	if f == nil {
		return nil
	}
	return f.DataFrame
}

// ColumnAggregation is the per-column summary. Implemented by
// OrdinalColumnAggregation, StringColumnAggregation and ListColumnAggregation.
type ColumnAggregation interface {
	Kind() schema.ColumnKind
	DataFrames() []*worker.DataFrame
	FilteredAnalysis() *FilteredColumnAnalysis
	WithFiltered(f *FilteredColumnAnalysis) ColumnAggregation

	isColumnAggregation()
}

type (
	OrdinalColumnAggregation struct {
		ColumnID        int
		Column          schema.OrdinalColumn
		BinnedDataFrame *worker.DataFrame
		BinnedValues    arrow.Record
		Analysis        OrdinalColumnAnalysis
		Filtered        *FilteredColumnAnalysis
	}

	StringColumnAggregation struct {
		ColumnID                int
		Column                  schema.StringColumn
		FrequentValuesDataFrame *worker.DataFrame
		FrequentValues          arrow.Record
		Analysis                FrequentValueAnalysis
		Filtered                *FilteredColumnAnalysis
	}

	ListColumnAggregation struct {
		ColumnID                int
		Column                  schema.ListColumn
		FrequentValuesDataFrame *worker.DataFrame
		FrequentValues          arrow.Record
		Analysis                FrequentValueAnalysis
		Filtered                *FilteredColumnAnalysis
	}
)

func (OrdinalColumnAggregation) Kind() schema.ColumnKind { return schema.OrdinalColumnKind }
func (StringColumnAggregation) Kind() schema.ColumnKind  { return schema.StringColumnKind }
func (ListColumnAggregation) Kind() schema.ColumnKind    { return schema.ListColumnKind }

func (a OrdinalColumnAggregation) DataFrames() []*worker.DataFrame {
	return frames(a.BinnedDataFrame, a.Filtered.frame())
}

func (a StringColumnAggregation) DataFrames() []*worker.DataFrame {
	return frames(a.FrequentValuesDataFrame, a.Filtered.frame())
}

func (a ListColumnAggregation) DataFrames() []*worker.DataFrame {
	return frames(a.FrequentValuesDataFrame, a.Filtered.frame())
}

func (a OrdinalColumnAggregation) FilteredAnalysis() *FilteredColumnAnalysis { return a.Filtered }
func (a StringColumnAggregation) FilteredAnalysis() *FilteredColumnAnalysis  { return a.Filtered }
func (a ListColumnAggregation) FilteredAnalysis() *FilteredColumnAnalysis    { return a.Filtered }

func (a OrdinalColumnAggregation) WithFiltered(f *FilteredColumnAnalysis) ColumnAggregation {
	a.Filtered = f
	return a
}

func (a StringColumnAggregation) WithFiltered(f *FilteredColumnAnalysis) ColumnAggregation {
	a.Filtered = f
	return a
}

func (a ListColumnAggregation) WithFiltered(f *FilteredColumnAnalysis) ColumnAggregation {
	a.Filtered = f
	return a
}

func (OrdinalColumnAggregation) isColumnAggregation() {}
func (StringColumnAggregation) isColumnAggregation()  {}
func (ListColumnAggregation) isColumnAggregation()    {}
