package state

import (
	"maps"
	"slices"

	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
)

// HistogramFilter restricts an ordinal column to a brushed range of
// fractional bins.
type HistogramFilter struct {
	Selection [2]float64
	Filters   []transform.FilterTransform
}

// CrossFilters collects the brushes of all columns of a table, keyed by
// column id. The zero value holds no filters.
type CrossFilters struct {
	columns map[int]HistogramFilter
}

func (c *CrossFilters) Clone() *CrossFilters {
	if c == nil {
		return &CrossFilters{}
	}
	return &CrossFilters{columns: maps.Clone(c.columns)}
}

func (c *CrossFilters) Len() int {
	if c == nil {
		return 0
	}
	return len(c.columns)
}

// Equal compares the brushed selections.
func (c *CrossFilters) Equal(other *CrossFilters) bool {
	if c.Len() != other.Len() {
		return false
	}
	if c.Len() == 0 {
		return true
	}
	return maps.EqualFunc(c.columns, other.columns, func(a, b HistogramFilter) bool {
		return a.Selection == b.Selection
	})
}

// ContainsHistogramFilter reports whether the column is brushed with exactly
// brush. A nil brush asks whether the column is unfiltered.
func (c *CrossFilters) ContainsHistogramFilter(columnID int, brush *[2]float64) bool {
	var existing HistogramFilter
	ok := false
	if c != nil {
		existing, ok = c.columns[columnID]
	}
	if brush == nil {
		return !ok
	}
	return ok && existing.Selection == *brush
}

// AddHistogramFilter brushes the column with a range of fractional bins. A nil
// brush removes the filter of the column.
func (c *CrossFilters) AddHistogramFilter(columnID int, column schema.OrdinalColumn, brush *[2]float64) {
	if brush == nil {
		delete(c.columns, columnID)
		return
	}
	var filters []transform.FilterTransform
	if column.BinFieldName != "" {
		filters = []transform.FilterTransform{
			transform.Compare(column.BinFieldName, transform.GreaterEqual, brush[0]),
			transform.Compare(column.BinFieldName, transform.LessEqual, brush[1]),
		}
	}
	if c.columns == nil {
		c.columns = map[int]HistogramFilter{}
	}
	c.columns[columnID] = HistogramFilter{Selection: *brush, Filters: filters}
}

// FilterTransforms returns the filters of all brushes ordered by column id.
func (c *CrossFilters) FilterTransforms() []transform.FilterTransform {
	if c.Len() == 0 {
		return nil
	}
	var out []transform.FilterTransform
	for _, id := range slices.Sorted(maps.Keys(c.columns)) {
		out = append(out, c.columns[id].Filters...)
	}
	return out
}
