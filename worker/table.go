package worker

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// table is the mutable working set of a transform. Every column holds one
// reference owned by the table.
type table struct {
	fields []arrow.Field
	cols   []arrow.Array
	rows   int
}

func tableFromRecord(rec arrow.Record) *table {
	t := &table{rows: int(rec.NumRows())}
	for i, f := range rec.Schema().Fields() {
		col := rec.Column(i)
		col.Retain()
		t.fields = append(t.fields, f)
		t.cols = append(t.cols, col)
	}
	return t
}

func (t *table) release() {
	for _, col := range t.cols {
		col.Release()
	}
	t.cols = nil
	t.fields = nil
}

func (t *table) index(name string) int {
	for i, f := range t.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (t *table) lookup(stage string, name string) (arrow.Array, arrow.Field, error) {
	idx := t.index(name)
	if idx < 0 {
		return nil, arrow.Field{}, transformErr(stage, "field `%s` not found", name)
	}
	return t.cols[idx], t.fields[idx], nil
}

// add takes ownership of col.
func (t *table) add(stage string, field arrow.Field, col arrow.Array) error {
	if t.index(field.Name) >= 0 {
		col.Release()
		return transformErr(stage, "field `%s` already exists", field.Name)
	}
	t.fields = append(t.fields, field)
	t.cols = append(t.cols, col)
	return nil
}

// take gathers rows by index into a new table. t stays untouched.
func (t *table) take(ctx context.Context, indices arrow.Array) (*table, error) {
	out := &table{rows: indices.Len()}
	for i, col := range t.cols {
		taken, err := compute.TakeArray(ctx, col, indices)
		if err != nil {
			out.release()
			return nil, fmt.Errorf("unable to take rows of `%s`: %w", t.fields[i].Name, err)
		}
		out.fields = append(out.fields, t.fields[i])
		out.cols = append(out.cols, taken)
	}
	return out, nil
}

// toRecord moves the columns into a record.
func (t *table) toRecord() arrow.Record {
	rec := array.NewRecord(arrow.NewSchema(t.fields, nil), t.cols, int64(t.rows))
	t.release()
	return rec
}

func recordColumn(rec arrow.Record, name string) (arrow.Array, arrow.Field, bool) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, arrow.Field{}, false
	}
	return rec.Column(indices[0]), rec.Schema().Field(indices[0]), true
}

func int64Array(mem memory.Allocator, values []int64) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// indexArray builds take indices; negative positions become nulls.
func indexArray(mem memory.Allocator, positions []int) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Reserve(len(positions))
	for _, p := range positions {
		if p < 0 {
			b.AppendNull()
		} else {
			b.Append(int64(p))
		}
	}
	return b.NewArray()
}

func float64Array(mem memory.Allocator, values []float64, valid []bool) arrow.Array {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}
