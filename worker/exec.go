package worker

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strconv"

	"github.com/ankoh/dashql-sub001/bits"
	"github.com/ankoh/dashql-sub001/ops"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

type executor struct {
	ctx context.Context
	mem memory.Allocator
	aux []arrow.Record
}

// execute evaluates desc against input. The returned record is owned by the caller.
func execute(ctx context.Context, mem memory.Allocator, input arrow.Record, aux []arrow.Record, desc *transform.DataFrameTransform) (arrow.Record, error) {
	e := &executor{
		ctx: compute.WithAllocator(ctx, mem),
		mem: mem,
		aux: aux,
	}

	t := tableFromRecord(input)
	defer func() { t.release() }()

	if desc.RowNumber != nil {
		if err := e.rowNumber(t, desc.RowNumber); err != nil {
			return nil, err
		}
	}
	for _, v := range desc.ValueIdentifiers {
		if err := e.valueIdentifiers(t, v); err != nil {
			return nil, err
		}
	}
	for _, b := range desc.Binning {
		if err := e.binning(t, b); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stages := []struct {
		enabled bool
		run     func(*table) (*table, error)
	}{
		{len(desc.Filters) > 0, func(t *table) (*table, error) { return e.filter(t, desc.Filters) }},
		{desc.GroupBy != nil, func(t *table) (*table, error) { return e.groupBy(t, desc.GroupBy) }},
		{desc.OrderBy != nil, func(t *table) (*table, error) { return e.orderBy(t, desc.OrderBy) }},
		{desc.Projection != nil, func(t *table) (*table, error) { return e.project(t, desc.Projection.Fields) }},
	}
	for _, stage := range stages {
		if !stage.enabled {
			continue
		}
		next, err := stage.run(t)
		if err != nil {
			return nil, err
		}
		if next != t {
			t.release()
			t = next
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return t.toRecord(), nil
}

func (e *executor) rowNumber(t *table, r *transform.RowNumberTransform) error {
	values := make([]int64, t.rows)
	for i := range values {
		values[i] = int64(i)
	}
	return t.add("row_number", arrow.Field{Name: r.OutputAlias, Type: arrow.PrimitiveTypes.Int64}, int64Array(e.mem, values))
}

func (e *executor) valueIdentifiers(t *table, v transform.ValueIdentifierTransform) error {
	const stage = "value_identifiers"

	col, field, err := t.lookup(stage, v.FieldName)
	if err != nil {
		return err
	}

	var ranks []int64
	if schema.KindOf(field.Type) == schema.OrdinalColumnKind {
		data, err := schema.ReadOrdinal(col)
		if err != nil {
			return &TransformError{Stage: stage, Err: err}
		}
		ranks = ops.DenseRank(data.Values, data.Valid)
	} else {
		keys, valid := schema.ReadKeys(col)
		ranks = ops.DenseRank(keys, valid)
	}
	return t.add(stage, arrow.Field{Name: v.OutputAlias, Type: arrow.PrimitiveTypes.Int64}, int64Array(e.mem, ranks))
}

func (e *executor) binning(t *table, b transform.BinningTransform) error {
	const stage = "binning"

	col, field, err := t.lookup(stage, b.FieldName)
	if err != nil {
		return err
	}
	domain, ok, err := e.domain(stage, b.StatsTableID, b.StatsMinimumFieldName, b.StatsMaximumFieldName, field.Type)
	if err != nil {
		return err
	}
	data, err := schema.ReadOrdinal(col)
	if err != nil {
		return &TransformError{Stage: stage, Err: err}
	}

	values := make([]float64, t.rows)
	valid := make([]bool, t.rows)
	for i, v := range data.Values {
		if !ok || !data.Valid.Get(i) {
			continue
		}
		values[i] = domain.FractionalBin(v, b.BinCount)
		valid[i] = true
	}
	return t.add(stage, arrow.Field{Name: b.OutputAlias, Type: arrow.PrimitiveTypes.Float64, Nullable: true}, float64Array(e.mem, values, valid))
}

func (e *executor) auxTable(stage string, id int) (arrow.Record, error) {
	if id < 0 || id >= len(e.aux) {
		return nil, &TransformError{Stage: stage, Err: ErrAuxiliaryFrameIndex}
	}
	return e.aux[id], nil
}

// domain reads the min/max domain from a 1-row stats table. ok is false when
// the domain is null.
func (e *executor) domain(stage string, statsID int, minField, maxField string, valueType arrow.DataType) (schema.BoundsFloat, bool, error) {
	stats, err := e.auxTable(stage, statsID)
	if err != nil {
		return schema.BoundsFloat{}, false, err
	}
	if stats.NumRows() != 1 {
		return schema.BoundsFloat{}, false, transformErr(stage, "stats table must have exactly 1 row, got %d", stats.NumRows())
	}

	minCol, minF, found := recordColumn(stats, minField)
	if !found {
		return schema.BoundsFloat{}, false, transformErr(stage, "stats field `%s` not found", minField)
	}
	maxCol, maxF, found := recordColumn(stats, maxField)
	if !found {
		return schema.BoundsFloat{}, false, transformErr(stage, "stats field `%s` not found", maxField)
	}
	if valueType != nil && (!arrow.TypeEqual(minF.Type, valueType) || !arrow.TypeEqual(maxF.Type, valueType)) {
		return schema.BoundsFloat{}, false, transformErr(stage, "stats fields have type %s/%s, value has %s", minF.Type, maxF.Type, valueType)
	}

	minData, err := schema.ReadOrdinal(minCol)
	if err != nil {
		return schema.BoundsFloat{}, false, &TransformError{Stage: stage, Err: err}
	}
	maxData, err := schema.ReadOrdinal(maxCol)
	if err != nil {
		return schema.BoundsFloat{}, false, &TransformError{Stage: stage, Err: err}
	}
	if !minData.Valid.Get(0) || !maxData.Valid.Get(0) {
		return schema.BoundsFloat{}, false, nil
	}
	return schema.BoundsFloat{Min: minData.Values[0], Max: maxData.Values[0]}, true, nil
}

func (e *executor) filter(t *table, filters []transform.FilterTransform) (*table, error) {
	const stage = "filter"

	mask := bits.NewFullBitfield(t.rows)

	for _, f := range filters {
		col, field, err := t.lookup(stage, f.FieldName)
		if err != nil {
			return nil, err
		}
		sel := bits.NewBitfield(t.rows)

		switch {
		case f.Operator == transform.SemiJoinField:
			if err := e.semiJoin(col, field, f.SemiJoin, sel); err != nil {
				return nil, err
			}

		case f.LiteralString != nil:
			if schema.KindOf(field.Type) != schema.StringColumnKind {
				return nil, transformErr(stage, "string literal on %s field `%s`", field.Type, field.Name)
			}
			keys, valid := schema.ReadKeys(col)
			ops.CompareValuesAreEqual(keys, *f.LiteralString, sel)
			sel.And(valid)

		default:
			literal, _ := f.LiteralFloat()
			data, err := schema.ReadOrdinal(col)
			if err != nil {
				return nil, &TransformError{Stage: stage, Err: err}
			}
			switch f.Operator {
			case transform.Equal:
				ops.CompareValuesAreEqual(data.Values, literal, sel)
			case transform.LessThan:
				ops.CompareValuesAreSmaller(data.Values, literal, sel)
			case transform.LessEqual:
				ops.CompareValuesAreSmallerOrEqual(data.Values, literal, sel)
			case transform.GreaterThan:
				ops.CompareValuesAreBigger(data.Values, literal, sel)
			case transform.GreaterEqual:
				ops.CompareValuesAreBiggerOrEqual(data.Values, literal, sel)
			}
			sel.And(data.Valid)
		}

		mask.And(sel)
	}

	if mask.Count() == t.rows {
		return t, nil
	}

	indices := int64Array(e.mem, mask.ToIndices(make([]int64, 0, mask.Count())))
	defer indices.Release()
	return t.take(e.ctx, indices)
}

func (e *executor) semiJoin(col arrow.Array, field arrow.Field, join *transform.SemiJoinFilter, sel *bits.Bitfield) error {
	const stage = "filter"

	other, err := e.auxTable(stage, join.TableID)
	if err != nil {
		return err
	}
	otherCol, otherField, found := recordColumn(other, join.FieldName)
	if !found {
		return transformErr(stage, "semi join field `%s` not found", join.FieldName)
	}

	if schema.KindOf(field.Type) == schema.OrdinalColumnKind && schema.KindOf(otherField.Type) == schema.OrdinalColumnKind {
		right, err := schema.ReadOrdinal(otherCol)
		if err != nil {
			return &TransformError{Stage: stage, Err: err}
		}
		set := make(map[float64]struct{}, len(right.Values))
		for i, v := range right.Values {
			if right.Valid.Get(i) {
				set[v] = struct{}{}
			}
		}
		left, err := schema.ReadOrdinal(col)
		if err != nil {
			return &TransformError{Stage: stage, Err: err}
		}
		for i, v := range left.Values {
			if _, hit := set[v]; hit && left.Valid.Get(i) {
				sel.Set(i)
			}
		}
		return nil
	}

	rightKeys, rightValid := schema.ReadKeys(otherCol)
	set := make(map[string]struct{}, len(rightKeys))
	for i, k := range rightKeys {
		if rightValid.Get(i) {
			set[k] = struct{}{}
		}
	}
	leftKeys, leftValid := schema.ReadKeys(col)
	for i, k := range leftKeys {
		if _, hit := set[k]; hit && leftValid.Get(i) {
			sel.Set(i)
		}
	}
	return nil
}

// grouping assigns every row to a group; rows with group -1 are dropped.
type grouping struct {
	rowGroup []int
	firstRow []int
	groups   int
}

func (g *grouping) assign(row, group int) {
	g.rowGroup[row] = group
	if g.firstRow[group] < 0 {
		g.firstRow[group] = row
	}
}

func newGrouping(rows, groups int) *grouping {
	g := &grouping{
		rowGroup: make([]int, rows),
		firstRow: make([]int, groups),
		groups:   groups,
	}
	for i := range g.firstRow {
		g.firstRow[i] = -1
	}
	return g
}

func (e *executor) groupBy(t *table, g *transform.GroupByTransform) (*table, error) {
	const stage = "group_by"

	var (
		groups *grouping
		out    = &table{}
		err    error
	)

	binned := false
	for _, k := range g.Keys {
		if k.Binning != nil {
			binned = true
		}
	}

	switch {
	case len(g.Keys) == 0:
		groups = newGrouping(t.rows, 1)
		for row := 0; row < t.rows; row++ {
			groups.assign(row, 0)
		}

	case binned:
		if len(g.Keys) != 1 {
			return nil, transformErr(stage, "a binned key cannot be combined with other keys")
		}
		groups, err = e.binnedKey(t, g.Keys[0], out)
		if err != nil {
			out.release()
			return nil, err
		}

	default:
		groups, err = e.valueKeys(t, g.Keys, out)
		if err != nil {
			out.release()
			return nil, err
		}
	}
	out.rows = groups.groups

	for _, agg := range g.Aggregates {
		field, col, err := e.aggregate(t, groups, agg)
		if err != nil {
			out.release()
			return nil, err
		}
		if err := out.add(stage, field, col); err != nil {
			out.release()
			return nil, err
		}
	}
	return out, nil
}

func (e *executor) binnedKey(t *table, key transform.GroupByKey, out *table) (*grouping, error) {
	const stage = "group_by"
	b := key.Binning

	col, field, err := t.lookup(stage, key.FieldName)
	if err != nil {
		return nil, err
	}

	var (
		fractional schema.OrdinalData
		valueType  = field.Type
	)
	if b.PreBinnedFieldName != "" {
		binCol, binField, err := t.lookup(stage, b.PreBinnedFieldName)
		if err != nil {
			return nil, err
		}
		if binField.Type.ID() != arrow.FLOAT64 {
			return nil, transformErr(stage, "pre-binned field `%s` must be Float64, got %s", binField.Name, binField.Type)
		}
		col = binCol
	}

	domain, ok, err := e.domain(stage, b.StatsTableID, b.StatsMinimumFieldName, b.StatsMaximumFieldName, valueType)
	if err != nil {
		return nil, err
	}
	fractional, err = schema.ReadOrdinal(col)
	if err != nil {
		return nil, &TransformError{Stage: stage, Err: err}
	}
	if b.PreBinnedFieldName == "" {
		for i, v := range fractional.Values {
			fractional.Values[i] = domain.FractionalBin(v, b.BinCount)
		}
	}
	if !ok {
		domain = schema.BoundsFloat{}
	}

	groups := newGrouping(t.rows, b.BinCount)
	for row := range groups.rowGroup {
		if !ok || !fractional.Valid.Get(row) {
			groups.rowGroup[row] = -1
			continue
		}
		groups.assign(row, schema.BinIndex(fractional.Values[row], b.BinCount))
	}

	// every bin is emitted, including empty ones
	binIDs := array.NewInt32Builder(e.mem)
	defer binIDs.Release()
	widths := make([]float64, b.BinCount)
	lower := make([]float64, b.BinCount)
	upper := make([]float64, b.BinCount)
	for bin := 0; bin < b.BinCount; bin++ {
		binIDs.Append(int32(bin))
		widths[bin] = domain.BinWidth(b.BinCount)
		lower[bin] = domain.BinLowerBound(bin, b.BinCount)
		upper[bin] = domain.BinUpperBound(bin, b.BinCount)
	}

	if err := out.add(stage, arrow.Field{Name: key.OutputAlias, Type: arrow.PrimitiveTypes.Int32}, binIDs.NewArray()); err != nil {
		return nil, err
	}
	extras := []struct {
		alias  string
		values []float64
	}{
		{b.OutputBinWidthAlias, widths},
		{b.OutputBinLbAlias, lower},
		{b.OutputBinUbAlias, upper},
	}
	for _, x := range extras {
		if x.alias == "" {
			continue
		}
		if err := out.add(stage, arrow.Field{Name: x.alias, Type: arrow.PrimitiveTypes.Float64}, float64Array(e.mem, x.values, nil)); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

const nullKey = "\x00null"

func (e *executor) valueKeys(t *table, keys []transform.GroupByKey, out *table) (*grouping, error) {
	const stage = "group_by"

	composite := make([]string, t.rows)
	cols := make([]arrow.Array, len(keys))
	fields := make([]arrow.Field, len(keys))

	for k, key := range keys {
		col, field, err := t.lookup(stage, key.FieldName)
		if err != nil {
			return nil, err
		}
		cols[k], fields[k] = col, field

		parts, valid, err := rowKeys(col, field)
		if err != nil {
			return nil, &TransformError{Stage: stage, Err: err}
		}
		for row := range composite {
			part := nullKey
			if valid.Get(row) {
				part = parts[row]
			}
			if k > 0 {
				composite[row] += "\x1f"
			}
			composite[row] += part
		}
	}

	ids := make(map[string]int)
	rowGroup := make([]int, t.rows)
	firstRow := []int{}
	for row, key := range composite {
		id, seen := ids[key]
		if !seen {
			id = len(firstRow)
			ids[key] = id
			firstRow = append(firstRow, row)
		}
		rowGroup[row] = id
	}
	groups := &grouping{rowGroup: rowGroup, firstRow: firstRow, groups: len(firstRow)}

	indices := indexArray(e.mem, firstRow)
	defer indices.Release()
	for k, key := range keys {
		taken, err := compute.TakeArray(e.ctx, cols[k], indices)
		if err != nil {
			return nil, &TransformError{Stage: stage, Err: err}
		}
		f := fields[k]
		f.Name = key.OutputAlias
		if err := out.add(stage, f, taken); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// rowKeys renders every row of col as a string key usable for hashing.
func rowKeys(col arrow.Array, field arrow.Field) ([]string, *bits.Bitfield, error) {
	if schema.KindOf(field.Type) != schema.OrdinalColumnKind {
		keys, valid := schema.ReadKeys(col)
		return keys, valid, nil
	}
	data, err := schema.ReadOrdinal(col)
	if err != nil {
		return nil, nil, err
	}
	keys := make([]string, len(data.Values))
	for i, v := range data.Values {
		keys[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return keys, data.Valid, nil
}

func (e *executor) aggregate(t *table, groups *grouping, agg transform.AggregateField) (arrow.Field, arrow.Array, error) {
	const stage = "group_by"

	if agg.Function == transform.CountStar {
		counts := make([]int64, groups.groups)
		for _, g := range groups.rowGroup {
			if g >= 0 {
				counts[g]++
			}
		}
		return arrow.Field{Name: agg.OutputAlias, Type: arrow.PrimitiveTypes.Int64}, int64Array(e.mem, counts), nil
	}

	col, field, err := t.lookup(stage, agg.FieldName)
	if err != nil {
		return arrow.Field{}, nil, err
	}

	switch agg.Function {
	case transform.Count:
		counts := make([]int64, groups.groups)
		if !agg.Distinct {
			for row, g := range groups.rowGroup {
				if g >= 0 && col.IsValid(row) {
					counts[g]++
				}
			}
		} else {
			keys, valid, err := rowKeys(col, field)
			if err != nil {
				return arrow.Field{}, nil, &TransformError{Stage: stage, Err: err}
			}
			seen := make([]map[string]struct{}, groups.groups)
			for row, g := range groups.rowGroup {
				if g < 0 || !valid.Get(row) {
					continue
				}
				if seen[g] == nil {
					seen[g] = make(map[string]struct{})
				}
				seen[g][keys[row]] = struct{}{}
			}
			for g := range counts {
				counts[g] = int64(len(seen[g]))
			}
		}
		return arrow.Field{Name: agg.OutputAlias, Type: arrow.PrimitiveTypes.Int64}, int64Array(e.mem, counts), nil

	case transform.Min, transform.Max:
		best, err := extremes(col, field, groups, agg.Function == transform.Min)
		if err != nil {
			return arrow.Field{}, nil, &TransformError{Stage: stage, Err: err}
		}
		indices := indexArray(e.mem, best)
		defer indices.Release()
		taken, err := compute.TakeArray(e.ctx, col, indices)
		if err != nil {
			return arrow.Field{}, nil, &TransformError{Stage: stage, Err: err}
		}
		return arrow.Field{Name: agg.OutputAlias, Type: field.Type, Nullable: true}, taken, nil

	case transform.Average:
		data, err := schema.ReadOrdinal(col)
		if err != nil {
			return arrow.Field{}, nil, &TransformError{Stage: stage, Err: err}
		}
		sums := make([]float64, groups.groups)
		counts := make([]int, groups.groups)
		for row, g := range groups.rowGroup {
			if g >= 0 && data.Valid.Get(row) {
				sums[g] += data.Values[row]
				counts[g]++
			}
		}
		valid := make([]bool, groups.groups)
		for g := range sums {
			if counts[g] > 0 {
				sums[g] /= float64(counts[g])
				valid[g] = true
			}
		}
		return arrow.Field{Name: agg.OutputAlias, Type: arrow.PrimitiveTypes.Float64, Nullable: true}, float64Array(e.mem, sums, valid), nil
	}

	return arrow.Field{}, nil, transformErr(stage, "unsupported aggregation %s", agg.Function)
}

// extremes returns per group the row holding the smallest (or largest) valid value, or -1.
func extremes(col arrow.Array, field arrow.Field, groups *grouping, smallest bool) ([]int, error) {
	best := make([]int, groups.groups)
	for i := range best {
		best[i] = -1
	}

	var better func(a, b int) bool
	switch schema.KindOf(field.Type) {
	case schema.OrdinalColumnKind:
		data, err := schema.ReadOrdinal(col)
		if err != nil {
			return nil, err
		}
		better = func(a, b int) bool {
			if math.IsNaN(data.Values[a]) {
				return false
			}
			if math.IsNaN(data.Values[b]) {
				return true
			}
			if smallest {
				return data.Values[a] < data.Values[b]
			}
			return data.Values[a] > data.Values[b]
		}
	case schema.StringColumnKind:
		keys, _ := schema.ReadKeys(col)
		better = func(a, b int) bool {
			if smallest {
				return keys[a] < keys[b]
			}
			return keys[a] > keys[b]
		}
	default:
		return nil, transformErr("group_by", "min/max is not supported for %s", field.Type)
	}

	for row, g := range groups.rowGroup {
		if g < 0 || col.IsNull(row) {
			continue
		}
		if best[g] < 0 || better(row, best[g]) {
			best[g] = row
		}
	}
	return best, nil
}

func (e *executor) orderBy(t *table, o *transform.OrderByTransform) (*table, error) {
	const stage = "order_by"

	comparators := make([]func(a, b int) int, 0, len(o.Constraints))
	for _, c := range o.Constraints {
		col, field, err := t.lookup(stage, c.FieldName)
		if err != nil {
			return nil, err
		}

		var (
			compareValues func(a, b int) int
			valid         *bits.Bitfield
		)
		if schema.KindOf(field.Type) == schema.OrdinalColumnKind {
			data, err := schema.ReadOrdinal(col)
			if err != nil {
				return nil, &TransformError{Stage: stage, Err: err}
			}
			valid = data.Valid
			compareValues = func(a, b int) int { return cmp.Compare(data.Values[a], data.Values[b]) }
		} else {
			keys, v := schema.ReadKeys(col)
			valid = v
			compareValues = func(a, b int) int { return cmp.Compare(keys[a], keys[b]) }
		}

		constraint := c
		comparators = append(comparators, func(a, b int) int {
			aValid, bValid := valid.Get(a), valid.Get(b)
			switch {
			case !aValid && !bValid:
				return 0
			case !aValid:
				if constraint.NullsFirst {
					return -1
				}
				return 1
			case !bValid:
				if constraint.NullsFirst {
					return 1
				}
				return -1
			}
			r := compareValues(a, b)
			if !constraint.Ascending {
				r = -r
			}
			return r
		})
	}

	perm := make([]int, t.rows)
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		for _, compare := range comparators {
			if r := compare(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
	if o.Limit != nil && int(*o.Limit) < len(perm) {
		perm = perm[:*o.Limit]
	}

	indices := indexArray(e.mem, perm)
	defer indices.Release()
	return t.take(e.ctx, indices)
}

func (e *executor) project(t *table, fields []string) (*table, error) {
	out := &table{rows: t.rows}
	for _, name := range fields {
		col, field, err := t.lookup("projection", name)
		if err != nil {
			out.release()
			return nil, err
		}
		col.Retain()
		if err := out.add("projection", field, col); err != nil {
			out.release()
			return nil, err
		}
	}
	return out, nil
}
