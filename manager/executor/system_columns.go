package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/apache/arrow-go/v18/arrow"
)

const RowNumberPrefix = "_rownum"

// ComputeSystemColumns extends the table by row numbers, value identifiers
// and fractional bins. The returned groups start with the row number group.
func ComputeSystemColumns(ctx context.Context, scope *Scope, logger *slog.Logger, p state.SystemColumnParams, binCount int) (*state.SystemColumns, error) {
	if p.TableSummary == nil {
		return nil, fmt.Errorf("system columns: %w", ErrMissingStats)
	}
	desc, groups, rowNumber, err := systemColumnTransform(p, binCount)
	if err != nil {
		return nil, err
	}

	df, rec, err := derive(ctx, scope, logger, "computed system columns", p.InputDataFrame, desc, p.TableSummary.DataFrame)
	if err != nil {
		return nil, err
	}

	return &state.SystemColumns{
		DataFrame:          df,
		DataTable:          rec,
		ColumnGroups:       groups,
		RowNumberFieldName: rowNumberField(logger, rec, rowNumber),
	}, nil
}

// rowNumberField returns name if rec carries it. A missing row number column
// is logged and leaves the table without row numbering.
func rowNumberField(logger *slog.Logger, rec arrow.Record, name string) string {
	if len(rec.Schema().FieldIndices(name)) == 0 {
		logger.Error("row numbers unavailable", "field", name, "error", ErrMissingSystemColumn)
		return ""
	}
	return name
}

// uniqueName prefixes name with `_` until it is not taken.
func uniqueName(name string, taken map[string]struct{}) string {
	for {
		if _, ok := taken[name]; !ok {
			taken[name] = struct{}{}
			return name
		}
		name = "_" + name
	}
}

func systemColumnTransform(p state.SystemColumnParams, binCount int) (*transform.DataFrameTransform, []schema.ColumnGroup, string, error) {
	taken := map[string]struct{}{}
	for _, f := range p.InputDataTable.Schema().Fields() {
		taken[f.Name] = struct{}{}
	}

	rowNumber := uniqueName(RowNumberPrefix, taken)
	groups := make([]schema.ColumnGroup, 0, len(p.ColumnGroups)+1)
	groups = append(groups, schema.RowNumberColumn{RowNumberFieldName: rowNumber})

	desc := transform.New().WithRowNumber(rowNumber)
	for _, g := range p.ColumnGroups {
		i := len(groups)

		switch c := g.(type) {
		case schema.OrdinalColumn:
			if c.StatsFields == nil {
				return nil, nil, "", fmt.Errorf("column `%s`: %w", c.InputFieldName, ErrMissingStats)
			}
			c.BinFieldName = uniqueName(fmt.Sprintf("_%d_bin", i), taken)
			c.BinCount = binCount
			desc.Binning = append(desc.Binning, transform.BinningTransform{
				FieldName:             c.InputFieldName,
				StatsTableID:          0,
				StatsMinimumFieldName: c.StatsFields.MinField,
				StatsMaximumFieldName: c.StatsFields.MaxField,
				BinCount:              binCount,
				OutputAlias:           c.BinFieldName,
			})
			g = c

		case schema.StringColumn:
			c.ValueIDFieldName = uniqueName(fmt.Sprintf("_%d_id", i), taken)
			desc.ValueIdentifiers = append(desc.ValueIdentifiers, transform.ValueIdentifierTransform{
				FieldName:   c.InputFieldName,
				OutputAlias: c.ValueIDFieldName,
			})
			g = c

		case schema.ListColumn:
			c.ValueIDFieldName = uniqueName(fmt.Sprintf("_%d_id", i), taken)
			desc.ValueIdentifiers = append(desc.ValueIdentifiers, transform.ValueIdentifierTransform{
				FieldName:   c.InputFieldName,
				OutputAlias: c.ValueIDFieldName,
			})
			g = c
		}
		groups = append(groups, g)
	}

	desc.WithOrderBy(transform.OrderByConstraint{FieldName: rowNumber, Ascending: true})
	return desc, groups, rowNumber, nil
}
