package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
)

// Field names of the per-column aggregation tables.
const (
	BinField           = "bin"
	CountField         = "count"
	BinWidthField      = "binWidth"
	BinLowerBoundField = "binLowerBound"
	BinUpperBoundField = "binUpperBound"
	KeyField           = "key"
	KeyIDField         = "keyId"
)

// AggregateColumn computes the histogram or frequent values of one column.
func AggregateColumn(ctx context.Context, scope *Scope, logger *slog.Logger, p state.ColumnAggregationParams, opts Options) (state.ColumnAggregation, error) {
	if p.TableSummary == nil {
		return nil, fmt.Errorf("column %d: %w", p.ColumnID, ErrMissingStats)
	}
	desc, err := columnAggregationTransform(p.ColumnGroup, opts.withDefaults(), true)
	if err != nil {
		return nil, err
	}

	logger = logger.With("column_id", p.ColumnID, "column", p.ColumnGroup.FieldName(), "kind", p.ColumnGroup.Kind().String())
	df, rec, err := derive(ctx, scope, logger, "aggregated table column", p.InputDataFrame, desc, p.TableSummary.DataFrame)
	if err != nil {
		return nil, err
	}

	switch c := p.ColumnGroup.(type) {
	case schema.OrdinalColumn:
		analysis, err := analyzeOrdinalColumn(p.TableSummary, c, rec)
		if err != nil {
			return nil, err
		}
		return state.OrdinalColumnAggregation{ColumnID: p.ColumnID, Column: c, BinnedDataFrame: df, BinnedValues: rec, Analysis: analysis}, nil

	case schema.StringColumn:
		analysis, err := analyzeFrequentValues(p.TableSummary, c.StatsFields, rec, true)
		if err != nil {
			return nil, err
		}
		return state.StringColumnAggregation{ColumnID: p.ColumnID, Column: c, FrequentValuesDataFrame: df, FrequentValues: rec, Analysis: analysis}, nil

	case schema.ListColumn:
		analysis, err := analyzeFrequentValues(p.TableSummary, c.StatsFields, rec, false)
		if err != nil {
			return nil, err
		}
		return state.ListColumnAggregation{ColumnID: p.ColumnID, Column: c, FrequentValuesDataFrame: df, FrequentValues: rec, Analysis: analysis}, nil
	}
	panic("unreachable")
}

// AggregateFilteredColumn recomputes the aggregation of agg restricted to the
// rows of the filter table. Counts are aligned with the unfiltered bins or
// frequent values.
func AggregateFilteredColumn(ctx context.Context, scope *Scope, logger *slog.Logger, p state.FilteredColumnAggregationParams, agg state.ColumnAggregation, opts Options) (*state.FilteredColumnAnalysis, error) {
	if p.TableSummary == nil {
		return nil, fmt.Errorf("column %d: %w", p.ColumnID, ErrMissingStats)
	}
	if p.FilterTable == nil {
		return nil, fmt.Errorf("column %d: filter table missing", p.ColumnID)
	}
	desc, err := columnAggregationTransform(p.ColumnGroup, opts.withDefaults(), false)
	if err != nil {
		return nil, err
	}
	joinField := p.FilterTable.DataTable.Schema().Field(0).Name
	desc.Filters = append([]transform.FilterTransform{
		transform.SemiJoin(p.FilterTable.RowNumberFieldName, 1, joinField),
	}, desc.Filters...)

	logger = logger.With("column_id", p.ColumnID, "column", p.ColumnGroup.FieldName())
	df, rec, err := derive(ctx, scope, logger, "aggregated filtered table column", p.InputDataFrame, desc, p.TableSummary.DataFrame, p.FilterTable.DataFrame)
	if err != nil {
		return nil, err
	}

	var counts []int64
	switch a := agg.(type) {
	case state.OrdinalColumnAggregation:
		counts, err = alignBins(rec, len(a.Analysis.BinValueCounts))
	case state.StringColumnAggregation:
		counts, err = alignFrequentValues(rec, a.Analysis)
	case state.ListColumnAggregation:
		counts, err = alignFrequentValues(rec, a.Analysis)
	}
	if err != nil {
		return nil, err
	}
	return &state.FilteredColumnAnalysis{
		DataFrame:   df,
		Table:       rec,
		FilterEpoch: p.FilterTable.InputEpoch,
		Counts:      counts,
		Percentages: percentages(counts, p.FilterTable.DataTable.NumRows()),
	}, nil
}

func columnAggregationTransform(g schema.ColumnGroup, opts Options, limited bool) (*transform.DataFrameTransform, error) {
	desc := transform.New()
	countStar := transform.AggregateField{OutputAlias: CountField, Function: transform.CountStar}

	switch c := g.(type) {
	case schema.OrdinalColumn:
		if c.StatsFields == nil {
			return nil, fmt.Errorf("column `%s`: %w", c.InputFieldName, ErrMissingStats)
		}
		binning := &transform.GroupByKeyBinning{
			StatsTableID:          0,
			StatsMinimumFieldName: c.StatsFields.MinField,
			StatsMaximumFieldName: c.StatsFields.MaxField,
			BinCount:              opts.BinCount,
			OutputBinWidthAlias:   BinWidthField,
			OutputBinLbAlias:      BinLowerBoundField,
			OutputBinUbAlias:      BinUpperBoundField,
		}
		if c.BinFieldName != "" {
			binning.PreBinnedFieldName = c.BinFieldName
			binning.BinCount = c.BinCount
		}
		desc.GroupBy = &transform.GroupByTransform{
			Keys:       []transform.GroupByKey{{FieldName: c.InputFieldName, OutputAlias: BinField, Binning: binning}},
			Aggregates: []transform.AggregateField{countStar},
		}
		desc.WithOrderBy(transform.OrderByConstraint{FieldName: BinField, Ascending: true})
		return desc, nil

	case schema.StringColumn:
		if c.StatsFields == nil {
			return nil, fmt.Errorf("column `%s`: %w", c.InputFieldName, ErrMissingStats)
		}
		if c.ValueIDFieldName == "" {
			return nil, fmt.Errorf("column `%s`: value ids: %w", c.InputFieldName, ErrMissingSystemColumn)
		}
		desc.GroupBy = &transform.GroupByTransform{
			Keys: []transform.GroupByKey{
				{FieldName: c.InputFieldName, OutputAlias: KeyField},
				{FieldName: c.ValueIDFieldName, OutputAlias: KeyIDField},
			},
			Aggregates: []transform.AggregateField{countStar},
		}

	case schema.ListColumn:
		if c.StatsFields == nil {
			return nil, fmt.Errorf("column `%s`: %w", c.InputFieldName, ErrMissingStats)
		}
		desc.GroupBy = &transform.GroupByTransform{
			Keys:       []transform.GroupByKey{{FieldName: c.InputFieldName, OutputAlias: KeyField}},
			Aggregates: []transform.AggregateField{countStar},
		}

	default:
		return nil, fmt.Errorf("column `%s` of kind %s cannot be aggregated", g.FieldName(), g.Kind())
	}

	desc.WithOrderBy(transform.OrderByConstraint{FieldName: CountField})
	if limited {
		desc.WithLimit(uint32(opts.FrequentValueLimit))
	}
	return desc, nil
}
