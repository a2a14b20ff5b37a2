package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
)

const CountStarFieldName = "_count"

// ComputeTableSummary aggregates the whole table into a single row and
// returns the column groups with their resolved stats fields.
func ComputeTableSummary(ctx context.Context, scope *Scope, logger *slog.Logger, p state.TableAggregationParams) (*state.TableSummary, []schema.ColumnGroup, error) {
	desc, groups := tableAggregationTransform(p.ColumnGroups)

	df, rec, err := derive(ctx, scope, logger, "aggregated table", p.InputDataFrame, desc)
	if err != nil {
		return nil, nil, err
	}
	return &state.TableSummary{
		DataFrame:          df,
		Table:              rec,
		TableFieldsByName:  state.FieldsByName(rec),
		CountStarFieldName: CountStarFieldName,
	}, groups, nil
}

func tableAggregationTransform(groups []schema.ColumnGroup) (*transform.DataFrameTransform, []schema.ColumnGroup) {
	aggregates := []transform.AggregateField{
		{OutputAlias: CountStarFieldName, Function: transform.CountStar},
	}
	updated := make([]schema.ColumnGroup, 0, len(groups))

	for i, g := range groups {
		switch c := g.(type) {
		case schema.OrdinalColumn:
			stats := &schema.OrdinalStatsFields{
				CountField: fmt.Sprintf("_%d_count", i),
				MinField:   fmt.Sprintf("_%d_min", i),
				MaxField:   fmt.Sprintf("_%d_max", i),
			}
			aggregates = append(aggregates,
				transform.AggregateField{FieldName: c.InputFieldName, OutputAlias: stats.CountField, Function: transform.Count},
				transform.AggregateField{FieldName: c.InputFieldName, OutputAlias: stats.MinField, Function: transform.Min},
				transform.AggregateField{FieldName: c.InputFieldName, OutputAlias: stats.MaxField, Function: transform.Max},
			)
			c.StatsFields = stats
			updated = append(updated, c)

		case schema.StringColumn:
			c.StatsFields = frequentValueStats(i, c.InputFieldName, &aggregates)
			updated = append(updated, c)

		case schema.ListColumn:
			c.StatsFields = frequentValueStats(i, c.InputFieldName, &aggregates)
			updated = append(updated, c)

		default:
			updated = append(updated, g)
		}
	}

	desc := transform.New()
	desc.GroupBy = &transform.GroupByTransform{Aggregates: aggregates}
	return desc, updated
}

func frequentValueStats(i int, field string, aggregates *[]transform.AggregateField) *schema.FrequentValueStatsFields {
	stats := &schema.FrequentValueStatsFields{
		CountField:         fmt.Sprintf("_%d_count", i),
		DistinctCountField: fmt.Sprintf("_%d_countd", i),
	}
	*aggregates = append(*aggregates,
		transform.AggregateField{FieldName: field, OutputAlias: stats.CountField, Function: transform.Count},
		transform.AggregateField{FieldName: field, OutputAlias: stats.DistinctCountField, Function: transform.Count, Distinct: true},
	)
	return stats
}
