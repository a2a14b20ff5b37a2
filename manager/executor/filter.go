package executor

import (
	"context"
	"log/slog"

	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/transform"
)

// FilterTable computes the row numbers that pass every filter. An empty
// filter list yields nil.
func FilterTable(ctx context.Context, scope *Scope, logger *slog.Logger, p state.FilteringParams, epoch int) (*state.FilterTable, error) {
	if len(p.Filters) == 0 {
		return nil, nil
	}
	if p.RowNumberColumnName == "" {
		return nil, ErrMissingSystemColumn
	}
	desc := transform.New().
		WithFilters(p.Filters...).
		WithProjection(p.RowNumberColumnName)

	df, rec, err := derive(ctx, scope, logger.With("input_rows", rowCount(p)), "filtered table", p.InputDataFrame, desc)
	if err != nil {
		return nil, err
	}
	return &state.FilterTable{
		DataFrame:          df,
		DataTable:          rec,
		RowNumberFieldName: p.RowNumberColumnName,
		InputEpoch:         epoch,
	}, nil
}

func rowCount(p state.FilteringParams) int64 {
	if p.InputDataTable == nil {
		return 0
	}
	return p.InputDataTable.NumRows()
}

// OrderTable sorts the table by the given constraints.
func OrderTable(ctx context.Context, scope *Scope, logger *slog.Logger, p state.OrderingParams) (*state.OrderedTable, error) {
	if len(p.Constraints) == 1 {
		logger = logger.With("field", p.Constraints[0].FieldName)
	}
	desc := transform.New().WithOrderBy(p.Constraints...)

	df, rec, err := derive(ctx, scope, logger, "sorted table", p.InputDataFrame, desc)
	if err != nil {
		return nil, err
	}
	return &state.OrderedTable{
		DataFrame:   df,
		DataTable:   rec,
		Constraints: p.Constraints,
	}, nil
}
