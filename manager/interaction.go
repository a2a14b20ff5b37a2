package manager

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ankoh/dashql-sub001/manager/executor"
	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/transform"
	"golang.org/x/sync/errgroup"
)

// FilterTable applies filters to the table. An empty list clears the filter.
func (m *Manager) FilterTable(ctx context.Context, tableID int, filters []transform.FilterTransform) error {
	t, err := m.tableWithFrame(tableID)
	if err != nil {
		return err
	}
	return m.runTask(ctx, tableID, state.FilteringParams{
		InputDataTable:      t.DataTable,
		InputDataFrame:      t.DataFrame,
		RowNumberColumnName: t.RowNumberColumnName,
		Filters:             filters,
	}, func(ctx context.Context, task *state.SchedulerTask, scope *executor.Scope, logger *slog.Logger) (state.Action, error) {
		filter, err := executor.FilterTable(ctx, scope, logger, task.Value.(state.FilteringParams), task.TableEpoch)
		if err != nil {
			return nil, err
		}
		return state.TableFilteringSucceeded{TableID: tableID, TaskID: task.TaskID, FilterTable: filter}, nil
	})
}

// SortTable replaces the table data frame by a sorted one.
func (m *Manager) SortTable(ctx context.Context, tableID int, constraints []transform.OrderByConstraint) error {
	t, err := m.tableWithFrame(tableID)
	if err != nil {
		return err
	}
	return m.runTask(ctx, tableID, state.OrderingParams{
		InputDataTable: t.DataTable,
		InputDataFrame: t.DataFrame,
		Constraints:    constraints,
	}, func(ctx context.Context, task *state.SchedulerTask, scope *executor.Scope, logger *slog.Logger) (state.Action, error) {
		ordered, err := executor.OrderTable(ctx, scope, logger, task.Value.(state.OrderingParams))
		if err != nil {
			return nil, err
		}
		return state.TableOrderingSucceeded{TableID: tableID, TaskID: task.TaskID, Ordered: ordered}, nil
	})
}

// FilterColumns recomputes every column summary restricted to the current
// filter. It is a no-op without a filter.
func (m *Manager) FilterColumns(ctx context.Context, tableID int) error {
	t, err := m.tableWithFrame(tableID)
	if err != nil {
		return err
	}
	if t.FilterTable == nil || t.TableSummary == nil {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(m.config.ColumnConcurrency)

	for _, id := range slices.Sorted(maps.Keys(t.ColumnAggregates)) {
		agg := t.ColumnAggregates[id]
		params := state.FilteredColumnAggregationParams{
			ColumnID:       id,
			ColumnGroup:    t.ColumnGroups[id],
			InputDataFrame: t.DataFrame,
			TableSummary:   t.TableSummary,
			FilterTable:    t.FilterTable,
		}
		g.Go(func() error {
			err := m.runTask(ctx, tableID, params, func(ctx context.Context, task *state.SchedulerTask, scope *executor.Scope, logger *slog.Logger) (state.Action, error) {
				filtered, err := executor.AggregateFilteredColumn(ctx, scope, logger, params, agg, m.config.options())
				if err != nil {
					return nil, err
				}
				return state.FilteredColumnAggregationSucceeded{TableID: tableID, TaskID: task.TaskID, ColumnID: id, Filtered: filtered}, nil
			})
			if err != nil {
				m.logger.Warn("filtered column aggregation failed", "table_id", tableID, "column_id", id, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// CrossFilterTable filters the table by the brushes of filters and
// recomputes the filtered column summaries. Without brushes the filter is
// cleared.
func (m *Manager) CrossFilterTable(ctx context.Context, tableID int, filters *state.CrossFilters) error {
	if err := m.FilterTable(ctx, tableID, filters.FilterTransforms()); err != nil {
		return err
	}
	return m.FilterColumns(ctx, tableID)
}
