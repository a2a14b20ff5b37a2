package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ankoh/dashql-sub001/manager/executor"
	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/schema"
	"golang.org/x/sync/errgroup"
)

// AnalyzeTable computes the table summary, the system columns and a summary
// of every column. Failures of single columns are logged and do not fail the
// analysis.
func (m *Manager) AnalyzeTable(ctx context.Context, tableID int) error {
	t, err := m.tableWithFrame(tableID)
	if err != nil {
		return err
	}
	if t.RowNumberColumnName != "" {
		return fmt.Errorf("table %d: %w", tableID, ErrAlreadyAnalyzed)
	}

	var (
		summary *state.TableSummary
		groups  []schema.ColumnGroup
	)
	err = m.runTask(ctx, tableID, state.TableAggregationParams{
		InputDataTable: t.DataTable,
		InputDataFrame: t.DataFrame,
		ColumnGroups:   t.ColumnGroups,
	}, func(ctx context.Context, task *state.SchedulerTask, scope *executor.Scope, logger *slog.Logger) (state.Action, error) {
		s, g, err := executor.ComputeTableSummary(ctx, scope, logger, task.Value.(state.TableAggregationParams))
		if err != nil {
			return nil, err
		}
		summary, groups = s, g
		return state.TableAggregationSucceeded{TableID: tableID, TaskID: task.TaskID, Summary: summary, ColumnGroups: groups}, nil
	})
	if err != nil {
		return fmt.Errorf("table aggregation failed: %w", err)
	}

	err = m.runTask(ctx, tableID, state.SystemColumnParams{
		InputDataTable: t.DataTable,
		InputDataFrame: t.DataFrame,
		TableSummary:   summary,
		ColumnGroups:   groups,
	}, func(ctx context.Context, task *state.SchedulerTask, scope *executor.Scope, logger *slog.Logger) (state.Action, error) {
		result, err := executor.ComputeSystemColumns(ctx, scope, logger, task.Value.(state.SystemColumnParams), m.config.BinCount)
		if err != nil {
			return nil, err
		}
		return state.SystemColumnComputationSucceeded{TableID: tableID, TaskID: task.TaskID, Result: result}, nil
	})
	if err != nil {
		return fmt.Errorf("system column computation failed: %w", err)
	}

	t, err = m.tableWithFrame(tableID)
	if err != nil {
		return err
	}
	m.aggregateColumns(ctx, t, summary)
	return nil
}

func (m *Manager) aggregateColumns(ctx context.Context, t *state.TableComputationState, summary *state.TableSummary) {
	var g errgroup.Group
	g.SetLimit(m.config.ColumnConcurrency)

	for id, group := range t.ColumnGroups {
		if !schema.IsSummarized(group) {
			continue
		}
		g.Go(func() error {
			err := m.AggregateColumn(ctx, t.TableID, state.ColumnAggregationParams{
				ColumnID:       id,
				ColumnGroup:    group,
				InputDataFrame: t.DataFrame,
				TableSummary:   summary,
			})
			if err != nil {
				m.logger.Warn("column aggregation failed", "table_id", t.TableID, "column_id", id, "column", group.FieldName(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// AggregateColumn computes the summary of a single column.
func (m *Manager) AggregateColumn(ctx context.Context, tableID int, params state.ColumnAggregationParams) error {
	return m.runTask(ctx, tableID, params, func(ctx context.Context, task *state.SchedulerTask, scope *executor.Scope, logger *slog.Logger) (state.Action, error) {
		agg, err := executor.AggregateColumn(ctx, scope, logger, params, m.config.options())
		if err != nil {
			return nil, err
		}
		return state.ColumnAggregationSucceeded{TableID: tableID, TaskID: task.TaskID, ColumnID: params.ColumnID, Aggregation: agg}, nil
	})
}
