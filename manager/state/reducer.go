package state

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/ankoh/dashql-sub001/registry"
	"github.com/ankoh/dashql-sub001/worker"
)

// Reduce applies action to s and returns the next state. s is never modified.
// The only side effects are reference changes in frames and logging.
func Reduce(s *ComputationState, action Action, frames *registry.Registry[*worker.DataFrame], logger *slog.Logger) *ComputationState {
	if logger == nil {
		logger = slog.Default()
	}
	r := &reducer{frames: frames, logger: logger}

	switch a := action.(type) {
	case ComputationFromQueryResult:
		return r.computationFromQueryResult(s, a)
	case CreatedDataFrame:
		return r.createdDataFrame(s, a)
	case DeleteComputation:
		return r.deleteComputation(s, a)
	case ScheduleTask:
		return r.scheduleTask(s, a)
	case UpdateSchedulerTask:
		return r.updateSchedulerTask(s, a)
	case UnregisterSchedulerTask:
		return r.unregisterSchedulerTask(s, a)
	case TableAggregationSucceeded:
		return r.tableAggregationSucceeded(s, a)
	case SystemColumnComputationSucceeded:
		return r.systemColumnComputationSucceeded(s, a)
	case ColumnAggregationSucceeded:
		return r.columnAggregationSucceeded(s, a)
	case FilteredColumnAggregationSucceeded:
		return r.filteredColumnAggregationSucceeded(s, a)
	case TableFilteringSucceeded:
		return r.tableFilteringSucceeded(s, a)
	case TableOrderingSucceeded:
		return r.tableOrderingSucceeded(s, a)
	default:
		panic(fmt.Sprintf("unknown action %T", action))
	}
}

type reducer struct {
	frames *registry.Registry[*worker.DataFrame]
	logger *slog.Logger
}

func (r *reducer) orphan(s *ComputationState, action Action, args ...any) *ComputationState {
	args = append([]any{"action", action.Name(), "error", ErrOrphanTaskReference}, args...)
	r.logger.Warn("action references an untracked entity", args...)
	return s
}

// latest reports whether slot still holds taskID.
func (r *reducer) latest(action Action, slot *SchedulerTask, taskID uint64) bool {
	if slot != nil && slot.TaskID == taskID {
		return true
	}
	r.logger.Info("discarding superseded result", "action", action.Name(), "task_id", taskID)
	return false
}

func (r *reducer) acquire(dfs ...*worker.DataFrame) {
	for _, df := range dfs {
		if df != nil {
			r.frames.Acquire(df)
		}
	}
}

func (r *reducer) release(dfs ...*worker.DataFrame) {
	for _, df := range dfs {
		if df != nil {
			r.frames.Release(df)
		}
	}
}

func (r *reducer) releaseTable(t *TableComputationState) {
	r.release(t.Frames()...)
	if t.cancelLifetime != nil {
		t.cancelLifetime()
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	maps.Copy(out, m)
	return out
}

func (s *ComputationState) withTable(t *TableComputationState) *ComputationState {
	next := *s
	next.TableComputations = cloneMap(s.TableComputations)
	next.TableComputations[t.TableID] = t
	return &next
}

func (r *reducer) computationFromQueryResult(s *ComputationState, a ComputationFromQueryResult) *ComputationState {
	if prev, ok := s.TableComputations[a.TableID]; ok {
		r.logger.Info("replacing table computation", "table_id", a.TableID)
		r.releaseTable(prev)
	}
	lifetime, cancel := a.Lifetime, a.Cancel
	if lifetime == nil {
		lifetime, cancel = context.WithCancel(context.Background())
	}
	return s.withTable(&TableComputationState{
		TableID:               a.TableID,
		DataTable:             a.Table,
		DataTableFieldsByName: FieldsByName(a.Table),
		ColumnGroups:          a.ColumnGroups,
		DataTableLifetime:     lifetime,
		Epoch:                 FirstEpoch,
		ColumnAggregates:      map[int]ColumnAggregation{},
		cancelLifetime:        cancel,
	})
}

func (r *reducer) createdDataFrame(s *ComputationState, a CreatedDataFrame) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	r.acquire(a.DataFrame)
	r.release(t.DataFrame)

	next := t.clone()
	next.DataFrame = a.DataFrame
	next.Epoch++
	return s.withTable(next)
}

func (r *reducer) deleteComputation(s *ComputationState, a DeleteComputation) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	r.releaseTable(t)

	next := *s
	next.TableComputations = cloneMap(s.TableComputations)
	delete(next.TableComputations, a.TableID)
	return &next
}

func (r *reducer) scheduleTask(s *ComputationState, a ScheduleTask) *ComputationState {
	if a.Task.Value == nil {
		panic("scheduled task without parameters")
	}
	t, ok := s.TableComputations[a.Task.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.Task.TableID, "task_type", a.Task.Type().String())
	}

	task := a.Task
	task.TaskID = s.NextSchedulerTaskID
	task.TableEpoch = t.Epoch
	task.Progress.Status = TaskRunning
	r.acquire(task.Value.DataFrames()...)

	table := t.clone()
	table.Tasks.set(&task)

	next := s.withTable(table)
	next.NextSchedulerTaskID++
	next.SchedulerTasks = cloneMap(s.SchedulerTasks)
	next.SchedulerTasks[task.TaskID] = &task
	return next
}

func (r *reducer) updateSchedulerTask(s *ComputationState, a UpdateSchedulerTask) *ComputationState {
	task, ok := s.SchedulerTasks[a.TaskID]
	if !ok {
		return r.orphan(s, a, "task_id", a.TaskID)
	}
	updated := *task
	updated.Progress = task.Progress.apply(a.Patch)

	next := *s
	next.SchedulerTasks = cloneMap(s.SchedulerTasks)
	next.SchedulerTasks[a.TaskID] = &updated

	if t, ok := s.TableComputations[task.TableID]; ok && t.Tasks.holds(task, a.TaskID) {
		table := t.clone()
		table.Tasks.set(&updated)
		return next.withTable(table)
	}
	return &next
}

func (r *reducer) unregisterSchedulerTask(s *ComputationState, a UnregisterSchedulerTask) *ComputationState {
	task, ok := s.SchedulerTasks[a.TaskID]
	if !ok {
		return r.orphan(s, a, "task_id", a.TaskID)
	}
	r.release(task.Value.DataFrames()...)

	next := *s
	next.SchedulerTasks = cloneMap(s.SchedulerTasks)
	delete(next.SchedulerTasks, a.TaskID)
	return &next
}

func (r *reducer) tableAggregationSucceeded(s *ComputationState, a TableAggregationSucceeded) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	if !r.latest(a, t.Tasks.TableAggregationTask, a.TaskID) {
		return s
	}
	r.acquire(a.Summary.frame())
	r.release(t.TableSummary.frame())

	next := t.clone()
	next.TableSummary = a.Summary
	if a.ColumnGroups != nil {
		next.ColumnGroups = a.ColumnGroups
	}
	return s.withTable(next)
}

func (r *reducer) systemColumnComputationSucceeded(s *ComputationState, a SystemColumnComputationSucceeded) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	if !r.latest(a, t.Tasks.SystemColumnTask, a.TaskID) {
		return s
	}
	r.acquire(a.Result.DataFrame)
	r.release(t.DataFrame)
	// column ids shift with the new column groups
	for _, agg := range t.ColumnAggregates {
		r.release(agg.DataFrames()...)
	}

	next := t.clone()
	next.DataFrame = a.Result.DataFrame
	next.DataTable = a.Result.DataTable
	next.DataTableFieldsByName = FieldsByName(a.Result.DataTable)
	next.ColumnGroups = a.Result.ColumnGroups
	next.RowNumberColumnName = a.Result.RowNumberFieldName
	next.ColumnAggregates = map[int]ColumnAggregation{}
	next.Tasks.ColumnAggregationTasks = nil
	next.Tasks.FilteredColumnAggregationTasks = nil
	next.Epoch++
	return s.withTable(next)
}

func (r *reducer) columnAggregationSucceeded(s *ComputationState, a ColumnAggregationSucceeded) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	if a.ColumnID < 0 || a.ColumnID >= len(t.ColumnGroups) {
		return r.orphan(s, a, "table_id", a.TableID, "column_id", a.ColumnID)
	}
	if !r.latest(a, t.Tasks.ColumnAggregationTasks[a.ColumnID], a.TaskID) {
		return s
	}
	r.acquire(a.Aggregation.DataFrames()...)
	if prev, ok := t.ColumnAggregates[a.ColumnID]; ok {
		r.release(prev.DataFrames()...)
	}

	next := t.clone()
	next.ColumnAggregates = cloneMap(t.ColumnAggregates)
	next.ColumnAggregates[a.ColumnID] = a.Aggregation
	return s.withTable(next)
}

func (r *reducer) filteredColumnAggregationSucceeded(s *ComputationState, a FilteredColumnAggregationSucceeded) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	agg, ok := t.ColumnAggregates[a.ColumnID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID, "column_id", a.ColumnID)
	}
	slot := t.Tasks.FilteredColumnAggregationTasks[a.ColumnID]
	if !r.latest(a, slot, a.TaskID) {
		return s
	}
	if p, ok := slot.Value.(FilteredColumnAggregationParams); !ok || p.FilterTable != t.FilterTable {
		r.logger.Info("discarding analysis of a replaced filter", "action", a.Name(), "task_id", a.TaskID, "column_id", a.ColumnID)
		return s
	}
	r.acquire(a.Filtered.frame())
	r.release(agg.FilteredAnalysis().frame())

	next := t.clone()
	next.ColumnAggregates = cloneMap(t.ColumnAggregates)
	next.ColumnAggregates[a.ColumnID] = agg.WithFiltered(a.Filtered)
	return s.withTable(next)
}

func (r *reducer) tableFilteringSucceeded(s *ComputationState, a TableFilteringSucceeded) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	if !r.latest(a, t.Tasks.FilteringTask, a.TaskID) {
		return s
	}
	r.acquire(a.FilterTable.frame())
	r.release(t.FilterTable.frame())

	next := t.clone()
	next.FilterTable = a.FilterTable
	next.ColumnAggregates = make(map[int]ColumnAggregation, len(t.ColumnAggregates))
	for id, agg := range t.ColumnAggregates {
		if filtered := agg.FilteredAnalysis(); filtered != nil {
			r.release(filtered.frame())
			agg = agg.WithFiltered(nil)
		}
		next.ColumnAggregates[id] = agg
	}
	return s.withTable(next)
}

func (r *reducer) tableOrderingSucceeded(s *ComputationState, a TableOrderingSucceeded) *ComputationState {
	t, ok := s.TableComputations[a.TableID]
	if !ok {
		return r.orphan(s, a, "table_id", a.TableID)
	}
	if !r.latest(a, t.Tasks.OrderingTask, a.TaskID) {
		return s
	}
	r.acquire(a.Ordered.DataFrame)
	r.release(t.DataFrame)

	next := t.clone()
	next.DataFrame = a.Ordered.DataFrame
	next.DataTable = a.Ordered.DataTable
	next.DataTableFieldsByName = FieldsByName(a.Ordered.DataTable)
	next.OrderingConstraints = a.Ordered.Constraints
	next.Epoch++
	return s.withTable(next)
}
