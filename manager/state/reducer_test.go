package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ankoh/dashql-sub001/registry"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t      *testing.T
	worker *worker.Worker
	frames *registry.Registry[*worker.DataFrame]
	table  arrow.Record
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w, err := worker.New(worker.Config{Routines: 1, QueueSize: 4, Allocator: memory.NewGoAllocator()})
	require.NoError(t, err)
	t.Cleanup(w.Close)

	s := arrow.NewSchema([]arrow.Field{
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), s)
	defer b.Release()
	b.Field(0).(*array.Float64Builder).AppendValues([]float64{10, 20, 30}, nil)
	rec := b.NewRecord()
	t.Cleanup(rec.Release)

	return &fixture{t: t, worker: w, frames: registry.New[*worker.DataFrame](nil), table: rec}
}

func (f *fixture) frame() *worker.DataFrame {
	f.t.Helper()
	df, err := f.worker.CreateDataFrame(context.Background(), f.table)
	require.NoError(f.t, err)
	return df
}

func (f *fixture) reduce(s *ComputationState, actions ...Action) *ComputationState {
	for _, a := range actions {
		s = Reduce(s, a, f.frames, nil)
	}
	return s
}

// computation returns a state with table 1 backed by a fresh data frame.
func (f *fixture) computation(s *ComputationState) (*ComputationState, *worker.DataFrame) {
	df := f.frame()
	s = f.reduce(s,
		ComputationFromQueryResult{TableID: 1, Table: f.table, ColumnGroups: schema.ClassifyColumns(f.table.Schema())},
		CreatedDataFrame{TableID: 1, DataFrame: df},
	)
	return s, df
}

func (f *fixture) schedule(s *ComputationState, params TaskParams) (*ComputationState, uint64) {
	id := s.NextSchedulerTaskID
	s = f.reduce(s, ScheduleTask{Task: SchedulerTask{TableID: 1, Value: params, Progress: TaskProgress{StartedAt: time.Now()}}})
	return s, id
}

func TestFilteringTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	s := New()
	s.NextSchedulerTaskID = 42

	s, df := f.computation(s)
	table, ok := s.Table(1)
	require.True(t, ok)
	require.Equal(t, 2, table.Epoch)
	require.Equal(t, 1, f.frames.RefCount(df))

	s, taskID := f.schedule(s, FilteringParams{
		InputDataTable: f.table,
		InputDataFrame: df,
		Filters:        []transform.FilterTransform{transform.Compare("score", transform.LessThan, 20)},
	})
	require.Equal(t, uint64(42), taskID)
	require.Equal(t, uint64(43), s.NextSchedulerTaskID)
	require.Equal(t, 2, f.frames.RefCount(df))

	table, _ = s.Table(1)
	require.NotNil(t, table.Tasks.FilteringTask)
	require.Equal(t, TaskRunning, table.Tasks.FilteringTask.Progress.Status)
	require.Equal(t, 2, table.Tasks.FilteringTask.TableEpoch)
	require.False(t, table.IsStale(table.Tasks.FilteringTask))

	running := s
	s = f.reduce(s, UpdateSchedulerTask{TaskID: taskID, Patch: Succeeded(time.Now())})
	task, ok := s.Task(taskID)
	require.True(t, ok)
	require.Equal(t, TaskSucceeded, task.Progress.Status)
	require.NotNil(t, task.Progress.CompletedAt)
	table, _ = s.Table(1)
	require.Equal(t, TaskSucceeded, table.Tasks.FilteringTask.Progress.Status)

	// published states are immutable
	prev, _ := running.Task(taskID)
	require.Equal(t, TaskRunning, prev.Progress.Status)

	s = f.reduce(s, UnregisterSchedulerTask{TaskID: taskID})
	_, ok = s.Task(taskID)
	require.False(t, ok)
	require.Equal(t, 1, f.frames.RefCount(df))
	require.Equal(t, 1, f.frames.Len())

	table, _ = s.Table(1)
	require.Equal(t, taskID, table.Tasks.FilteringTask.TaskID)
	require.Equal(t, TaskSucceeded, table.Tasks.FilteringTask.Progress.Status)
}

func TestFailedTaskProgress(t *testing.T) {
	f := newFixture(t)
	s, df := f.computation(New())
	s, taskID := f.schedule(s, OrderingParams{InputDataTable: f.table, InputDataFrame: df})

	cause := errors.New("boom")
	s = f.reduce(s, UpdateSchedulerTask{TaskID: taskID, Patch: Failed(time.Now(), cause)})
	table, _ := s.Table(1)
	require.Equal(t, TaskFailed, table.Tasks.OrderingTask.Progress.Status)
	require.ErrorIs(t, table.Tasks.OrderingTask.Progress.FailedWithError, cause)
	require.True(t, table.Tasks.OrderingTask.Progress.Status.Terminal())
}

func TestDeleteComputationReleasesFrames(t *testing.T) {
	f := newFixture(t)
	lifetime, cancel := context.WithCancel(context.Background())
	df := f.frame()
	summary := f.frame()

	s := f.reduce(New(),
		ComputationFromQueryResult{TableID: 1, Table: f.table, Lifetime: lifetime, Cancel: cancel},
		CreatedDataFrame{TableID: 1, DataFrame: df},
	)
	s, taskID := f.schedule(s, TableAggregationParams{InputDataTable: f.table, InputDataFrame: df})
	s = f.reduce(s,
		TableAggregationSucceeded{TableID: 1, TaskID: taskID, Summary: &TableSummary{DataFrame: summary}},
		UnregisterSchedulerTask{TaskID: taskID},
	)
	require.Equal(t, 1, f.frames.RefCount(summary))

	s = f.reduce(s, DeleteComputation{TableID: 1})
	_, ok := s.Table(1)
	require.False(t, ok)
	require.Zero(t, f.frames.Len())
	require.True(t, df.Destroyed())
	require.True(t, summary.Destroyed())
	require.ErrorIs(t, lifetime.Err(), context.Canceled)
}

func TestDeleteWhileTaskScheduled(t *testing.T) {
	f := newFixture(t)
	s, df := f.computation(New())
	s, taskID := f.schedule(s, OrderingParams{InputDataTable: f.table, InputDataFrame: df})

	s = f.reduce(s, DeleteComputation{TableID: 1})
	require.False(t, df.Destroyed())

	// the task keeps its reference until it is unregistered
	s = f.reduce(s, UpdateSchedulerTask{TaskID: taskID, Patch: Failed(time.Now(), context.Canceled)})
	s = f.reduce(s, UnregisterSchedulerTask{TaskID: taskID})
	require.True(t, df.Destroyed())
	require.Empty(t, s.SchedulerTasks)
}

func TestOrphanReferences(t *testing.T) {
	f := newFixture(t)
	s := New()
	df := f.frame()
	defer df.Destroy()

	require.Same(t, s, f.reduce(s, CreatedDataFrame{TableID: 7, DataFrame: df}))
	require.Same(t, s, f.reduce(s, DeleteComputation{TableID: 7}))
	require.Same(t, s, f.reduce(s, UpdateSchedulerTask{TaskID: 3, Patch: Succeeded(time.Now())}))
	require.Same(t, s, f.reduce(s, UnregisterSchedulerTask{TaskID: 3}))
	require.Same(t, s, f.reduce(s, ScheduleTask{Task: SchedulerTask{TableID: 7, Value: OrderingParams{InputDataFrame: df}}}))
	require.Zero(t, f.frames.RefCount(df))

	s, _ = f.computation(s)
	require.Same(t, s, f.reduce(s, FilteredColumnAggregationSucceeded{TableID: 1, TaskID: 1, ColumnID: 0}))
	require.Same(t, s, f.reduce(s, ColumnAggregationSucceeded{TableID: 1, TaskID: 1, ColumnID: 5}))
}

func TestLatestTaskWins(t *testing.T) {
	f := newFixture(t)
	s, df := f.computation(New())
	params := FilteringParams{InputDataTable: f.table, InputDataFrame: df}

	s, first := f.schedule(s, params)
	s, second := f.schedule(s, params)
	require.Equal(t, 3, f.frames.RefCount(df))

	stale := f.frame()
	fresh := f.frame()
	s = f.reduce(s, TableFilteringSucceeded{TableID: 1, TaskID: first, FilterTable: &FilterTable{DataFrame: stale}})
	table, _ := s.Table(1)
	require.Nil(t, table.FilterTable)
	require.Zero(t, f.frames.RefCount(stale))

	s = f.reduce(s, TableFilteringSucceeded{TableID: 1, TaskID: second, FilterTable: &FilterTable{DataFrame: fresh}})
	table, _ = s.Table(1)
	require.Same(t, fresh, table.FilterTable.DataFrame)
	require.Equal(t, 1, f.frames.RefCount(fresh))

	// the superseded task may still report progress, its slot is not touched
	s = f.reduce(s, UpdateSchedulerTask{TaskID: first, Patch: Failed(time.Now(), context.Canceled)})
	table, _ = s.Table(1)
	require.Equal(t, second, table.Tasks.FilteringTask.TaskID)
	require.Equal(t, TaskRunning, table.Tasks.FilteringTask.Progress.Status)

	s = f.reduce(s, UnregisterSchedulerTask{TaskID: first}, UnregisterSchedulerTask{TaskID: second})
	require.Equal(t, 1, f.frames.RefCount(df))

	// clearing the filter releases the filter frame
	s, third := f.schedule(s, params)
	f.reduce(s, TableFilteringSucceeded{TableID: 1, TaskID: third})
	require.True(t, fresh.Destroyed())
	stale.Destroy()
}

func TestOrderingReplacesFrame(t *testing.T) {
	f := newFixture(t)
	s, df := f.computation(New())
	s, taskID := f.schedule(s, OrderingParams{InputDataTable: f.table, InputDataFrame: df})
	scheduled, _ := s.Task(taskID)

	ordered := f.frame()
	constraints := []transform.OrderByConstraint{{FieldName: "score"}}
	s = f.reduce(s, TableOrderingSucceeded{TableID: 1, TaskID: taskID, Ordered: &OrderedTable{DataFrame: ordered, DataTable: f.table, Constraints: constraints}})
	s = f.reduce(s, UnregisterSchedulerTask{TaskID: taskID})

	table, _ := s.Table(1)
	require.Equal(t, 3, table.Epoch)
	require.True(t, table.IsStale(scheduled))
	require.Same(t, ordered, table.DataFrame)
	require.Equal(t, constraints, table.OrderingConstraints)
	require.True(t, df.Destroyed())
	require.Equal(t, 1, f.frames.RefCount(ordered))
}

func TestColumnAggregates(t *testing.T) {
	f := newFixture(t)
	s, df := f.computation(New())
	column := schema.OrdinalColumn{InputFieldName: "score", InputFieldType: arrow.PrimitiveTypes.Float64}

	s, aggTask := f.schedule(s, ColumnAggregationParams{ColumnID: 0, ColumnGroup: column, InputDataFrame: df})
	binned := f.frame()
	s = f.reduce(s,
		ColumnAggregationSucceeded{TableID: 1, TaskID: aggTask, ColumnID: 0, Aggregation: OrdinalColumnAggregation{ColumnID: 0, Column: column, BinnedDataFrame: binned}},
		UnregisterSchedulerTask{TaskID: aggTask},
	)
	table, _ := s.Table(1)
	require.Len(t, table.ColumnAggregates, 1)
	require.Equal(t, schema.OrdinalColumnKind, table.ColumnAggregates[0].Kind())

	s, filteredTask := f.schedule(s, FilteredColumnAggregationParams{ColumnID: 0, ColumnGroup: column, InputDataFrame: df})
	filtered := f.frame()
	s = f.reduce(s,
		FilteredColumnAggregationSucceeded{TableID: 1, TaskID: filteredTask, ColumnID: 0, Filtered: &FilteredColumnAnalysis{DataFrame: filtered, Counts: []int64{1, 2}}},
		UnregisterSchedulerTask{TaskID: filteredTask},
	)
	table, _ = s.Table(1)
	require.Equal(t, []int64{1, 2}, table.ColumnAggregates[0].FilteredAnalysis().Counts)
	require.Equal(t, 1, f.frames.RefCount(filtered))

	// a new filter invalidates the filtered analyses
	s, filterTask := f.schedule(s, FilteringParams{InputDataFrame: df})
	s = f.reduce(s, TableFilteringSucceeded{TableID: 1, TaskID: filterTask}, UnregisterSchedulerTask{TaskID: filterTask})
	table, _ = s.Table(1)
	require.Nil(t, table.ColumnAggregates[0].FilteredAnalysis())
	require.True(t, filtered.Destroyed())
	require.False(t, binned.Destroyed())

	table, _ = s.Table(1)
	require.Contains(t, table.Tasks.ColumnAggregationTasks, 0)
	require.Contains(t, table.Tasks.FilteredColumnAggregationTasks, 0)

	// new system columns shift the column ids
	s, sysTask := f.schedule(s, SystemColumnParams{InputDataTable: f.table, InputDataFrame: df})
	extended := f.frame()
	s = f.reduce(s, SystemColumnComputationSucceeded{TableID: 1, TaskID: sysTask, Result: &SystemColumns{
		DataFrame:          extended,
		DataTable:          f.table,
		ColumnGroups:       []schema.ColumnGroup{schema.RowNumberColumn{RowNumberFieldName: "_rownum"}, column},
		RowNumberFieldName: "_rownum",
	}})
	table, _ = s.Table(1)
	require.Empty(t, table.ColumnAggregates)
	require.Empty(t, table.Tasks.ColumnAggregationTasks)
	require.Empty(t, table.Tasks.FilteredColumnAggregationTasks)
	require.True(t, binned.Destroyed())
	require.Equal(t, "_rownum", table.RowNumberColumnName)
	require.Equal(t, 3, table.Epoch)

	s = f.reduce(s, UnregisterSchedulerTask{TaskID: sysTask})
	require.True(t, df.Destroyed())
	require.ElementsMatch(t, []*worker.DataFrame{extended}, table.Frames())
}

func TestFilteredAnalysisOfReplacedFilter(t *testing.T) {
	f := newFixture(t)
	s, df := f.computation(New())
	column := schema.OrdinalColumn{InputFieldName: "score", InputFieldType: arrow.PrimitiveTypes.Float64}

	s, aggTask := f.schedule(s, ColumnAggregationParams{ColumnID: 0, ColumnGroup: column, InputDataFrame: df})
	s = f.reduce(s,
		ColumnAggregationSucceeded{TableID: 1, TaskID: aggTask, ColumnID: 0, Aggregation: OrdinalColumnAggregation{ColumnID: 0, Column: column, BinnedDataFrame: f.frame()}},
		UnregisterSchedulerTask{TaskID: aggTask},
	)

	applyFilter := func(s *ComputationState) (*ComputationState, *FilterTable) {
		filter := &FilterTable{DataFrame: f.frame(), DataTable: f.table, RowNumberFieldName: "score"}
		s, taskID := f.schedule(s, FilteringParams{InputDataFrame: df})
		return f.reduce(s, TableFilteringSucceeded{TableID: 1, TaskID: taskID, FilterTable: filter}, UnregisterSchedulerTask{TaskID: taskID}), filter
	}

	s, first := applyFilter(s)
	s, staleTask := f.schedule(s, FilteredColumnAggregationParams{ColumnID: 0, ColumnGroup: column, InputDataFrame: df, FilterTable: first})
	s, second := applyFilter(s)

	late := f.frame()
	s = f.reduce(s,
		FilteredColumnAggregationSucceeded{TableID: 1, TaskID: staleTask, ColumnID: 0, Filtered: &FilteredColumnAnalysis{DataFrame: late, Counts: []int64{9, 9}}},
		UnregisterSchedulerTask{TaskID: staleTask},
	)
	table, _ := s.Table(1)
	require.Same(t, second, table.FilterTable)
	require.Nil(t, table.ColumnAggregates[0].FilteredAnalysis())
	require.Equal(t, 0, f.frames.RefCount(late))
	require.True(t, first.DataFrame.Destroyed())
	late.Destroy()

	s, currentTask := f.schedule(s, FilteredColumnAggregationParams{ColumnID: 0, ColumnGroup: column, InputDataFrame: df, FilterTable: second})
	current := f.frame()
	s = f.reduce(s,
		FilteredColumnAggregationSucceeded{TableID: 1, TaskID: currentTask, ColumnID: 0, Filtered: &FilteredColumnAnalysis{DataFrame: current, Counts: []int64{1, 0}}},
		UnregisterSchedulerTask{TaskID: currentTask},
	)
	table, _ = s.Table(1)
	require.Equal(t, []int64{1, 0}, table.ColumnAggregates[0].FilteredAnalysis().Counts)
	require.Equal(t, 1, f.frames.RefCount(current))
}

func TestTaskTypeNames(t *testing.T) {
	require.Equal(t, "TABLE_FILTERING", TableFiltering.String())
	require.Equal(t, "COLUMN_AGGREGATION", ColumnAggregationTask.String())
	require.Equal(t, "FILTERED_COLUMN_AGGREGATION", FilteredColumnAggregationTask.String())
	require.Equal(t, "FAILED", TaskFailed.String())
	require.Panics(t, func() { _ = TaskType(99).String() })
	require.Equal(t, "SCHEDULE_TASK", ScheduleTask{}.Name())
}
