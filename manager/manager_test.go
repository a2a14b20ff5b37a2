package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

const tableID = 1

func newTestManager(t *testing.T) (*Manager, *worker.Worker) {
	t.Helper()
	w, err := worker.New(worker.Config{Routines: 2, QueueSize: 16, Allocator: memory.NewGoAllocator()})
	require.NoError(t, err)
	t.Cleanup(w.Close)

	m, err := New(w, Config{BinCount: 4, FrequentValueLimit: 8, ColumnConcurrency: 2})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, w
}

// playersRecord has an ordinal, a string and a list column.
func playersRecord(t *testing.T) arrow.Record {
	t.Helper()
	mem := memory.NewGoAllocator()
	s := arrow.NewSchema([]arrow.Field{
		{Name: "score", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "team", Type: arrow.BinaryTypes.String},
		{Name: "badges", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32), Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, s)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{30, 10, 20, 40, 0, 25}, []bool{true, true, true, true, false, true})
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"red", "blue", "red", "green", "red", "blue"}, nil)

	lb := b.Field(2).(*array.ListBuilder)
	vb := lb.ValueBuilder().(*array.Int32Builder)
	for _, badges := range [][]int32{{1}, {1, 2}, nil, {1}, {3}, nil} {
		if badges == nil {
			lb.AppendNull()
			continue
		}
		lb.Append(true)
		vb.AppendValues(badges, nil)
	}

	rec := b.NewRecord()
	t.Cleanup(rec.Release)
	return rec
}

func tableState(t *testing.T, m *Manager) *state.TableComputationState {
	t.Helper()
	tc, ok := m.State().Table(tableID)
	require.True(t, ok)
	return tc
}

func TestConfigValidation(t *testing.T) {
	_, err := New(nil, Config{BinCount: 0, FrequentValueLimit: 1, ColumnConcurrency: 1})
	require.Error(t, err)

	t.Setenv("TABLESTATS_BINS", "8")
	cfg := DefaultConfig()
	require.Equal(t, 8, cfg.BinCount)
	require.NoError(t, cfg.Validate())
}

func TestAnalyzeTable(t *testing.T) {
	ctx := context.Background()
	m, w := newTestManager(t)

	require.NoError(t, m.ComputeTable(ctx, tableID, playersRecord(t)))
	require.Equal(t, 2, tableState(t, m).Epoch)
	require.NoError(t, m.AnalyzeTable(ctx, tableID))

	s := m.State()
	tc := tableState(t, m)
	require.Empty(t, s.SchedulerTasks)
	require.Equal(t, uint64(1+2+3), s.NextSchedulerTaskID)
	require.Equal(t, 3, tc.Epoch)
	require.Equal(t, "_rownum", tc.RowNumberColumnName)
	require.Len(t, tc.ColumnGroups, 4)
	require.Equal(t, int64(6), tc.TableSummary.CountStar())

	require.Equal(t, state.TaskSucceeded, tc.Tasks.TableAggregationTask.Progress.Status)
	require.Equal(t, state.TaskSucceeded, tc.Tasks.SystemColumnTask.Progress.Status)
	require.Len(t, tc.Tasks.ColumnAggregationTasks, 3)
	for _, task := range tc.Tasks.ColumnAggregationTasks {
		require.Equal(t, state.TaskSucceeded, task.Progress.Status)
	}

	require.Len(t, tc.ColumnAggregates, 3)
	ordinal := tc.ColumnAggregates[1].(state.OrdinalColumnAggregation)
	require.Equal(t, int64(5), ordinal.Analysis.CountNotNull)
	require.Equal(t, int64(1), ordinal.Analysis.CountNull)
	require.Equal(t, "10", ordinal.Analysis.MinValue)
	require.Equal(t, "40", ordinal.Analysis.MaxValue)
	require.Equal(t, 4, ordinal.Analysis.BinCount)
	require.Equal(t, []int64{1, 1, 2, 1}, ordinal.Analysis.BinValueCounts)

	team := tc.ColumnAggregates[2].(state.StringColumnAggregation)
	require.Equal(t, []string{"red", "blue", "green"}, team.Analysis.FrequentValueStrings)
	require.Equal(t, []int64{3, 2, 1}, team.Analysis.FrequentValueCounts)
	require.Equal(t, int64(3), team.Analysis.CountDistinct)

	badges := tc.ColumnAggregates[3].(state.ListColumnAggregation)
	require.Equal(t, int64(4), badges.Analysis.CountNotNull)
	require.Equal(t, int64(2), badges.Analysis.CountNull)
	require.Equal(t, []int64{2, 2, 1, 1}, badges.Analysis.FrequentValueCounts)
	require.Equal(t, []bool{false, true, false, false}, badges.Analysis.FrequentValueIsNull)
	require.Nil(t, badges.Analysis.FrequentValueIDs)

	// system columns, summary and three column aggregates
	require.Equal(t, 5, m.Frames().Len())
	require.Equal(t, 5, w.ResidentFrames())

	require.ErrorIs(t, m.AnalyzeTable(ctx, tableID), ErrAlreadyAnalyzed)
}

func TestAnalyzeZeroColumnTable(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	rec := array.NewRecord(arrow.NewSchema(nil, nil), nil, 3)
	defer rec.Release()
	require.NoError(t, m.ComputeTable(ctx, tableID, rec))
	require.NoError(t, m.AnalyzeTable(ctx, tableID))

	tc := tableState(t, m)
	require.Equal(t, uint64(3), m.State().NextSchedulerTaskID)
	require.Equal(t, int64(3), tc.TableSummary.CountStar())
	require.Equal(t, []schema.ColumnGroup{schema.RowNumberColumn{RowNumberFieldName: "_rownum"}}, tc.ColumnGroups)
	require.Empty(t, tc.ColumnAggregates)
}

func TestColumnFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.ComputeTable(ctx, tableID, playersRecord(t)))
	require.NoError(t, m.AnalyzeTable(ctx, tableID))

	tc := *tableState(t, m)
	broken := tc.ColumnGroups[2].(schema.StringColumn)
	broken.ValueIDFieldName = ""
	tc.ColumnGroups = append([]schema.ColumnGroup{}, tc.ColumnGroups...)
	tc.ColumnGroups[2] = broken

	m.aggregateColumns(ctx, &tc, tc.TableSummary)

	after := tableState(t, m)
	failed := after.Tasks.ColumnAggregationTasks[2]
	require.Equal(t, state.TaskFailed, failed.Progress.Status)
	require.ErrorIs(t, failed.Progress.FailedWithError, ErrMissingSystemColumn)
	require.Equal(t, state.TaskSucceeded, after.Tasks.ColumnAggregationTasks[1].Progress.Status)
	require.Equal(t, state.TaskSucceeded, after.Tasks.ColumnAggregationTasks[3].Progress.Status)
	require.Len(t, after.ColumnAggregates, 3)
	require.Empty(t, m.State().SchedulerTasks)
}

func TestFilterTable(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.ComputeTable(ctx, tableID, playersRecord(t)))
	require.NoError(t, m.AnalyzeTable(ctx, tableID))

	filters := []transform.FilterTransform{transform.Compare("score", transform.GreaterEqual, 25)}
	require.NoError(t, m.FilterTable(ctx, tableID, filters))
	tc := tableState(t, m)
	require.NotNil(t, tc.FilterTable)
	require.Equal(t, int64(3), tc.FilterTable.DataTable.NumRows())
	require.Equal(t, tc.Epoch, tc.FilterTable.InputEpoch)

	require.NoError(t, m.FilterColumns(ctx, tableID))
	tc = tableState(t, m)
	ordinal := tc.ColumnAggregates[1].FilteredAnalysis()
	require.NotNil(t, ordinal)
	require.Equal(t, []int64{0, 0, 2, 1}, ordinal.Counts)
	team := tc.ColumnAggregates[2].FilteredAnalysis()
	require.Equal(t, []int64{1, 1, 1}, team.Counts)
	require.InDelta(t, 1.0/3, team.Percentages[0], 1e-9)
	badges := tc.ColumnAggregates[3].FilteredAnalysis()
	require.Equal(t, []int64{2, 1, 0, 0}, badges.Counts)

	// clearing the filter drops the filtered analyses
	frames := m.Frames().Len()
	require.NoError(t, m.FilterTable(ctx, tableID, nil))
	tc = tableState(t, m)
	require.Nil(t, tc.FilterTable)
	require.Nil(t, tc.ColumnAggregates[1].FilteredAnalysis())
	require.Equal(t, frames-4, m.Frames().Len())
}

func TestCrossFilterTable(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.ComputeTable(ctx, tableID, playersRecord(t)))
	require.NoError(t, m.AnalyzeTable(ctx, tableID))

	tc := tableState(t, m)
	score := tc.ColumnGroups[1].(schema.OrdinalColumn)
	require.NotEmpty(t, score.BinFieldName)

	var filters state.CrossFilters
	filters.AddHistogramFilter(1, score, &[2]float64{2, 3})
	require.NoError(t, m.CrossFilterTable(ctx, tableID, &filters))

	tc = tableState(t, m)
	require.NotNil(t, tc.FilterTable)
	require.Equal(t, int64(2), tc.FilterTable.DataTable.NumRows())
	require.Equal(t, []int64{0, 0, 2, 0}, tc.ColumnAggregates[1].FilteredAnalysis().Counts)
	require.Equal(t, []int64{1, 1, 0}, tc.ColumnAggregates[2].FilteredAnalysis().Counts)

	// removing the last brush clears the filter
	filters.AddHistogramFilter(1, score, nil)
	require.NoError(t, m.CrossFilterTable(ctx, tableID, &filters))
	tc = tableState(t, m)
	require.Nil(t, tc.FilterTable)
	require.Nil(t, tc.ColumnAggregates[1].FilteredAnalysis())
}

func TestFilterFailure(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.ComputeTable(ctx, tableID, playersRecord(t)))
	require.NoError(t, m.AnalyzeTable(ctx, tableID))
	frames := m.Frames().Len()

	err := m.FilterTable(ctx, tableID, []transform.FilterTransform{transform.Compare("missing", transform.Equal, 1)})
	var terr *worker.TransformError
	require.True(t, errors.As(err, &terr))

	tc := tableState(t, m)
	require.Equal(t, state.TaskFailed, tc.Tasks.FilteringTask.Progress.Status)
	require.NotNil(t, tc.Tasks.FilteringTask.Progress.FailedAt)
	require.Nil(t, tc.FilterTable)
	require.Empty(t, m.State().SchedulerTasks)
	require.Equal(t, frames, m.Frames().Len())
}

func TestCancelledTask(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.ComputeTable(context.Background(), tableID, playersRecord(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.SortTable(ctx, tableID, []transform.OrderByConstraint{{FieldName: "score"}})
	require.ErrorIs(t, err, context.Canceled)

	tc := tableState(t, m)
	require.Equal(t, state.TaskFailed, tc.Tasks.OrderingTask.Progress.Status)
	require.Equal(t, 2, tc.Epoch)
	require.Equal(t, 1, m.Frames().Len())
}

func TestSortTable(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.ComputeTable(ctx, tableID, playersRecord(t)))
	before := tableState(t, m).DataFrame

	constraints := []transform.OrderByConstraint{{FieldName: "score", Ascending: false}}
	require.NoError(t, m.SortTable(ctx, tableID, constraints))

	tc := tableState(t, m)
	require.Equal(t, 3, tc.Epoch)
	require.Equal(t, constraints, tc.OrderingConstraints)
	require.NotSame(t, before, tc.DataFrame)
	require.True(t, before.Destroyed())
	require.Equal(t, int64(40), tc.DataTable.Column(0).(*array.Int64).Value(0))
	require.True(t, tc.Tasks.OrderingTask.Progress.Status.Terminal())
}

func TestUnknownTableAndDelete(t *testing.T) {
	ctx := context.Background()
	m, w := newTestManager(t)

	require.ErrorIs(t, m.AnalyzeTable(ctx, 9), ErrUnknownTable)
	require.ErrorIs(t, m.FilterTable(ctx, 9, nil), ErrUnknownTable)
	require.ErrorIs(t, m.DeleteComputation(9), ErrUnknownTable)

	require.NoError(t, m.ComputeTable(ctx, tableID, playersRecord(t)))
	require.NoError(t, m.AnalyzeTable(ctx, tableID))
	lifetime := tableState(t, m).DataTableLifetime

	require.NoError(t, m.DeleteComputation(tableID))
	_, ok := m.State().Table(tableID)
	require.False(t, ok)
	require.Zero(t, m.Frames().Len())
	require.Zero(t, w.ResidentFrames())
	require.ErrorIs(t, lifetime.Err(), context.Canceled)
}
