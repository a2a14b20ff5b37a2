package state

import (
	"fmt"
	"time"

	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
)

type TaskStatus uint8

const (
	TaskRunning TaskStatus = iota
	TaskSucceeded
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskRunning:
		return "RUNNING"
	case TaskSucceeded:
		return "SUCCEEDED"
	case TaskFailed:
		return "FAILED"
	default:
		panic(fmt.Sprintf("unknown task status %d", uint8(s)))
	}
}

func (s TaskStatus) Terminal() bool {
	return s != TaskRunning
}

type TaskType uint8

const (
	TableFiltering TaskType = iota
	TableOrdering
	TableAggregation
	SystemColumnComputation
	ColumnAggregationTask
	FilteredColumnAggregationTask
)

func (t TaskType) String() string {
	switch t {
	case TableFiltering:
		return "TABLE_FILTERING"
	case TableOrdering:
		return "TABLE_ORDERING"
	case TableAggregation:
		return "TABLE_AGGREGATION"
	case SystemColumnComputation:
		return "SYSTEM_COLUMN_COMPUTATION"
	case ColumnAggregationTask:
		return "COLUMN_AGGREGATION"
	case FilteredColumnAggregationTask:
		return "FILTERED_COLUMN_AGGREGATION"
	default:
		panic(fmt.Sprintf("unknown task type %d", uint8(t)))
	}
}

type TaskProgress struct {
	Status          TaskStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	FailedAt        *time.Time
	FailedWithError error
}

// ProgressPatch is a partial TaskProgress; nil fields are left untouched.
type ProgressPatch struct {
	Status          *TaskStatus
	StartedAt       *time.Time
	CompletedAt     *time.Time
	FailedAt        *time.Time
	FailedWithError error
}

func (p TaskProgress) apply(patch ProgressPatch) TaskProgress {
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		p.StartedAt = *patch.StartedAt
	}
	if patch.CompletedAt != nil {
		p.CompletedAt = patch.CompletedAt
	}
	if patch.FailedAt != nil {
		p.FailedAt = patch.FailedAt
	}
	if patch.FailedWithError != nil {
		p.FailedWithError = patch.FailedWithError
	}
	return p
}

func Running(at time.Time) ProgressPatch {
	status := TaskRunning
	return ProgressPatch{Status: &status, StartedAt: &at}
}

func Succeeded(at time.Time) ProgressPatch {
	status := TaskSucceeded
	return ProgressPatch{Status: &status, CompletedAt: &at}
}

func Failed(at time.Time, err error) ProgressPatch {
	status := TaskFailed
	return ProgressPatch{Status: &status, FailedAt: &at, FailedWithError: err}
}

// TaskParams is the parameter set of a scheduler task. Implemented by
// FilteringParams, OrderingParams, TableAggregationParams, SystemColumnParams,
// ColumnAggregationParams and FilteredColumnAggregationParams.
type TaskParams interface {
	Type() TaskType
	// DataFrames lists the frames the task holds references to while scheduled.
	DataFrames() []*worker.DataFrame

	isTaskParams()
}

type (
	FilteringParams struct {
		InputDataTable      arrow.Record
		InputDataFrame      *worker.DataFrame
		RowNumberColumnName string
		Filters             []transform.FilterTransform
	}

	OrderingParams struct {
		InputDataTable arrow.Record
		InputDataFrame *worker.DataFrame
		Constraints    []transform.OrderByConstraint
	}

	TableAggregationParams struct {
		InputDataTable arrow.Record
		InputDataFrame *worker.DataFrame
		ColumnGroups   []schema.ColumnGroup
	}

	SystemColumnParams struct {
		InputDataTable arrow.Record
		InputDataFrame *worker.DataFrame
		TableSummary   *TableSummary
		ColumnGroups   []schema.ColumnGroup
	}

	ColumnAggregationParams struct {
		ColumnID       int
		ColumnGroup    schema.ColumnGroup
		InputDataFrame *worker.DataFrame
		TableSummary   *TableSummary
	}

	FilteredColumnAggregationParams struct {
		ColumnID       int
		ColumnGroup    schema.ColumnGroup
		InputDataFrame *worker.DataFrame
		TableSummary   *TableSummary
		FilterTable    *FilterTable
	}
)

func (FilteringParams) Type() TaskType                 { return TableFiltering }
func (OrderingParams) Type() TaskType                  { return TableOrdering }
func (TableAggregationParams) Type() TaskType          { return TableAggregation }
func (SystemColumnParams) Type() TaskType              { return SystemColumnComputation }
func (ColumnAggregationParams) Type() TaskType         { return ColumnAggregationTask }
func (FilteredColumnAggregationParams) Type() TaskType { return FilteredColumnAggregationTask }

func (p FilteringParams) DataFrames() []*worker.DataFrame {
	return frames(p.InputDataFrame)
}

func (p OrderingParams) DataFrames() []*worker.DataFrame {
	return frames(p.InputDataFrame)
}

func (p TableAggregationParams) DataFrames() []*worker.DataFrame {
	return frames(p.InputDataFrame)
}

func (p SystemColumnParams) DataFrames() []*worker.DataFrame {
	return frames(p.InputDataFrame, p.TableSummary.frame())
}

func (p ColumnAggregationParams) DataFrames() []*worker.DataFrame {
	return frames(p.InputDataFrame, p.TableSummary.frame())
}

func (p FilteredColumnAggregationParams) DataFrames() []*worker.DataFrame {
	return frames(p.InputDataFrame, p.TableSummary.frame(), p.FilterTable.frame())
}

func (FilteringParams) isTaskParams()                 {}
func (OrderingParams) isTaskParams()                  {}
func (TableAggregationParams) isTaskParams()          {}
func (SystemColumnParams) isTaskParams()              {}
func (ColumnAggregationParams) isTaskParams()         {}
func (FilteredColumnAggregationParams) isTaskParams() {}

func frames(candidates ...*worker.DataFrame) []*worker.DataFrame {
	out := make([]*worker.DataFrame, 0, len(candidates))
	for _, df := range candidates {
		if df != nil {
			out = append(out, df)
		}
	}
	return out
}

// SchedulerTask is a tracked unit of asynchronous work.
type SchedulerTask struct {
	TaskID     uint64
	TableID    int
	TableEpoch int
	Value      TaskParams
	Progress   TaskProgress
}

func (t *SchedulerTask) Type() TaskType {
	return t.Value.Type()
}

// ColumnID returns the column of per-column tasks.
func (t *SchedulerTask) ColumnID() (int, bool) {
	switch v := t.Value.(type) {
	case ColumnAggregationParams:
		return v.ColumnID, true
	case FilteredColumnAggregationParams:
		return v.ColumnID, true
	default:
		return 0, false
	}
}
