package state

import (
	"context"

	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
)

// Action is a state transition consumed by Reduce.
type Action interface {
	Name() string

	isAction()
}

type (
	ComputationFromQueryResult struct {
		TableID      int
		Table        arrow.Record
		ColumnGroups []schema.ColumnGroup
		Lifetime     context.Context
		Cancel       context.CancelFunc
	}

	CreatedDataFrame struct {
		TableID   int
		DataFrame *worker.DataFrame
	}

	DeleteComputation struct {
		TableID int
	}

	// ScheduleTask registers Task under the next scheduler task id. The
	// TaskID of Task is ignored.
	ScheduleTask struct {
		Task SchedulerTask
	}

	UpdateSchedulerTask struct {
		TaskID uint64
		Patch  ProgressPatch
	}

	UnregisterSchedulerTask struct {
		TaskID uint64
	}

	TableAggregationSucceeded struct {
		TableID      int
		TaskID       uint64
		Summary      *TableSummary
		ColumnGroups []schema.ColumnGroup
	}

	SystemColumnComputationSucceeded struct {
		TableID int
		TaskID  uint64
		Result  *SystemColumns
	}

	ColumnAggregationSucceeded struct {
		TableID     int
		TaskID      uint64
		ColumnID    int
		Aggregation ColumnAggregation
	}

	FilteredColumnAggregationSucceeded struct {
		TableID  int
		TaskID   uint64
		ColumnID int
		Filtered *FilteredColumnAnalysis
	}

	// TableFilteringSucceeded applies FilterTable, nil clears the filter.
	TableFilteringSucceeded struct {
		TableID     int
		TaskID      uint64
		FilterTable *FilterTable
	}

	TableOrderingSucceeded struct {
		TableID int
		TaskID  uint64
		Ordered *OrderedTable
	}
)

func (ComputationFromQueryResult) Name() string         { return "COMPUTATION_FROM_QUERY_RESULT" }
func (CreatedDataFrame) Name() string                   { return "CREATED_DATA_FRAME" }
func (DeleteComputation) Name() string                  { return "DELETE_COMPUTATION" }
func (ScheduleTask) Name() string                       { return "SCHEDULE_TASK" }
func (UpdateSchedulerTask) Name() string                { return "UPDATE_SCHEDULER_TASK" }
func (UnregisterSchedulerTask) Name() string            { return "UNREGISTER_SCHEDULER_TASK" }
func (TableAggregationSucceeded) Name() string          { return "TABLE_AGGREGATION_SUCCEEDED" }
func (SystemColumnComputationSucceeded) Name() string   { return "SYSTEM_COLUMN_COMPUTATION_SUCCEEDED" }
func (ColumnAggregationSucceeded) Name() string         { return "COLUMN_AGGREGATION_SUCCEEDED" }
func (FilteredColumnAggregationSucceeded) Name() string { return "FILTERED_COLUMN_AGGREGATION_SUCCEEDED" }
func (TableFilteringSucceeded) Name() string            { return "TABLE_FILTERING_SUCCEEDED" }
func (TableOrderingSucceeded) Name() string             { return "TABLE_ORDERING_SUCCEEDED" }

func (ComputationFromQueryResult) isAction()         {}
func (CreatedDataFrame) isAction()                   {}
func (DeleteComputation) isAction()                  {}
func (ScheduleTask) isAction()                       {}
func (UpdateSchedulerTask) isAction()                {}
func (UnregisterSchedulerTask) isAction()            {}
func (TableAggregationSucceeded) isAction()          {}
func (SystemColumnComputationSucceeded) isAction()   {}
func (ColumnAggregationSucceeded) isAction()         {}
func (FilteredColumnAggregationSucceeded) isAction() {}
func (TableFilteringSucceeded) isAction()            {}
func (TableOrderingSucceeded) isAction()             {}
