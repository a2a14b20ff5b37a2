package state

import (
	"context"
	"errors"
	"maps"

	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
)

var ErrOrphanTaskReference = errors.New("orphan task reference")

// FirstEpoch is the epoch of a table before it receives a data frame.
const FirstEpoch = 1

// ComputationState is an immutable snapshot. Reduce never mutates its input.
type ComputationState struct {
	TableComputations   map[int]*TableComputationState
	SchedulerTasks      map[uint64]*SchedulerTask
	NextSchedulerTaskID uint64
}

func New() *ComputationState {
	return &ComputationState{
		TableComputations:   map[int]*TableComputationState{},
		SchedulerTasks:      map[uint64]*SchedulerTask{},
		NextSchedulerTaskID: 1,
	}
}

func (s *ComputationState) Table(tableID int) (*TableComputationState, bool) {
	t, ok := s.TableComputations[tableID]
	return t, ok
}

func (s *ComputationState) Task(taskID uint64) (*SchedulerTask, bool) {
	t, ok := s.SchedulerTasks[taskID]
	return t, ok
}

// TaskSlots holds the latest task of every kind for one table. Slots outlive
// the global task entry so the last status stays observable.
type TaskSlots struct {
	FilteringTask                  *SchedulerTask
	OrderingTask                   *SchedulerTask
	TableAggregationTask           *SchedulerTask
	SystemColumnTask               *SchedulerTask
	ColumnAggregationTasks         map[int]*SchedulerTask
	FilteredColumnAggregationTasks map[int]*SchedulerTask
}

func (s *TaskSlots) get(t *SchedulerTask) *SchedulerTask {
	switch t.Type() {
	case TableFiltering:
		return s.FilteringTask
	case TableOrdering:
		return s.OrderingTask
	case TableAggregation:
		return s.TableAggregationTask
	case SystemColumnComputation:
		return s.SystemColumnTask
	case ColumnAggregationTask:
		id, _ := t.ColumnID()
		return s.ColumnAggregationTasks[id]
	case FilteredColumnAggregationTask:
		id, _ := t.ColumnID()
		return s.FilteredColumnAggregationTasks[id]
	}
	return nil
}

// set writes t into its slot. s must already be a private copy.
func (s *TaskSlots) set(t *SchedulerTask) {
	switch t.Type() {
	case TableFiltering:
		s.FilteringTask = t
	case TableOrdering:
		s.OrderingTask = t
	case TableAggregation:
		s.TableAggregationTask = t
	case SystemColumnComputation:
		s.SystemColumnTask = t
	case ColumnAggregationTask:
		id, _ := t.ColumnID()
		s.ColumnAggregationTasks = maps.Clone(s.ColumnAggregationTasks)
		if s.ColumnAggregationTasks == nil {
			s.ColumnAggregationTasks = map[int]*SchedulerTask{}
		}
		s.ColumnAggregationTasks[id] = t
	case FilteredColumnAggregationTask:
		id, _ := t.ColumnID()
		s.FilteredColumnAggregationTasks = maps.Clone(s.FilteredColumnAggregationTasks)
		if s.FilteredColumnAggregationTasks == nil {
			s.FilteredColumnAggregationTasks = map[int]*SchedulerTask{}
		}
		s.FilteredColumnAggregationTasks[id] = t
	}
}

// holds reports whether the slot of t currently holds the task with taskID.
func (s *TaskSlots) holds(t *SchedulerTask, taskID uint64) bool {
	current := s.get(t)
	return current != nil && current.TaskID == taskID
}

// TableComputationState is the per-table computation state.
type TableComputationState struct {
	TableID               int
	DataTable             arrow.Record
	DataTableFieldsByName map[string]int
	ColumnGroups          []schema.ColumnGroup
	DataFrame             *worker.DataFrame
	DataTableLifetime     context.Context
	Epoch                 int

	RowNumberColumnName string
	TableSummary        *TableSummary
	FilterTable         *FilterTable
	OrderingConstraints []transform.OrderByConstraint
	ColumnAggregates    map[int]ColumnAggregation

	Tasks TaskSlots

	cancelLifetime context.CancelFunc
}

// IsStale reports whether task was scheduled against an older data frame.
func (t *TableComputationState) IsStale(task *SchedulerTask) bool {
	return task.TableEpoch != t.Epoch
}

// Frames returns every data frame the table holds a reference to.
func (t *TableComputationState) Frames() []*worker.DataFrame {
	out := frames(t.DataFrame, t.TableSummary.frame(), t.FilterTable.frame())
	for _, agg := range t.ColumnAggregates {
		out = append(out, agg.DataFrames()...)
	}
	return out
}

func (t *TableComputationState) clone() *TableComputationState {
	next := *t
	return &next
}

// FieldsByName indexes the fields of a record.
func FieldsByName(rec arrow.Record) map[string]int {
	out := make(map[string]int, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		out[f.Name] = i
	}
	return out
}
