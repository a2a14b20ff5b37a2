package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ankoh/dashql-sub001/manager/executor"
	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/registry"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
)

var (
	ErrUnknownTable        = errors.New("unknown table")
	ErrAlreadyAnalyzed     = errors.New("table already carries system columns")
	ErrNoDataFrame         = executor.ErrNoDataFrame
	ErrMissingSystemColumn = executor.ErrMissingSystemColumn
)

// Binding creates data frames in a compute backend.
type Binding interface {
	CreateDataFrame(ctx context.Context, rec arrow.Record) (*worker.DataFrame, error)
}

type slotKey struct {
	table    int
	taskType state.TaskType
	column   int
}

type runningTask struct {
	id     uint64
	cancel context.CancelFunc
}

// Manager owns the computation state of all tables. State transitions are
// serialized, handlers run on the calling goroutine.
type Manager struct {
	binding Binding
	config  Config
	logger  *slog.Logger
	frames  *registry.Registry[*worker.DataFrame]

	mu      sync.Mutex
	state   *state.ComputationState
	running map[slotKey]runningTask
}

func New(binding Binding, config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manager config: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		binding: binding,
		config:  config,
		logger:  logger.With("ctx", "scheduler"),
		frames:  registry.New[*worker.DataFrame](logger),
		state:   state.New(),
		running: map[slotKey]runningTask{},
	}, nil
}

// State returns the current immutable snapshot.
func (m *Manager) State() *state.ComputationState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Frames exposes the data frame registry.
func (m *Manager) Frames() *registry.Registry[*worker.DataFrame] {
	return m.frames
}

func (m *Manager) dispatch(action state.Action) *state.ComputationState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state.Reduce(m.state, action, m.frames, m.logger)
	return m.state
}

func (m *Manager) table(tableID int) (*state.TableComputationState, error) {
	t, ok := m.State().Table(tableID)
	if !ok {
		return nil, fmt.Errorf("table %d: %w", tableID, ErrUnknownTable)
	}
	return t, nil
}

// tableWithFrame returns the table when it has a data frame.
func (m *Manager) tableWithFrame(tableID int) (*state.TableComputationState, error) {
	t, err := m.table(tableID)
	if err != nil {
		return nil, err
	}
	if t.DataFrame == nil {
		return nil, fmt.Errorf("table %d: %w", tableID, ErrNoDataFrame)
	}
	return t, nil
}

// ComputeTable registers a query result and copies it into the backend.
// A previous computation of the same table is replaced.
func (m *Manager) ComputeTable(ctx context.Context, tableID int, rec arrow.Record) error {
	lifetime, cancel := context.WithCancel(context.Background())
	m.dispatch(state.ComputationFromQueryResult{
		TableID:      tableID,
		Table:        rec,
		ColumnGroups: schema.ClassifyColumns(rec.Schema()),
		Lifetime:     lifetime,
		Cancel:       cancel,
	})

	df, err := m.binding.CreateDataFrame(ctx, rec)
	if err != nil {
		return fmt.Errorf("unable to create data frame for table %d: %w", tableID, err)
	}
	scope := m.frames.Scope()
	defer scope.Close()
	scope.Acquire(df)

	s := m.dispatch(state.CreatedDataFrame{TableID: tableID, DataFrame: df})
	if _, ok := s.Table(tableID); !ok {
		return fmt.Errorf("table %d: %w", tableID, ErrUnknownTable)
	}
	m.logger.Info("created data frame", "table_id", tableID, "frame", df.String(), "rows", rec.NumRows())
	return nil
}

// DeleteComputation drops a table and cancels its in-flight tasks.
func (m *Manager) DeleteComputation(tableID int) error {
	if _, err := m.table(tableID); err != nil {
		return err
	}
	m.dispatch(state.DeleteComputation{TableID: tableID})
	return nil
}

// Close deletes every table computation.
func (m *Manager) Close() {
	for id := range m.State().TableComputations {
		m.dispatch(state.DeleteComputation{TableID: id})
	}
}
