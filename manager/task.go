package manager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ankoh/dashql-sub001/manager/executor"
	"github.com/ankoh/dashql-sub001/manager/state"
)

// handler runs a scheduled task and returns the action applying its result.
type handler func(ctx context.Context, task *state.SchedulerTask, scope *executor.Scope, logger *slog.Logger) (state.Action, error)

func slotOf(task *state.SchedulerTask) slotKey {
	column, _ := task.ColumnID()
	return slotKey{table: task.TableID, taskType: task.Type(), column: column}
}

// taskContext ends with ctx, the table lifetime or the task timeout.
func (m *Manager) taskContext(ctx context.Context, lifetime context.Context) (context.Context, context.CancelFunc) {
	taskCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(lifetime, cancel)
	if m.config.TaskTimeout <= 0 {
		return taskCtx, func() {
			stop()
			cancel()
		}
	}
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, m.config.TaskTimeout)
	return taskCtx, func() {
		stop()
		cancelTimeout()
		cancel()
	}
}

// schedule registers a task and supersedes the running task of the same slot.
func (m *Manager) schedule(ctx context.Context, tableID int, params state.TaskParams) (*state.SchedulerTask, context.Context, context.CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.state.Table(tableID)
	if !ok {
		return nil, nil, nil, fmt.Errorf("table %d: %w", tableID, ErrUnknownTable)
	}
	taskID := m.state.NextSchedulerTaskID
	m.state = state.Reduce(m.state, state.ScheduleTask{Task: state.SchedulerTask{
		TableID:  tableID,
		Value:    params,
		Progress: state.TaskProgress{StartedAt: time.Now()},
	}}, m.frames, m.logger)

	task, ok := m.state.Task(taskID)
	if !ok {
		return nil, nil, nil, fmt.Errorf("table %d: %w", tableID, ErrUnknownTable)
	}

	taskCtx, cancel := m.taskContext(ctx, table.DataTableLifetime)
	key := slotOf(task)
	if prev, ok := m.running[key]; ok {
		m.logger.Info("superseding running task", "task_id", prev.id, "by", taskID)
		prev.cancel()
	}
	m.running[key] = runningTask{id: taskID, cancel: cancel}
	return task, taskCtx, cancel, nil
}

func (m *Manager) finish(task *state.SchedulerTask, cancel context.CancelFunc) {
	cancel()

	m.mu.Lock()
	key := slotOf(task)
	if r, ok := m.running[key]; ok && r.id == task.TaskID {
		delete(m.running, key)
	}
	m.mu.Unlock()

	m.dispatch(state.UnregisterSchedulerTask{TaskID: task.TaskID})
}

// runTask drives a task from RUNNING to SUCCEEDED or FAILED and unregisters
// it afterwards. Frames created by the handler are released unless the
// success action retained them.
func (m *Manager) runTask(ctx context.Context, tableID int, params state.TaskParams, run handler) error {
	task, taskCtx, cancel, err := m.schedule(ctx, tableID, params)
	if err != nil {
		return err
	}
	defer m.finish(task, cancel)

	logger := m.logger.With("task_id", task.TaskID, "task", task.Type().String(), "table_id", tableID)
	started := time.Now()
	m.dispatch(state.UpdateSchedulerTask{TaskID: task.TaskID, Patch: state.Running(started)})
	logger.Debug("task started")

	scope := m.frames.Scope()
	defer scope.Close()

	action, err := run(taskCtx, task, scope, logger)
	if err != nil {
		logger.Error("task failed", "error", err)
		m.dispatch(state.UpdateSchedulerTask{TaskID: task.TaskID, Patch: state.Failed(time.Now(), err)})
		return err
	}
	if action != nil {
		m.dispatch(action)
	}
	m.dispatch(state.UpdateSchedulerTask{TaskID: task.TaskID, Patch: state.Succeeded(time.Now())})
	logger.Info("task succeeded", "duration", time.Since(started))
	return nil
}
