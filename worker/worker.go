package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fatih/color"
	"golang.org/x/sync/singleflight"
)

type jobResult struct {
	value any
	err   error
}

type job struct {
	ctx  context.Context
	name string
	run  func(ctx context.Context) (any, error)
	done chan jobResult
}

// Worker is an in-process columnar compute backend. All work is executed on a
// fixed pool of worker threads; callers block until their job completes or
// their context ends.
type Worker struct {
	config Config
	mem    memory.Allocator
	logger *slog.Logger

	frames *frameStore
	jobs   chan *job
	reads  singleflight.Group

	// lifetime bounds work shared between callers
	lifetime context.Context
	stop     context.CancelFunc

	threads   *sync.WaitGroup
	closed    atomic.Bool
	closeLock sync.RWMutex
}

func New(config Config) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}

	mem := config.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lifetime, stop := context.WithCancel(context.Background())
	w := &Worker{
		config:   config,
		mem:      mem,
		logger:   logger.With("ctx", "worker"),
		frames:   newFrameStore(),
		jobs:     make(chan *job, config.QueueSize),
		lifetime: lifetime,
		stop:     stop,
	}
	w.threads = StartWorkerThreads(config.Routines, w.thread)
	return w, nil
}

func StartWorkerThreads(routines int, thread func(threadId int)) *sync.WaitGroup {
	wg := &sync.WaitGroup{}
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func(threadId int) {
			defer wg.Done()
			thread(threadId)
		}(i)
	}
	return wg
}

func (w *Worker) thread(threadId int) {

	w.logger.Debug("worker started", "thread_id", threadId)
	defer w.logger.Debug("worker stopped", "thread_id", threadId)

	for task := range w.jobs {

		if err := task.ctx.Err(); err != nil {
			if w.config.Debug {
				color.Yellow("skipped %s because of error: %s", task.name, err.Error())
			}
			task.done <- jobResult{err: err}
			continue
		}

		value, err := task.run(task.ctx)
		task.done <- jobResult{value: value, err: err}
	}
}

// submit runs fn on a worker thread and waits for the result.
func (w *Worker) submit(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	w.closeLock.RLock()
	if w.closed.Load() {
		w.closeLock.RUnlock()
		return nil, ErrWorkerClosed
	}

	task := &job{
		ctx:  ctx,
		name: name,
		run:  fn,
		done: make(chan jobResult, 1),
	}

	select {
	case w.jobs <- task:
		w.closeLock.RUnlock()
	case <-ctx.Done():
		w.closeLock.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-task.done:
		return res.value, res.err
	case <-ctx.Done():
		// late results are released once the job finishes
		go discardLate(task.done)
		return nil, ctx.Err()
	}
}

func discardLate(done <-chan jobResult) {
	res := <-done
	switch v := res.value.(type) {
	case *DataFrame:
		v.Destroy()
	case arrow.Record:
		v.Release()
	}
}

// Close stops the worker threads and releases every resident frame.
func (w *Worker) Close() {
	w.closeLock.Lock()
	if !w.closed.CompareAndSwap(false, true) {
		w.closeLock.Unlock()
		return
	}
	w.stop()
	close(w.jobs)
	w.closeLock.Unlock()

	w.threads.Wait()
	w.frames.clear()
}

// ResidentFrames returns the number of frames held by the worker.
func (w *Worker) ResidentFrames() int {
	return w.frames.len()
}

func (w *Worker) Allocator() memory.Allocator {
	return w.mem
}

// CreateDataFrame copies rec into the worker and returns a handle to it.
// The caller keeps its own reference to rec.
func (w *Worker) CreateDataFrame(ctx context.Context, rec arrow.Record) (*DataFrame, error) {
	var payload []byte
	if w.config.IPC {
		encoded, err := encodeRecord(rec, w.mem)
		if err != nil {
			return nil, err
		}
		payload = encoded
	}

	// whoever claims first decides over the retained input
	var claimed atomic.Bool
	rec.Retain()

	v, err := w.submit(ctx, "create", func(ctx context.Context) (any, error) {
		if !claimed.CompareAndSwap(false, true) {
			return nil, context.Canceled
		}
		if payload == nil {
			return w.adopt(rec), nil
		}
		rec.Release()

		decoded, err := decodeRecord(payload, w.mem)
		if err != nil {
			return nil, err
		}
		return w.adopt(decoded), nil
	})
	if err != nil {
		if claimed.CompareAndSwap(false, true) {
			rec.Release()
		}
		return nil, err
	}
	return v.(*DataFrame), nil
}

func (w *Worker) adopt(rec arrow.Record) *DataFrame {
	id := w.frames.put(rec)
	return &DataFrame{id: id, worker: w}
}
