package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ankoh/dashql-sub001/transform"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
)

// DataFrame is a handle to a worker-resident table. Handles are compared by
// identity and never expose the table directly.
type DataFrame struct {
	id     uuid.UUID
	worker *Worker

	destroyed atomic.Bool
}

func (df *DataFrame) ID() uuid.UUID {
	return df.id
}

func (df *DataFrame) String() string {
	return "frame:" + df.id.String()
}

// Destroyed reports whether Destroy was called on this handle.
func (df *DataFrame) Destroyed() bool {
	return df.destroyed.Load()
}

// Stats returns the worker-side statistics of the frame.
func (df *DataFrame) Stats() (*FrameStats, bool) {
	return df.worker.frames.stats(df.id)
}

// Destroy releases the worker-resident table. Repeated calls are no-ops.
func (df *DataFrame) Destroy() {
	if !df.destroyed.CompareAndSwap(false, true) {
		return
	}
	df.worker.frames.drop(df.id)
}

// Transform derives a new data frame. Auxiliary frames are addressed by their
// position in aux from the descriptor.
func (df *DataFrame) Transform(ctx context.Context, desc *transform.DataFrameTransform, aux ...*DataFrame) (*DataFrame, error) {
	w := df.worker

	var encoded []byte
	if w.config.IPC {
		data, err := transform.Encode(desc)
		if err != nil {
			return nil, &TransformError{Stage: "descriptor", Err: err}
		}
		encoded = data
	} else if err := transform.Validate(desc); err != nil {
		return nil, &TransformError{Stage: "descriptor", Err: err}
	}

	v, err := w.submit(ctx, "transform", func(ctx context.Context) (any, error) {
		if encoded != nil {
			decoded, err := transform.Decode(encoded)
			if err != nil {
				return nil, &TransformError{Stage: "descriptor", Err: err}
			}
			desc = decoded
		}

		input, err := df.pin()
		if err != nil {
			return nil, err
		}
		defer input.Release()

		auxRecords := make([]arrow.Record, 0, len(aux))
		defer func() {
			for _, rec := range auxRecords {
				rec.Release()
			}
		}()
		for _, a := range aux {
			rec, err := a.pin()
			if err != nil {
				return nil, fmt.Errorf("auxiliary %s: %w", a, err)
			}
			auxRecords = append(auxRecords, rec)
		}

		out, err := execute(ctx, w.mem, input, auxRecords, desc)
		if err != nil {
			return nil, err
		}
		return w.adopt(out), nil
	})
	if err != nil {
		if w.config.Debug {
			w.logger.Error("transform rejected", "frame", df.String(), "error", err, "descriptor", spew.Sdump(desc))
		}
		return nil, err
	}
	return v.(*DataFrame), nil
}

// ReadTable materializes the frame. The returned record belongs to the caller.
func (df *DataFrame) ReadTable(ctx context.Context) (arrow.Record, error) {
	w := df.worker

	if !w.config.IPC {
		v, err := w.submit(ctx, "read", func(ctx context.Context) (any, error) {
			return df.pin()
		})
		if err != nil {
			return nil, err
		}
		return v.(arrow.Record), nil
	}

	// concurrent reads of one frame share a single encoding pass that no
	// single caller can cancel
	shared := w.reads.DoChan(df.id.String(), func() (any, error) {
		jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		defer context.AfterFunc(w.lifetime, cancel)()

		return w.submit(jobCtx, "read", func(ctx context.Context) (any, error) {
			rec, err := df.pin()
			if err != nil {
				return nil, err
			}
			defer rec.Release()
			return encodeRecord(rec, w.mem)
		})
	})

	select {
	case res := <-shared:
		if res.Err != nil {
			return nil, res.Err
		}
		return decodeRecord(res.Val.([]byte), w.mem)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (df *DataFrame) pin() (arrow.Record, error) {
	if df.destroyed.Load() {
		return nil, fmt.Errorf("%s: %w", df, ErrDataFrameDestroyed)
	}
	rec, ok := df.worker.frames.acquire(df.id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", df, ErrDataFrameDestroyed)
	}
	return rec, nil
}
