package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ankoh/dashql-sub001/registry"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
)

var (
	ErrNoDataFrame         = errors.New("table has no data frame")
	ErrMissingSystemColumn = errors.New("missing system column")
	ErrMissingStats        = errors.New("column has no table statistics")
)

const (
	DefaultBinCount           = 16
	DefaultFrequentValueLimit = 32
)

// Options are the tuning knobs of the column summaries.
type Options struct {
	BinCount           int
	FrequentValueLimit int
}

func (o Options) withDefaults() Options {
	if o.BinCount <= 0 {
		o.BinCount = DefaultBinCount
	}
	if o.FrequentValueLimit <= 0 {
		o.FrequentValueLimit = DefaultFrequentValueLimit
	}
	return o
}

// Scope owns the frames created by a task until the state acquires them.
type Scope = registry.Scope[*worker.DataFrame]

// derive runs desc on in and reads the result. The new frame is owned by scope.
func derive(ctx context.Context, scope *Scope, logger *slog.Logger, tag string, in *worker.DataFrame, desc *transform.DataFrameTransform, aux ...*worker.DataFrame) (*worker.DataFrame, arrow.Record, error) {
	if in == nil {
		return nil, nil, ErrNoDataFrame
	}
	for _, df := range aux {
		if df == nil {
			return nil, nil, fmt.Errorf("%s: %w", tag, ErrNoDataFrame)
		}
	}

	start := time.Now()
	out, err := in.Transform(ctx, desc, aux...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s failed: %w", tag, err)
	}
	scope.Acquire(out)

	rec, err := out.ReadTable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read %s result: %w", tag, err)
	}
	logger.Info(tag, "duration", time.Since(start), "rows", rec.NumRows())
	return out, rec, nil
}

func column[T arrow.Array](rec arrow.Record, name string) (T, error) {
	var zero T
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return zero, fmt.Errorf("field `%s` not found", name)
	}
	col, ok := rec.Column(indices[0]).(T)
	if !ok {
		return zero, fmt.Errorf("field `%s` has unexpected type %s", name, rec.Column(indices[0]).DataType())
	}
	return col, nil
}
