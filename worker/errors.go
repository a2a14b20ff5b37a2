package worker

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerClosed        = errors.New("worker closed")
	ErrDataFrameDestroyed  = errors.New("data frame destroyed")
	ErrAuxiliaryFrameIndex = errors.New("auxiliary frame index out of range")
)

// TransformError is returned when the worker rejects a transform descriptor
// or cannot evaluate it against its input.
type TransformError struct {
	Stage string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed at %s: %s", e.Stage, e.Err.Error())
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

func transformErr(stage string, format string, args ...any) error {
	return &TransformError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
