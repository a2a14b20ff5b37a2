package worker

import (
	"log/slog"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Routines  int `validate:"min=1,max=256"`
	QueueSize int `validate:"min=1"`

	// IPC copies every table crossing the worker boundary through an
	// lz4-compressed arrow IPC stream and descriptors through JSON.
	IPC bool
	// Debug dumps rejected descriptors.
	Debug bool

	Allocator memory.Allocator `validate:"-"`
	Logger    *slog.Logger      `validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		Routines:  runtime.NumCPU(),
		QueueSize: 64,
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	return validate.Struct(c)
}
