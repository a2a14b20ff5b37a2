package manager

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/ankoh/dashql-sub001/manager/executor"
	"github.com/ankoh/dashql-sub001/utils"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	BinCount           int `validate:"min=1,max=1024"`
	FrequentValueLimit int `validate:"min=1"`
	ColumnConcurrency  int `validate:"min=1"`

	// TaskTimeout bounds every task, 0 disables the deadline.
	TaskTimeout time.Duration `validate:"min=0"`

	Logger *slog.Logger `validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		BinCount:           int(utils.GetEnvOrDefaultInt("TABLESTATS_BINS", executor.DefaultBinCount)),
		FrequentValueLimit: executor.DefaultFrequentValueLimit,
		ColumnConcurrency:  runtime.NumCPU(),
		TaskTimeout:        utils.GetEnvOrDefaultDuration("TABLESTATS_TIMEOUT", 0),
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	return validate.Struct(c)
}

func (c Config) options() executor.Options {
	return executor.Options{
		BinCount:           c.BinCount,
		FrequentValueLimit: c.FrequentValueLimit,
	}
}
