package todo

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Makepad-fr/tada-sync/internal/tablesvc"
)

type options struct {
	logger zerolog.Logger
	now    func() time.Time
	table  string
}

// Option configures a store.
type Option func(*options)

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces time.Now for id generation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTable sets the remote table name.
func WithTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: zerolog.Nop(),
		now:    time.Now,
		table:  tablesvc.DefaultTable,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
