package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmora/agentbridge/engine/cli"
)

// DefaultTurnTimeout bounds a single prompt turn when no timeout is set.
const DefaultTurnTimeout = 5 * time.Minute

type options struct {
	turnTimeout time.Duration
	logger      *slog.Logger
	newID       func() string
	procOpts    []cli.Option
}

// Option configures a Manager.
type Option func(*options)

// WithTurnTimeout bounds each prompt turn. Zero or negative disables the
// timeout.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *options) { o.turnTimeout = d }
}

// WithLogger sets the structured logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator overrides session id generation. Nil is ignored.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithProcessOptions passes options to every agent subprocess, e.g.
// [cli.WithGracePeriod] or [cli.WithStderr].
func WithProcessOptions(opts ...cli.Option) Option {
	return func(o *options) { o.procOpts = append(o.procOpts, opts...) }
}

func resolveOptions(opts ...Option) options {
	o := options{
		turnTimeout: DefaultTurnTimeout,
		logger:      slog.New(slog.DiscardHandler),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
