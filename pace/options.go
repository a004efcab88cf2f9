package pace

import (
	"errors"
	"log/slog"
)

// Option defines optional settings for an Emitter.
//
// WithLogger sets the logger used for progress reporting.
// WithProgress enables progress logging at most once per second.
// WithClock replaces the wall clock, mostly for tests.
// WithObserver registers a hook for emission events.
type Option func(*options) error

type options struct {
	logger   *slog.Logger
	progress bool
	clock    Clock
	observer Observer
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		opts.logger = logger
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithClock(c Clock) Option {
	return func(opts *options) error {
		if c == nil {
			return errors.New("clock must not be nil")
		}
		opts.clock = c
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(opts *options) error {
		if o == nil {
			return errors.New("observer must not be nil")
		}
		opts.observer = o
		return nil
	}
}
