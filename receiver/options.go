package receiver

import (
	"errors"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a [Receiver].
type Option func(*options) error

type options struct {
	logger      *slog.Logger
	tp          trace.TracerProvider
	maxRate     float64
	burst       int
	maxBodySize int64
	echo        bool
	onReport    func(Report)
}

// WithLogger sets the logger for request and report lines.
// Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) error {
		if log == nil {
			return errors.New("logger must not be nil")
		}
		opts.logger = log
		return nil
	}
}

// WithTracerProvider traces each received body, continuing the trace
// propagated by the sender.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(opts *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		opts.tp = tp
		return nil
	}
}

// WithMaxRate limits accepted input to charsPerSecond with a bucket of
// burst characters. Bodies that exceed it are answered with 429. A single
// read holding more than burst characters is checked against the total
// received since the first read, so the first read must fit the burst:
// size burst to at least the sender's chunk size.
func WithMaxRate(charsPerSecond float64, burst int) Option {
	return func(opts *options) error {
		if charsPerSecond <= 0 || math.IsNaN(charsPerSecond) || math.IsInf(charsPerSecond, 0) {
			return errors.New("max rate must be a positive number")
		}
		if burst <= 0 {
			return errors.New("burst must be positive")
		}
		opts.maxRate = charsPerSecond
		opts.burst = burst
		return nil
	}
}

// WithMaxBodySize caps the accepted body size in bytes. Default is 1MiB.
func WithMaxBodySize(n int64) Option {
	return func(opts *options) error {
		if n <= 0 {
			return errors.New("max body size must be positive")
		}
		opts.maxBodySize = n
		return nil
	}
}

// WithEcho includes the received body in the report.
func WithEcho() Option {
	return func(opts *options) error {
		opts.echo = true
		return nil
	}
}

// WithReportFunc calls fn with every report, after the response is written.
func WithReportFunc(fn func(Report)) Option {
	return func(opts *options) error {
		opts.onReport = fn
		return nil
	}
}
