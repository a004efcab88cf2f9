package pace

import (
	"errors"
	"math"
	"time"
)

// DefaultCharsPerSecond is used when Config.CharsPerSecond is unset or unusable.
const DefaultCharsPerSecond = 2000

// maxChunkSize bounds the chunk size, explicit or derived.
const maxChunkSize = math.MaxInt32

// maxInterval is the longest interval representable in whole milliseconds.
const maxInterval = time.Duration(math.MaxInt64/int64(time.Millisecond)) * time.Millisecond

var (
	// ErrEmptyPayload signals that there is nothing to pace; the caller
	// should send the payload as a single unit.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrConsumed is returned when an Emitter's sequence is consumed twice.
	ErrConsumed = errors.New("emitter already consumed")
	// ErrClosed is returned by Reader.Read after Close.
	ErrClosed = errors.New("reader closed")
)

// Config defines the target pacing rate. The zero value paces at
// DefaultCharsPerSecond with a rate-derived chunk size.
type Config struct {
	CharsPerSecond float64
	ChunkSize      int
}

// rate returns the effective chars per second. Zero, negative and
// non-finite values fall back to the default.
func (c Config) rate() float64 {
	cps := c.CharsPerSecond
	if cps <= 0 || math.IsNaN(cps) || math.IsInf(cps, 0) {
		return DefaultCharsPerSecond
	}

	return cps
}

// Plan is the emission schedule derived from a Config.
type Plan struct {
	ChunkSize int
	Interval  time.Duration
}

// NewPlan derives the chunk size and inter-chunk interval from cfg.
// An explicit ChunkSize wins over the rate-derived one; either way the
// result is between 1 and math.MaxInt32. The interval is rounded to whole
// milliseconds and saturates instead of overflowing.
func NewPlan(cfg Config) Plan {
	cps := cfg.rate()

	size := cfg.ChunkSize
	if size <= 0 {
		derived := math.Floor(cps / 10)
		switch {
		case derived > maxChunkSize:
			size = maxChunkSize
		case derived < 1:
			size = 1
		default:
			size = int(derived)
		}
	}
	size = min(size, maxChunkSize)

	ms := math.Round(float64(size) / cps * 1000)

	interval := maxInterval
	if ms < float64(maxInterval/time.Millisecond) {
		interval = time.Duration(ms) * time.Millisecond
	}

	return Plan{
		ChunkSize: size,
		Interval:  interval,
	}
}

// Chunks returns how many chunks a payload of chars characters is split into.
func (p Plan) Chunks(chars int) int {
	if chars <= 0 || p.ChunkSize <= 0 {
		return 0
	}

	n := chars / p.ChunkSize
	if chars%p.ChunkSize != 0 {
		n++
	}

	return n
}

// Duration estimates the wall time spent waiting between chunks for a
// payload of chars characters. There is no wait after the final chunk.
// The estimate saturates at the longest representable duration.
func (p Plan) Duration(chars int) time.Duration {
	n := p.Chunks(chars)
	if n <= 1 || p.Interval <= 0 {
		return 0
	}

	if time.Duration(n-1) > math.MaxInt64/p.Interval {
		return math.MaxInt64
	}

	return time.Duration(n-1) * p.Interval
}

// Outcome describes how an emission ended.
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeAbandoned Outcome = "abandoned"
)

// Observer receives emission events. Implementations must be safe for
// use by multiple emitters at once.
type Observer interface {
	ChunkSent(bytes int)
	Waited(d time.Duration)
	Done(o Outcome)
}

type nopObserver struct{}

func (nopObserver) ChunkSent(int)        {}
func (nopObserver) Waited(time.Duration) {}
func (nopObserver) Done(Outcome)         {}
