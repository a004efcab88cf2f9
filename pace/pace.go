package pace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Emitter produces the paced chunk sequence for a single payload.
// It is single use: the first call to Chunks or Reader consumes it.
type Emitter struct {
	payload  string
	chars    int
	plan     Plan
	clock    Clock
	logger   *slog.Logger
	progress bool
	observer Observer
	consumed atomic.Bool
}

// New returns an Emitter for payload. An empty payload returns
// ErrEmptyPayload, meaning the caller should skip pacing altogether.
func New(payload string, cfg Config, optFns ...Option) (*Emitter, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	e := &Emitter{
		payload:  payload,
		chars:    utf8.RuneCountInString(payload),
		plan:     NewPlan(cfg),
		clock:    realClock{},
		logger:   slog.Default(),
		progress: opts.progress,
		observer: nopObserver{},
	}

	if opts.clock != nil {
		e.clock = opts.clock
	}
	if opts.logger != nil {
		e.logger = opts.logger
	}
	if opts.observer != nil {
		e.observer = opts.observer
	}

	return e, nil
}

// Plan returns the emission schedule.
func (e *Emitter) Plan() Plan { return e.plan }

// Len returns the payload length in characters.
func (e *Emitter) Len() int { return e.chars }

// Chunks returns the lazy chunk sequence. Each chunk is produced only
// when the consumer asks for it. A non-nil error is yielded at most once,
// as the final element, when ctx ends mid-sequence or the Emitter was
// already consumed.
func (e *Emitter) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		em, err := e.start()
		if err != nil {
			yield(nil, err)
			return
		}

		for {
			chunk, err := em.next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				em.finish(OutcomeAbandoned)
				return
			}
		}
	}
}

func (e *Emitter) start() (*emission, error) {
	if !e.consumed.CompareAndSwap(false, true) {
		return nil, ErrConsumed
	}

	em := &emission{
		e:    e,
		rest: e.payload,
	}

	if e.progress {
		now := e.clock.Now()
		em.progress = &progressLog{
			logger:    e.logger,
			clock:     e.clock,
			total:     e.chars,
			startTime: now,
			lastLog:   now,
		}
	}

	return em, nil
}

// emission is the cursor of one pass over the payload. next is only
// ever called from one goroutine at a time; finish may race with it.
type emission struct {
	e        *Emitter
	rest     string
	lastEmit time.Time
	started  bool
	progress *progressLog
	done     atomic.Bool
}

// next returns the next chunk, first waiting out the remainder of the
// interval since the previous one. It returns io.EOF once the payload
// is exhausted.
func (em *emission) next(ctx context.Context) ([]byte, error) {
	if em.rest == "" {
		return nil, io.EOF
	}

	if err := ctx.Err(); err != nil {
		em.finish(OutcomeCanceled)
		return nil, err
	}

	if em.started {
		wait := em.lastEmit.Add(em.e.plan.Interval).Sub(em.e.clock.Now())
		if err := em.e.clock.Sleep(ctx, wait); err != nil {
			em.finish(OutcomeCanceled)
			return nil, err
		}
		em.e.observer.Waited(max(wait, 0))
	}

	chunk, n := cut(em.rest, em.e.plan.ChunkSize)
	em.rest = em.rest[len(chunk):]
	em.started = true
	em.lastEmit = em.e.clock.Now()

	em.e.observer.ChunkSent(len(chunk))
	em.progress.add(n)

	if em.rest == "" {
		em.finish(OutcomeComplete)
	}

	return []byte(chunk), nil
}

// finish reports the outcome once; later calls are ignored.
func (em *emission) finish(o Outcome) {
	if !em.done.CompareAndSwap(false, true) {
		return
	}

	em.e.observer.Done(o)

	if em.progress == nil {
		return
	}
	if o == OutcomeComplete {
		em.progress.log("stream complete")
		return
	}
	em.progress.log("stream stopped", "outcome", string(o))
}

// cut returns the prefix of s holding at most n runes, and its rune count.
func cut(s string, n int) (string, int) {
	i, count := 0, 0
	for i < len(s) && count < n {
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
		count++
	}

	return s[:i], count
}
