package throttle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the throttler's requests per second, burst and,
// when positive, the number of request bodies allowed in flight.
type Config struct {
	RPS         int
	Burst       int
	MaxInFlight int
}

// Validate reports whether the rate settings are usable.
func (c Config) Validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%d] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("max in flight[%d] must not be negative", c.MaxInFlight)
	}

	return nil
}

// throttle is an http.RoundTripper, using the time/rate token
// bucket limiter to restrict outbound calls.
type throttle struct {
	cfg      Config
	limiter  *rate.Limiter
	inFlight *semaphore.Weighted
	next     http.RoundTripper
	logFn    func() *slog.Logger
}

// NewRoundTripper returns an http.RoundTripper that throttles outbound requests.
// logFn lazily resolves the logger at request time, making option ordering
// irrelevant. A nil-returning logFn disables throttle logging.
func NewRoundTripper(cfg Config, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := &throttle{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		next:    next,
		logFn:   logFn,
	}
	if cfg.MaxInFlight > 0 {
		t.inFlight = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}

	return t, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		closeBody(r)
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	logger := t.logFn()

	if t.inFlight != nil {
		if !t.inFlight.TryAcquire(1) {
			if logger != nil {
				logger.Info("throttle in-flight limit reached", "max", t.cfg.MaxInFlight, "path", r.URL.Path)
			}
			if err := t.inFlight.Acquire(ctx, 1); err != nil {
				closeBody(r)
				return nil, fmt.Errorf("%w: in flight: %w", ErrWaitingFailed, err)
			}
		}
	}

	release := t.releaser()

	var waited time.Duration
	if logger != nil && t.limiter.Tokens() < 1 {
		logger.Info("throttle tokens exhausted", "rate", t.cfg.RPS, "burst", t.cfg.Burst, "path", r.URL.Path)

		defer func() {
			logger.Info("throttle wait complete", "waited", waited.String(), "rate", t.cfg.RPS, "burst", t.cfg.Burst)
		}()
	}

	start := time.Now()

	err := t.limiter.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		release()
		closeBody(r)
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		release()
		closeBody(r)
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	if t.inFlight == nil {
		return t.next.RoundTrip(r)
	}

	if r.Body == nil || r.Body == http.NoBody {
		defer release()
		return t.next.RoundTrip(r)
	}

	// The slot is freed once the transport is done with the body, which
	// it always closes, including on errors.
	cpy := r.Clone(ctx)
	cpy.Body = &releaseOnClose{ReadCloser: r.Body, release: release}

	return t.next.RoundTrip(cpy)
}

// releaser returns an idempotent func freeing one in-flight slot.
func (t *throttle) releaser() func() {
	if t.inFlight == nil {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() { t.inFlight.Release(1) })
	}
}

type releaseOnClose struct {
	io.ReadCloser
	release func()
}

func (b *releaseOnClose) Close() error {
	defer b.release()
	return b.ReadCloser.Close()
}

// closeBody honours the RoundTripper contract of always closing the
// request body, for the paths that never reach the next transport.
func closeBody(r *http.Request) {
	if r.Body != nil {
		_ = r.Body.Close()
	}
}
