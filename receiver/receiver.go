package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

// Receiver is an http.Handler that measures incoming bodies.
type Receiver struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	maxRate     float64
	burst       int
	maxBodySize int64
	echo        bool
	onReport    func(Report)
	handler     handlerFunc
}

// New creates a Receiver. Every method and path is accepted.
func New(optFns ...Option) (*Receiver, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, err
		}
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.tp == nil {
		opts.tp = noop.NewTracerProvider()
	}
	if opts.maxBodySize == 0 {
		opts.maxBodySize = defaultMaxBodySize
	}

	rc := Receiver{
		logger:      opts.logger,
		tracer:      opts.tp.Tracer("github.com/adamwoolhether/trickle/receiver"),
		maxRate:     opts.maxRate,
		burst:       opts.burst,
		maxBodySize: opts.maxBodySize,
		echo:        opts.echo,
		onReport:    opts.onReport,
	}

	rc.handler = wrap([]middleware{
		logRequests(rc.logger),
		respondErrors(rc.logger),
		recoverPanics(),
	}, rc.receive)

	return &rc, nil
}

// ServeHTTP implements http.Handler.
func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ctx, span := rc.tracer.Start(ctx, "receiver.body",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("path", r.URL.Path)),
	)
	defer span.End()

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			requestID = uuid.New().String()
		}
	}

	v := requestValues{
		RequestID: requestID,
		Now:       time.Now().UTC(),
	}
	ctx = setValues(ctx, &v)

	if err := rc.handler(ctx, w, r.WithContext(ctx)); err != nil {
		rc.logger.Error("receiver", "handle", err)
	}
}

func (rc *Receiver) receive(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v := getValues(ctx)

	report := Report{
		RequestID:   v.RequestID,
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Chunked:     slices.Contains(r.TransferEncoding, "chunked"),
	}

	var limiter *rate.Limiter
	if rc.maxRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(rc.maxRate), rc.burst)
	}

	body := http.MaxBytesReader(w, r.Body, rc.maxBodySize)

	var (
		echo    bytes.Buffer
		pending []byte
		first   time.Time
		last    time.Time
		readErr error
		buf     = make([]byte, readBufSize)
	)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			now := time.Now()
			if first.IsZero() {
				first = now
			}
			last = now

			report.Reads++
			report.Bytes += n
			if rc.echo {
				echo.Write(buf[:n])
			}

			var chars int
			chars, pending = countRunes(pending, buf[:n])
			report.Chars += chars

			if limiter != nil && !report.Overrun && !rc.allow(limiter, now, first, chars, report.Chars) {
				report.Overrun = true
				rc.logger.Warn("receiver overrun", "request_id", v.RequestID, "received", report.Chars, "max_rate", rc.maxRate, "burst", rc.burst)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}
	report.Chars += len(pending)

	if readErr != nil {
		if _, ok := errors.AsType[*http.MaxBytesError](readErr); ok {
			return newError(http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d bytes", rc.maxBodySize))
		}
		return newError(http.StatusBadRequest, fmt.Errorf("reading body: %w", readErr))
	}

	if elapsed := last.Sub(first); elapsed > 0 {
		report.ElapsedMS = elapsed.Milliseconds()
		report.CharsPerSecond = float64(report.Chars) / elapsed.Seconds()
	}
	if rc.echo {
		report.Body = echo.String()
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("receiver.chars", report.Chars),
		attribute.Int("receiver.reads", report.Reads),
		attribute.Bool("receiver.overrun", report.Overrun),
	)

	rc.logger.Info("body received",
		"request_id", report.RequestID,
		"chars", report.Chars,
		"reads", report.Reads,
		"elapsed", time.Duration(report.ElapsedMS)*time.Millisecond,
		"cps", fmt.Sprintf("%.0f", report.CharsPerSecond),
		"overrun", report.Overrun,
	)

	if rc.onReport != nil {
		defer rc.onReport(report)
	}

	if report.Overrun {
		return newError(http.StatusTooManyRequests, fmt.Errorf("%w: body arrived faster than %.0f chars/sec", ErrOverrun, rc.maxRate))
	}

	return respondJSON(ctx, w, http.StatusOK, report)
}

// allow charges a read of chars characters arriving at now. Reads that fit
// the burst go through the bucket. A larger read, usually several chunks
// the transport coalesced, cannot be admitted by the bucket at all, so it
// is held to the long-run budget instead: the total received must fit burst
// plus the rate over the time since the first read.
func (rc *Receiver) allow(limiter *rate.Limiter, now, first time.Time, chars, total int) bool {
	if chars <= rc.burst {
		return limiter.AllowN(now, chars)
	}

	budget := float64(rc.burst) + rc.maxRate*now.Sub(first).Seconds()
	return float64(total) <= budget
}

// countRunes counts the complete runes in pending+p and returns the bytes
// of a trailing incomplete sequence to carry into the next read.
func countRunes(pending, p []byte) (int, []byte) {
	data := append(pending, p...)

	end := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				end = i
			}
			break
		}
	}

	return utf8.RuneCount(data[:end]), slices.Clone(data[end:])
}

func respondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	setStatusCode(ctx, statusCode)

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}
