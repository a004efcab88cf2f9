package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/adamwoolhether/trickle/pace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StreamRequest builds a request whose body is body paced according to cfg.
//
// The body is sent with chunked transfer encoding and cannot be replayed,
// so GetBody is nil. Content-Type defaults to [FormContentType] unless set
// through WithContentType or WithHeaders.
//
// An empty body bypasses pacing: the request carries [http.NoBody] and
// the options are applied as given, with no Content-Type default.
func StreamRequest(ctx context.Context, reqURL *url.URL, method, body string, cfg pace.Config, opts ...RequestOption) (*http.Request, error) {
	settings, err := applyRequestOpts(opts)
	if err != nil {
		return nil, err
	}

	e, err := pace.New(body, cfg, settings.paceOpts...)
	if errors.Is(err, pace.ErrEmptyPayload) {
		req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("instantiating request: %w", err)
		}

		if settings.contentType != nil {
			req.Header.Set("Content-Type", *settings.contentType)
		}
		settings.apply(req)

		return req, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating emitter: %w", err)
	}

	r, err := e.Reader(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating body reader: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), r)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("instantiating request: %w", err)
	}
	req.ContentLength = -1

	if settings.contentType != nil {
		req.Header.Set("Content-Type", *settings.contentType)
	}
	settings.apply(req)

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", FormContentType)
	}

	return req, nil
}

// StreamRequest is StreamRequest with the Client's logger, progress
// reporting and metrics wired into the body's emitter.
func (c *Client) StreamRequest(ctx context.Context, reqURL *url.URL, method, body string, cfg pace.Config, opts ...RequestOption) (*http.Request, error) {
	withDefaults := make([]RequestOption, 0, len(opts)+1)
	withDefaults = append(withDefaults, WithPaceOptions(c.paceOptions()...))
	withDefaults = append(withDefaults, opts...)

	return StreamRequest(ctx, reqURL, method, body, cfg, withDefaults...)
}

// Stream sends body to reqURL paced according to cfg and returns the
// response unmodified; the status code is not checked. The caller must
// close the response body.
func (c *Client) Stream(ctx context.Context, reqURL *url.URL, method, body string, cfg pace.Config, opts ...RequestOption) (*http.Response, error) {
	plan := pace.NewPlan(cfg)
	chars := utf8.RuneCountInString(body)

	ctx, span := c.tracer.Start(ctx, "trickle.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.Int("trickle.chars", chars),
			attribute.Int("trickle.chunk_size", plan.ChunkSize),
			attribute.Int64("trickle.interval_ms", plan.Interval.Milliseconds()),
			attribute.Int("trickle.chunks", plan.Chunks(chars)),
		),
	)
	defer span.End()

	req, err := c.StreamRequest(ctx, reqURL, method, body, cfg, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "building request")
		return nil, err
	}

	if chars > 0 {
		c.logger.Info("stream started",
			"method", method,
			"url", reqURL.Redacted(),
			"chars", chars,
			"chunk_size", plan.ChunkSize,
			"interval", plan.Interval,
			"estimated", plan.Duration(chars),
		)
	} else {
		c.logger.Debug("empty body, sending without pacing", "method", method, "url", reqURL.Redacted())
	}

	resp, err := c.Fetch(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sending request")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	return resp, nil
}

func (c *Client) paceOptions() []pace.Option {
	opts := []pace.Option{pace.WithLogger(c.logger)}
	if c.progress {
		opts = append(opts, pace.WithProgress())
	}
	if c.observer != nil {
		opts = append(opts, pace.WithObserver(c.observer))
	}

	return opts
}
