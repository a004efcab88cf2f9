package client

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/trickle/client/throttle"
	"github.com/adamwoolhether/trickle/metrics"
	"github.com/adamwoolhether/trickle/pace"
	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	tracerProvider    trace.TracerProvider
	metrics           *metrics.Collector
	progress          bool
	requestIDHeader   string
}

// WithClient uses a copy of hc instead of a fresh [http.Client].
// hc itself is never modified.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
// It bounds the whole paced transmission, so it must exceed the stream's duration.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithThrottleConfig is WithThrottle with full control, including the in-flight body cap.
func WithThrottleConfig(cfg throttle.Config) Option {
	return func(c *options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithTracerProvider enables tracing of streamed requests. Trace context
// is propagated to the receiver through the global text map propagator.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		c.tracerProvider = tp
		return nil
	}
}

// WithMetrics records chunk, wait and response metrics into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *options) error {
		if m == nil {
			return errors.New("metrics collector must not be nil")
		}
		c.metrics = m
		return nil
	}
}

// WithProgress logs streamed body progress at most once per second.
func WithProgress() Option {
	return func(c *options) error {
		c.progress = true
		return nil
	}
}

// WithRequestID sets header on each outgoing request, unless already present,
// to the active trace ID or a random UUID.
func WithRequestID(header string) Option {
	return func(c *options) error {
		if header == "" {
			return errors.New("request id header must not be empty")
		}
		c.requestIDHeader = http.CanonicalHeaderKey(header)
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// DoOption is a functional option for [Client.Do].
type DoOption func(options *doOpts) error

type doOpts struct {
	responseBody any
	bodyWriter   io.Writer
}

// WithDestination decodes the JSON response body into bodyTemplate.
// bodyTemplate must be a pointer.
func WithDestination[T any](bodyTemplate *T) DoOption {
	return func(opts *doOpts) error {
		opts.responseBody = bodyTemplate

		return nil
	}
}

// WithBodyWriter copies the response body to w as-is.
func WithBodyWriter(w io.Writer) DoOption {
	return func(opts *doOpts) error {
		if w == nil {
			return errors.New("body writer must not be nil")
		}

		opts.bodyWriter = w

		return nil
	}
}

// RequestOption is a functional option for [StreamRequest].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	contentType *string
	cookies     []*http.Cookie
	headers     map[string][]string
	basicAuth   *[2]string
	paceOpts    []pace.Option
}

// WithContentType overrides the default Content-Type header,
// [FormContentType] for streamed bodies.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}

		opts.contentType = &contentType

		return nil
	}
}

// WithHeaders adds custom headers to the outgoing request.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		opts.headers = headers

		return nil
	}
}

// WithCookies attaches the given cookies to the outgoing request.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *requestOpts) error {
		opts.cookies = cookies

		return nil
	}
}

// WithBasicAuth sets HTTP basic auth credentials on the request.
func WithBasicAuth(username, password string) RequestOption {
	return func(opts *requestOpts) error {
		if username == "" {
			return errors.New("basic auth username must not be empty")
		}

		opts.basicAuth = &[2]string{username, password}

		return nil
	}
}

// WithPaceOptions passes options through to the body's [pace.Emitter].
// They are applied after the Client's own, so they take precedence.
func WithPaceOptions(paceOpts ...pace.Option) RequestOption {
	return func(opts *requestOpts) error {
		opts.paceOpts = append(opts.paceOpts, paceOpts...)

		return nil
	}
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	port         *int
}

// WithQueryStrings appends query parameters to the URL.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithPort sets the port number on the URL's host.
func WithPort(port int) URLOption {
	return func(opts *urlOpts) {
		opts.port = &port
	}
}
