package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/adamwoolhether/trickle/client/throttle"
	"github.com/adamwoolhether/trickle/pace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/adamwoolhether/trickle/client"

// Client wraps the std-lib *http.Client.
// It starts from a fresh *http.Client and http.DefaultTransport, which
// can be customized via optional funcs.
type Client struct {
	c               *http.Client
	logger          *slog.Logger
	tracer          trace.Tracer
	observer        pace.Observer
	progress        bool
	requestIDHeader string
}

// Build creates a Client from the given options.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		c:               &http.Client{},
		logger:          slog.Default(),
		tracer:          noop.NewTracerProvider().Tracer(tracerName),
		progress:        opts.progress,
		requestIDHeader: opts.requestIDHeader,
	}

	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracerProvider != nil {
		client.tracer = opts.tracerProvider.Tracer(tracerName)
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.metrics != nil {
		transport = opts.metrics.RoundTripper(transport)
		client.observer = opts.metrics
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Fetch sends req and returns the response as-is, whatever its status.
// The caller must close the response body.
func (c *Client) Fetch(req *http.Request) (*http.Response, error) {
	c.prepare(req)

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exec http do: %w", err)
	}

	return resp, nil
}

// Do sends req and validates the response with [Client.Expect].
func (c *Client) Do(req *http.Request, expCode int, opts ...DoOption) error {
	settings, err := applyDoOpts(opts)
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return err
	}

	resp, err := c.Fetch(req)
	if err != nil {
		return err
	}

	return c.expect(resp, expCode, settings)
}

// Expect checks that resp carries expCode, then hands the body to
// WithDestination or WithBodyWriter if one is given. An expCode of 0
// accepts any 2xx status. A mismatch returns an [*UnexpectedStatusError]
// holding the start of the body. resp.Body is always closed.
func (c *Client) Expect(resp *http.Response, expCode int, opts ...DoOption) error {
	settings, err := applyDoOpts(opts)
	if err != nil {
		resp.Body.Close()
		return err
	}

	return c.expect(resp, expCode, settings)
}

// URL creates a url.URL for use in StreamRequest.
// It's just a convenience method that wraps the public URL func.
func (c *Client) URL(scheme, host, path string, opts ...URLOption) *url.URL {
	return URL(scheme, host, path, opts...)
}

func (c *Client) expect(resp *http.Response, expCode int, settings doOpts) error {
	discardBody := true
	defer func() {
		if discardBody {
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				c.logger.Error("failed to discard unused body", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if err := checkStatus(resp, expCode); err != nil {
		return err
	}

	switch {
	case settings.responseBody != nil:
		if err := json.NewDecoder(resp.Body).Decode(settings.responseBody); err != nil {
			discardBody = false
			return fmt.Errorf("decoding body: %w", err)
		}
	case settings.bodyWriter != nil:
		if _, err := io.Copy(settings.bodyWriter, resp.Body); err != nil {
			discardBody = false
			return fmt.Errorf("copying body: %w", err)
		}
	}

	return nil
}

// checkStatus reports whether resp carries expCode, or any 2xx status
// when expCode is 0. On a mismatch it consumes up to maxErrBodySize of
// the body into the returned error.
func checkStatus(resp *http.Response, expCode int) error {
	switch {
	case expCode == 0 && resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == expCode:
		return nil
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}

	sentinel := ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		sentinel = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Body:       string(b),
		Err:        sentinel,
	}
}

// URL creates a url.URL for use in StreamRequest.
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}

func applyDoOpts(opts []DoOption) (doOpts, error) {
	var settings doOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return doOpts{}, err
		}
	}

	if settings.responseBody != nil && settings.bodyWriter != nil {
		return doOpts{}, errors.New("WithDestination and WithBodyWriter are mutually exclusive")
	}

	return settings, nil
}

func applyRequestOpts(opts []RequestOption) (requestOpts, error) {
	var settings requestOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return requestOpts{}, err
		}
	}

	return settings, nil
}

// apply copies cookies, headers and credentials onto req. Content-Type
// is left to the caller since each request kind defaults it differently.
func (s requestOpts) apply(req *http.Request) {
	for _, cookie := range s.cookies {
		req.AddCookie(cookie)
	}

	for k, v := range s.headers {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}

	if s.basicAuth != nil {
		req.SetBasicAuth(s.basicAuth[0], s.basicAuth[1])
	}
}
