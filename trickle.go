// Package trickle exposes the client builder and a package-level Stream
// backed by a replaceable default client.
package trickle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/adamwoolhether/trickle/client"
	"github.com/adamwoolhether/trickle/pace"
)

var defaultClient atomic.Pointer[client.Client]

// NewClient instantiates a new *Client with the provided options.
// If not specified, a fresh http.Client over http.DefaultTransport is used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// SetDefault makes c the client used by [Stream].
func SetDefault(c *client.Client) error {
	if c == nil {
		return errors.New("default client must not be nil")
	}
	defaultClient.Store(c)

	return nil
}

// Default returns the client used by [Stream], building one with no
// options on first use.
func Default() *client.Client {
	if c := defaultClient.Load(); c != nil {
		return c
	}

	c, err := client.Build()
	if err != nil {
		panic(fmt.Sprintf("building default client: %v", err))
	}
	defaultClient.CompareAndSwap(nil, c)

	return defaultClient.Load()
}

// Stream sends body to rawURL paced according to cfg using the default
// client. The response is returned unmodified and must be closed by the caller.
func Stream(ctx context.Context, rawURL, method, body string, cfg pace.Config, opts ...client.RequestOption) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	return Default().Stream(ctx, u, method, body, cfg, opts...)
}
