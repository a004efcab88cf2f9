package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adamwoolhether/trickle/metrics"
	"github.com/adamwoolhether/trickle/pace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type instantClock struct{ now time.Time }

func (c *instantClock) Now() time.Time { return c.now }

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return ctx.Err()
}

func TestCollector_Observer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	e, err := pace.New(strings.Repeat("m", 450), pace.Config{CharsPerSecond: 2000},
		pace.WithClock(&instantClock{}),
		pace.WithObserver(c),
	)
	if err != nil {
		t.Fatalf("creating emitter: %v", err)
	}

	for _, err := range e.Chunks(t.Context()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	exp := `
# HELP trickle_bytes_total Total number of body bytes emitted
# TYPE trickle_bytes_total counter
trickle_bytes_total 450
# HELP trickle_chunks_total Total number of body chunks emitted
# TYPE trickle_chunks_total counter
trickle_chunks_total 3
# HELP trickle_streams_total Total number of paced bodies by outcome
# TYPE trickle_streams_total counter
trickle_streams_total{outcome="complete"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(exp),
		"trickle_bytes_total", "trickle_chunks_total", "trickle_streams_total"); err != nil {
		t.Error(err)
	}

	n, err := testutil.GatherAndCount(reg, "trickle_wait_seconds")
	if err != nil {
		t.Fatalf("gathering: %v", err)
	}
	if n != 1 {
		t.Errorf("exp wait histogram to be collected once, got %d", n)
	}
}

func TestCollector_RoundTripper(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	reg := prometheus.NewRegistry()
	c := metrics.New(reg)
	hc := &http.Client{Transport: c.RoundTripper(http.DefaultTransport)}

	for _, path := range []string{"/", "/", "/missing"} {
		resp, err := hc.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		_ = resp.Body.Close()
	}

	exp := `
# HELP trickle_requests_total Total number of responses by status code and method
# TYPE trickle_requests_total counter
trickle_requests_total{code="200",method="get"} 2
trickle_requests_total{code="404",method="get"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(exp), "trickle_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestNew_NilRegisterer(t *testing.T) {
	c := metrics.New(nil)
	c.ChunkSent(3)
	c.Waited(time.Millisecond)
	c.Done(pace.OutcomeAbandoned)
}
