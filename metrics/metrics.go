// Package metrics exposes Prometheus collectors for paced transmissions.
//
// A [Collector] implements [pace.Observer], so it can be handed to an
// emitter directly, and wraps transports to count responses by status code.
package metrics

import (
	"net/http"
	"time"

	"github.com/adamwoolhether/trickle/pace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trickle"

// Collector holds the paced-stream metrics.
type Collector struct {
	chunks   prometheus.Counter
	bytes    prometheus.Counter
	waits    prometheus.Histogram
	streams  *prometheus.CounterVec
	requests *prometheus.CounterVec
}

// New creates a Collector and registers it with reg. A nil reg leaves
// the metrics unregistered.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		chunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Total number of body chunks emitted",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Total number of body bytes emitted",
		}),
		waits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_seconds",
			Help:      "Time spent waiting between chunks",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		streams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of paced bodies by outcome",
		}, []string{"outcome"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of responses by status code and method",
		}, []string{"code", "method"}),
	}
}

// ChunkSent implements pace.Observer.
func (c *Collector) ChunkSent(n int) {
	c.chunks.Inc()
	c.bytes.Add(float64(n))
}

// Waited implements pace.Observer.
func (c *Collector) Waited(d time.Duration) {
	c.waits.Observe(d.Seconds())
}

// Done implements pace.Observer.
func (c *Collector) Done(o pace.Outcome) {
	c.streams.WithLabelValues(string(o)).Inc()
}

// RoundTripper counts responses passing through next.
func (c *Collector) RoundTripper(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperCounter(c.requests, next)
}
