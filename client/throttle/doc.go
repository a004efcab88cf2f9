// Package throttle provides an [http.RoundTripper] that limits how often,
// and how many at once, requests reach a slow receiver.
//
// Request starts are rate-limited with a token bucket from
// [golang.org/x/time/rate]. Optionally, [Config.MaxInFlight] caps the
// number of requests whose bodies are still being sent, using
// [golang.org/x/sync/semaphore]. A slot is held until the transport has
// closed the request body, so a paced body keeps its slot for the whole
// transmission:
//
//	rt, err := throttle.NewRoundTripper(
//		throttle.Config{RPS: 2, Burst: 1, MaxInFlight: 1},
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// When either limit is reached, requests block until capacity frees up
// or the request context ends.
package throttle
