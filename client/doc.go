// Package client provides a configurable HTTP client built on [net/http]
// whose main job is sending text bodies paced over time.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(30 * time.Second),
//		client.WithThrottleConfig(throttle.Config{RPS: 1, Burst: 1, MaxInFlight: 1}),
//		client.WithProgress(),
//	)
//
// # Streaming a Body
//
// [Client.Stream] sends body in chunks using chunked transfer encoding,
// at the rate described by a [pace.Config], and returns the response
// untouched. The caller owns the response body:
//
//	u := client.URL("https", "kvm.local", "/api/hid/print",
//		client.WithQueryStrings(map[string]string{"limit": "0", "keymap": "en-us"}),
//	)
//	resp, err := c.Stream(ctx, u, http.MethodPost, text, pace.Config{CharsPerSecond: 2000})
//	if err != nil { ... }
//	defer resp.Body.Close()
//
// An empty body skips pacing and is sent as an ordinary request. When no
// Content-Type is given, streamed requests default to
// "application/x-www-form-urlencoded".
//
// # Checking the Response
//
// [Client.Expect] validates the status code of a response and optionally
// decodes it, returning an [*UnexpectedStatusError] on a mismatch. The
// receiver package answers with a JSON report:
//
//	var rep receiver.Report
//	err = c.Expect(resp, http.StatusOK, client.WithDestination(&rep))
//
// [Client.Do] is [Client.Fetch] followed by Expect.
package client
