// Package pace turns a text payload into a lazily produced, time-throttled
// sequence of byte chunks suitable for use as an HTTP request body.
//
// # Pacing
//
// A [Config] describes the target rate in characters per second and,
// optionally, an explicit chunk size. [NewPlan] derives the chunk size and
// the fixed wait between chunks:
//
//	chunkSize = max(1, ChunkSize or floor(CharsPerSecond / 10))
//	interval  = round(chunkSize / CharsPerSecond * 1000) ms
//
// The first chunk is produced immediately and no wait follows the last one.
//
// # Consuming
//
// An [Emitter] is single use. Range over [Emitter.Chunks]:
//
//	e, err := pace.New(body, pace.Config{CharsPerSecond: 2000})
//	if errors.Is(err, pace.ErrEmptyPayload) {
//		// send body as a single unit instead
//	}
//	for chunk, err := range e.Chunks(ctx) {
//		...
//	}
//
// or hand [Emitter.Reader] to an [net/http.Request] as its body. Closing the
// reader, or cancelling ctx, stops the pending wait and any further chunks.
package pace
