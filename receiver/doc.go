// Package receiver implements a measuring HTTP endpoint for paced bodies.
//
// A Receiver reads each request body as it arrives, counts characters and
// reads, and answers with a JSON [Report]. With [WithMaxRate] it behaves like
// a slow device: a sender that outruns the configured token bucket gets a
// 429 once its body is drained. [Server] runs a Receiver with graceful
// shutdown.
package receiver
