package pace

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// Reader adapts an Emitter to io.ReadCloser. Each chunk is handed out
// by as many Read calls as it takes to drain it; the wait before the
// next chunk happens on the Read that finds the buffer empty.
//
// Close may be called from any goroutine. It cancels a pending wait,
// and every later Read returns ErrClosed.
type Reader struct {
	em     *emission
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	buf    []byte
	err    error
}

// Reader consumes the Emitter and returns its sequence as an
// io.ReadCloser bound to ctx.
func (e *Emitter) Reader(ctx context.Context) (*Reader, error) {
	em, err := e.start()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Reader{
		em:     em,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	if len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}

		chunk, err := r.em.next(r.ctx)
		if err != nil {
			if r.closed.Load() && !errors.Is(err, io.EOF) {
				err = ErrClosed
			}
			r.err = err
			return 0, err
		}
		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]

	return n, nil
}

// Close stops the emission. It is idempotent.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.cancel()
	r.em.finish(OutcomeAbandoned)

	return nil
}
