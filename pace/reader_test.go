package pace

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReader_ReadAll(t *testing.T) {
	clock := newFakeClock()
	payload := strings.Repeat("0123456789", 45)

	e, err := New(payload, Config{}, WithClock(clock))
	if err != nil {
		t.Fatalf("creating emitter: %v", err)
	}

	r, err := e.Reader(t.Context())
	if err != nil {
		t.Fatalf("creating reader: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}

	if string(got) != payload {
		t.Errorf("exp payload of %d bytes, got %d bytes", len(payload), len(got))
	}

	expWaits := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}
	if diff := cmp.Diff(expWaits, clock.waits()); diff != "" {
		t.Errorf("waits mismatch (-want +got):\n%s", diff)
	}

	if n, err := r.Read(make([]byte, 8)); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("exp sticky EOF, got n=%d err=%v", n, err)
	}
}

func TestReader_SmallBuffer(t *testing.T) {
	clock := newFakeClock()

	e, err := New("abcdefgh", Config{ChunkSize: 4}, WithClock(clock))
	if err != nil {
		t.Fatalf("creating emitter: %v", err)
	}

	r, err := e.Reader(t.Context())
	if err != nil {
		t.Fatalf("creating reader: %v", err)
	}

	var reads []string
	p := make([]byte, 3)
	for {
		n, err := r.Read(p)
		if n > 0 {
			reads = append(reads, string(p[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("reading: %v", err)
		}
	}

	// A chunk is drained before the next wait begins.
	if diff := cmp.Diff([]string{"abc", "d", "efg", "h"}, reads); diff != "" {
		t.Errorf("reads mismatch (-want +got):\n%s", diff)
	}
	if waits := clock.waits(); len(waits) != 1 {
		t.Errorf("exp exactly 1 wait, got %v", waits)
	}
}

func TestReader_CloseDuringWait(t *testing.T) {
	clock := newFakeClock()
	clock.block = make(chan struct{})
	obs := &recordingObserver{}

	e, err := New(strings.Repeat("k", 20), Config{ChunkSize: 5}, WithClock(clock), WithObserver(obs))
	if err != nil {
		t.Fatalf("creating emitter: %v", err)
	}

	r, err := e.Reader(t.Context())
	if err != nil {
		t.Fatalf("creating reader: %v", err)
	}

	p := make([]byte, 64)
	if n, err := r.Read(p); err != nil || n != 5 {
		t.Fatalf("first read: n=%d err=%v", n, err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Read(p)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("exp ErrClosed, got: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not return after close")
	}

	if _, err := r.Read(p); !errors.Is(err, ErrClosed) {
		t.Errorf("exp ErrClosed after close, got: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	if waits := clock.waits(); len(waits) != 0 {
		t.Errorf("no wait should have completed, got %v", waits)
	}
	if diff := cmp.Diff([]Outcome{OutcomeAbandoned}, obs.outcomes()); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_RealClockCloseStopsTimer(t *testing.T) {
	// One char per hour: without cancellation the second Read would block forever.
	e, err := New("ab", Config{CharsPerSecond: 1.0 / 3600, ChunkSize: 1})
	if err != nil {
		t.Fatalf("creating emitter: %v", err)
	}

	r, err := e.Reader(t.Context())
	if err != nil {
		t.Fatalf("creating reader: %v", err)
	}

	p := make([]byte, 4)
	if _, err := r.Read(p); err != nil {
		t.Fatalf("first read: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Read(p)
		done <- err
	}()

	time.AfterFunc(20*time.Millisecond, func() { _ = r.Close() })

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("exp ErrClosed, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending wait was not cancelled by Close")
	}
}

func TestReader_ParentContextCancelled(t *testing.T) {
	clock := newFakeClock()
	clock.block = make(chan struct{})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	e, err := New("abcdef", Config{ChunkSize: 3}, WithClock(clock))
	if err != nil {
		t.Fatalf("creating emitter: %v", err)
	}

	r, err := e.Reader(ctx)
	if err != nil {
		t.Fatalf("creating reader: %v", err)
	}
	defer r.Close()

	p := make([]byte, 8)
	if _, err := r.Read(p); err != nil {
		t.Fatalf("first read: %v", err)
	}

	cancel()

	if _, err := r.Read(p); !errors.Is(err, context.Canceled) {
		t.Errorf("exp context.Canceled, got: %v", err)
	}
}
