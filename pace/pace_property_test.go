package pace

import (
	"bytes"
	"io"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Concatenating every emitted chunk reproduces the payload exactly.
func TestProperty_Chunks_Reconstruction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.StringN(1, 500, -1).Draw(rt, "payload")
		cfg := Config{
			CharsPerSecond: rapid.Float64Range(1, 100000).Draw(rt, "cps"),
			ChunkSize:      rapid.IntRange(-5, 64).Draw(rt, "chunkSize"),
		}

		e, err := New(payload, cfg, WithClock(newFakeClock()))
		require.NoError(rt, err)

		var out bytes.Buffer
		for chunk, err := range e.Chunks(t.Context()) {
			require.NoError(rt, err)
			require.NotEmpty(rt, chunk, "chunks are never empty")
			out.Write(chunk)
		}

		assert.Equal(rt, payload, out.String())
	})
}

// The sequence has ceil(chars/chunkSize) elements and waits once between each pair.
func TestProperty_Chunks_CountAndWaits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.StringN(1, 400, -1).Draw(rt, "payload")
		cfg := Config{
			CharsPerSecond: rapid.Float64Range(1, 5000).Draw(rt, "cps"),
			ChunkSize:      rapid.IntRange(0, 50).Draw(rt, "chunkSize"),
		}

		clock := newFakeClock()
		e, err := New(payload, cfg, WithClock(clock))
		require.NoError(rt, err)

		plan := e.Plan()
		chars := utf8.RuneCountInString(payload)

		var count int
		for chunk, err := range e.Chunks(t.Context()) {
			require.NoError(rt, err)
			assert.LessOrEqual(rt, utf8.RuneCount(chunk), plan.ChunkSize)
			count++
		}

		assert.Equal(rt, (chars+plan.ChunkSize-1)/plan.ChunkSize, count)
		assert.Equal(rt, plan.Chunks(chars), count)
		assert.Len(rt, clock.waits(), count-1, "no wait after the final chunk")
		for _, w := range clock.waits() {
			assert.Equal(rt, plan.Interval, w)
		}
	})
}

// An explicit chunk size is used verbatim; the rate only shapes the interval.
func TestProperty_Plan_ExplicitChunkPrecedence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(1, 10000).Draw(rt, "chunkSize")
		cps := rapid.Float64Range(0.5, 1e6).Draw(rt, "cps")

		p := NewPlan(Config{CharsPerSecond: cps, ChunkSize: size})

		assert.Equal(rt, size, p.ChunkSize)
		assert.GreaterOrEqual(rt, p.Interval.Milliseconds(), int64(0))
		assert.InDelta(rt, float64(size)/cps*1000, float64(p.Interval.Milliseconds()), 0.5)
	})
}

// The reader and the iterator emit the same bytes.
func TestProperty_Reader_MatchesChunks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.StringN(1, 300, -1).Draw(rt, "payload")
		size := rapid.IntRange(1, 40).Draw(rt, "chunkSize")

		e, err := New(payload, Config{ChunkSize: size}, WithClock(newFakeClock()))
		require.NoError(rt, err)

		r, err := e.Reader(t.Context())
		require.NoError(rt, err)
		defer r.Close()

		got, err := io.ReadAll(r)
		require.NoError(rt, err)
		assert.Equal(rt, payload, string(got))
	})
}
