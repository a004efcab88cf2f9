package pace

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// progressLog logs emission progress at most once per second.
type progressLog struct {
	logger    *slog.Logger
	clock     Clock
	sent      atomic.Int64
	total     int
	startTime time.Time
	lastLog   time.Time
}

func (pl *progressLog) add(n int) {
	if pl == nil {
		return
	}

	pl.sent.Add(int64(n))

	if now := pl.clock.Now(); now.Sub(pl.lastLog) >= time.Second {
		pl.lastLog = now
		pl.log("streaming")
	}
}

func (pl *progressLog) log(msg string, extra ...any) {
	sent := pl.sent.Load()
	elapsed := pl.clock.Now().Sub(pl.startTime)

	var cps float64
	if elapsed > 0 {
		cps = float64(sent) / elapsed.Seconds()
	}

	attrs := []any{
		"progress", fmt.Sprintf("%.1f%%", float64(sent)/float64(pl.total)*100),
		"elapsed", elapsed.Round(time.Millisecond),
		"sent", sent,
		"total", pl.total,
		"cps", fmt.Sprintf("%.0f", cps),
	}
	pl.logger.Info(msg, append(attrs, extra...)...)
}
