// Package staleness turns the age of the last accepted snapshot into a
// human-facing relative label and refreshes it on a fixed cadence.
package staleness

import (
	"context"
	"fmt"
	"time"
)

// DefaultInterval is the refresh cadence of the relative label.
const DefaultInterval = time.Second

// Label renders elapsed as "Ns ago", "Nmin ago" or "Nh ago", truncating
// toward zero. Negative durations (clock skew) read as "0s ago".
func Label(elapsed time.Duration) string {
	seconds := int64(elapsed / time.Second)
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dmin ago", seconds/60)
	default:
		return fmt.Sprintf("%dh ago", seconds/3600)
	}
}

// RelativeLabel returns the label for a mark observed at now. The label is
// absent (ok=false) when no snapshot has ever arrived.
func RelativeLabel(now, mark time.Time, hasMark bool) (label string, ok bool) {
	if !hasMark {
		return "", false
	}
	return Label(now.Sub(mark)), true
}

// MarkSource exposes the receive time of the most recent accepted snapshot.
type MarkSource interface {
	LastUpdate() (time.Time, bool)
}

// Clock periodically recomputes the relative label of a MarkSource.
type Clock struct {
	source   MarkSource
	interval time.Duration
	now      func() time.Time
}

// NewClock creates a clock over source. A non-positive interval falls back to
// DefaultInterval.
func NewClock(source MarkSource, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Clock{
		source:   source,
		interval: interval,
		now:      time.Now,
	}
}

// Current returns the label for the present instant.
func (c *Clock) Current() (string, bool) {
	mark, ok := c.source.LastUpdate()
	return RelativeLabel(c.now(), mark, ok)
}

// Run invokes onTick with a fresh label every interval until ctx is done.
// Ticks are skipped while no snapshot has arrived, so the label never
// advances from an absent mark. The ticker is released when Run returns.
func (c *Clock) Run(ctx context.Context, onTick func(label string)) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if label, ok := c.Current(); ok {
				onTick(label)
			}
		}
	}
}
