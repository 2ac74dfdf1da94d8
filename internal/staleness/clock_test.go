package staleness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedMark struct {
	mu   sync.Mutex
	at   time.Time
	seen bool
}

func (m *fixedMark) LastUpdate() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at, m.seen
}

func (m *fixedMark) set(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at, m.seen = at, true
}

func TestLabel(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "0s ago"},
		{5 * time.Second, "5s ago"},
		{59*time.Second + 999*time.Millisecond, "59s ago"},
		{60 * time.Second, "1min ago"},
		{90 * time.Second, "1min ago"},
		{3599 * time.Second, "59min ago"},
		{3600 * time.Second, "1h ago"},
		{7200 * time.Second, "2h ago"},
		{50 * time.Hour, "50h ago"},
		{-3 * time.Second, "0s ago"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.elapsed), "elapsed %v", tt.elapsed)
	}
}

func TestRelativeLabel(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	label, ok := RelativeLabel(now, now.Add(-5*time.Second), true)
	require.True(t, ok)
	assert.Equal(t, "5s ago", label)

	label, ok = RelativeLabel(now, now.Add(-90*time.Second), true)
	require.True(t, ok)
	assert.Equal(t, "1min ago", label)

	label, ok = RelativeLabel(now, now.Add(-7200*time.Second), true)
	require.True(t, ok)
	assert.Equal(t, "2h ago", label)

	label, ok = RelativeLabel(now, time.Time{}, false)
	assert.False(t, ok)
	assert.Empty(t, label)
}

func TestClock_CurrentWithoutMark(t *testing.T) {
	c := NewClock(&fixedMark{}, 0)

	_, ok := c.Current()
	assert.False(t, ok)
	assert.Equal(t, DefaultInterval, c.interval)
}

func TestClock_RunSkipsUntilMarked(t *testing.T) {
	mark := &fixedMark{}
	c := NewClock(mark, 5*time.Millisecond)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	labels := make(chan string, 100)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, func(label string) { labels <- label })
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, labels, "no ticks before the first snapshot")

	mark.set(now.Add(-42 * time.Second))
	select {
	case label := <-labels:
		assert.Equal(t, "42s ago", label)
	case <-time.After(time.Second):
		t.Fatal("expected a tick after the mark was set")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
