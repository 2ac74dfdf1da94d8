package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garden-monitor/internal/models"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []models.HistoryEntry
	err   error
}

func (f *fakeStore) SaveReading(ctx context.Context, _ string, entry models.HistoryEntry) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing write deadline")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, entry)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type countingArchiveObserver struct {
	mu      sync.Mutex
	written int
	failed  int
}

func (c *countingArchiveObserver) ArchiveWritten() { c.mu.Lock(); c.written++; c.mu.Unlock() }
func (c *countingArchiveObserver) ArchiveFailed()  { c.mu.Lock(); c.failed++; c.mu.Unlock() }

func (c *countingArchiveObserver) snapshot() (written, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written, c.failed
}

func TestArchiveService_WritesQueuedReadings(t *testing.T) {
	store := &fakeStore{}
	obs := &countingArchiveObserver{}
	svc := NewArchiveService(store, obs, nil, DefaultArchiveServiceConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	entry := models.HistoryEntry{Snapshot: models.SensorSnapshot{Temperature: 22}, ReceivedAt: time.Now()}
	require.True(t, svc.Enqueue(testTopic, entry))
	require.True(t, svc.Enqueue(testTopic, entry))

	require.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 10*time.Millisecond)
	written, failed := obs.snapshot()
	assert.Equal(t, 2, written)
	assert.Zero(t, failed)
}

func TestArchiveService_CountsStoreFailures(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	obs := &countingArchiveObserver{}
	svc := NewArchiveService(store, obs, nil, DefaultArchiveServiceConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	require.True(t, svc.Enqueue(testTopic, models.HistoryEntry{}))
	require.Eventually(t, func() bool {
		_, failed := obs.snapshot()
		return failed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestArchiveService_EnqueueNeverBlocks(t *testing.T) {
	obs := &countingArchiveObserver{}
	svc := NewArchiveService(&fakeStore{}, obs, nil, ArchiveServiceConfig{QueueSize: 1})

	assert.True(t, svc.Enqueue(testTopic, models.HistoryEntry{}))
	assert.False(t, svc.Enqueue(testTopic, models.HistoryEntry{}))

	_, failed := obs.snapshot()
	assert.Equal(t, 1, failed)
}

func TestArchiveService_StopsOnCancel(t *testing.T) {
	svc := NewArchiveService(&fakeStore{}, nil, nil, DefaultArchiveServiceConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("archive service did not stop")
	}
}
