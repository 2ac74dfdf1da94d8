package services

import (
	"context"
	"log/slog"
	"time"

	"garden-monitor/internal/models"
)

// ReadingStore persists accepted snapshots. database.ClickHouseDB implements it.
type ReadingStore interface {
	SaveReading(ctx context.Context, topic string, entry models.HistoryEntry) error
}

// ArchiveObserver counts archive outcomes.
type ArchiveObserver interface {
	ArchiveWritten()
	ArchiveFailed()
}

// ArchiveServiceConfig holds configuration for archive service
type ArchiveServiceConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultArchiveServiceConfig returns default configuration
func DefaultArchiveServiceConfig() ArchiveServiceConfig {
	return ArchiveServiceConfig{
		QueueSize:    100,
		WriteTimeout: 5 * time.Second,
	}
}

type archivedReading struct {
	topic string
	entry models.HistoryEntry
}

// ArchiveService writes accepted snapshots to a ReadingStore off the ingest
// path. When the queue is full readings are dropped, never blocking the session.
type ArchiveService struct {
	store    ReadingStore
	observer ArchiveObserver
	logger   *slog.Logger
	timeout  time.Duration

	queue chan archivedReading
}

// NewArchiveService creates a new archive service
func NewArchiveService(store ReadingStore, observer ArchiveObserver, logger *slog.Logger, config ArchiveServiceConfig) *ArchiveService {
	if logger == nil {
		logger = slog.Default()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultArchiveServiceConfig().QueueSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultArchiveServiceConfig().WriteTimeout
	}
	return &ArchiveService{
		store:    store,
		observer: observer,
		logger:   logger.With("component", "archive"),
		timeout:  config.WriteTimeout,
		queue:    make(chan archivedReading, config.QueueSize),
	}
}

// Enqueue queues a reading for storage. It reports false when the queue is full.
func (a *ArchiveService) Enqueue(topic string, entry models.HistoryEntry) bool {
	select {
	case a.queue <- archivedReading{topic: topic, entry: entry}:
		return true
	default:
		if a.observer != nil {
			a.observer.ArchiveFailed()
		}
		return false
	}
}

// Start processes queued readings until the context is cancelled.
func (a *ArchiveService) Start(ctx context.Context) {
	a.logger.Info("ArchiveService: Starting...")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("ArchiveService: Shutting down...", "pending", len(a.queue))
			return
		case r := <-a.queue:
			a.save(ctx, r)
		}
	}
}

func (a *ArchiveService) save(ctx context.Context, r archivedReading) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.store.SaveReading(ctx, r.topic, r.entry); err != nil {
		a.logger.Error("ArchiveService: Error saving reading", "topic", r.topic, "error", err)
		if a.observer != nil {
			a.observer.ArchiveFailed()
		}
		return
	}

	a.logger.Debug("ArchiveService: Saved reading", "topic", r.topic, "received_at", r.entry.ReceivedAt)
	if a.observer != nil {
		a.observer.ArchiveWritten()
	}
}
