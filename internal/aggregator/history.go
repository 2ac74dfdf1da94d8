package aggregator

import (
	"sync"

	"garden-monitor/internal/models"
)

// DefaultHistoryCapacity is the number of snapshots kept for trend derivation.
const DefaultHistoryCapacity = 20

// HistoryBuffer is a fixed-capacity ring of recent snapshots in arrival order.
// When full, appending evicts the oldest entry.
type HistoryBuffer struct {
	mu      sync.RWMutex
	entries []models.HistoryEntry
	head    int // next write position
	size    int
}

// NewHistoryBuffer creates a buffer holding at most capacity entries.
// A non-positive capacity falls back to DefaultHistoryCapacity.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryBuffer{
		entries: make([]models.HistoryEntry, capacity),
	}
}

// Append adds entry at the tail, evicting the oldest entry when full.
func (h *HistoryBuffer) Append(entry models.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = entry
	h.head = (h.head + 1) % len(h.entries)
	if h.size < len(h.entries) {
		h.size++
	}
}

// Current returns the most recent snapshot, or the zero snapshot when empty.
func (h *HistoryBuffer) Current() models.SensorSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size == 0 {
		return models.SensorSnapshot{}
	}
	return h.entries[h.index(h.size-1)].Snapshot
}

// Latest returns the most recent entry and whether one exists.
func (h *HistoryBuffer) Latest() (models.HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size == 0 {
		return models.HistoryEntry{}, false
	}
	return h.entries[h.index(h.size-1)], true
}

// Window returns the last n entries, oldest first. Fewer are returned when
// the buffer holds less than n. The result is a copy.
func (h *HistoryBuffer) Window(n int) []models.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}

	out := make([]models.HistoryEntry, n)
	start := h.size - n
	for i := 0; i < n; i++ {
		out[i] = h.entries[h.index(start+i)]
	}
	return out
}

// Len returns the number of entries held.
func (h *HistoryBuffer) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap returns the maximum number of entries held.
func (h *HistoryBuffer) Cap() int {
	return len(h.entries)
}

// index maps a logical position (0 = oldest) to a slot in entries.
func (h *HistoryBuffer) index(i int) int {
	oldest := (h.head - h.size + len(h.entries)) % len(h.entries)
	return (oldest + i) % len(h.entries)
}
