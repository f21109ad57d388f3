package service

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// DefaultHistoryLimit is how many resolution outcomes are kept per guild.
const DefaultHistoryLimit = 100

// ConflictHistoryStore retains recent resolution outcomes per guild. It feeds
// statistics only and is never authoritative.
type ConflictHistoryStore interface {
	Append(ctx context.Context, guildID string, entry domain.ConflictHistoryEntry) error
	List(ctx context.Context, guildID string) ([]domain.ConflictHistoryEntry, error)
	Clear(ctx context.Context, guildID string) error
}

// SyncStateStore remembers when each guild was last reconciled.
type SyncStateStore interface {
	LastSync(ctx context.Context, guildID string) (time.Time, bool, error)
	SetLastSync(ctx context.Context, guildID string, at time.Time) error
}

// MemoryConflictHistory is a per-guild ring buffer. Buffers are created on
// first append and dropped by Clear.
type MemoryConflictHistory struct {
	mu      sync.Mutex
	limit   int
	entries map[string][]domain.ConflictHistoryEntry
}

// NewMemoryConflictHistory builds a store keeping at most limit entries per guild.
func NewMemoryConflictHistory(limit int) *MemoryConflictHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryConflictHistory{limit: limit, entries: map[string][]domain.ConflictHistoryEntry{}}
}

func (m *MemoryConflictHistory) Append(_ context.Context, guildID string, entry domain.ConflictHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := append(m.entries[guildID], entry)
	if over := len(buf) - m.limit; over > 0 {
		buf = append([]domain.ConflictHistoryEntry(nil), buf[over:]...)
	}
	m.entries[guildID] = buf
	return nil
}

// List returns the retained entries oldest first.
func (m *MemoryConflictHistory) List(_ context.Context, guildID string) ([]domain.ConflictHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ConflictHistoryEntry(nil), m.entries[guildID]...), nil
}

func (m *MemoryConflictHistory) Clear(_ context.Context, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, guildID)
	return nil
}

// MemorySyncState keeps last-sync timestamps in process memory.
type MemorySyncState struct {
	mu    sync.RWMutex
	times map[string]time.Time
}

// NewMemorySyncState builds an empty store.
func NewMemorySyncState() *MemorySyncState {
	return &MemorySyncState{times: map[string]time.Time{}}
}

func (m *MemorySyncState) LastSync(_ context.Context, guildID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.times[guildID]
	return t, ok, nil
}

func (m *MemorySyncState) SetLastSync(_ context.Context, guildID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.times[guildID] = at
	return nil
}

// Pauser blocks for d between batch chunks.
type Pauser func(ctx context.Context, d time.Duration)

// SleepPause waits d or until ctx is done, whichever comes first.
func SleepPause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// batchPacer inserts a pause after every `every` processed units.
type batchPacer struct {
	every int
	pause time.Duration
	sleep Pauser
}

func newBatchPacer(every int, pause time.Duration, sleep Pauser) batchPacer {
	if sleep == nil {
		sleep = SleepPause
	}
	return batchPacer{every: every, pause: pause, sleep: sleep}
}

func (p batchPacer) tick(ctx context.Context, processed int) {
	if p.every <= 0 || p.pause <= 0 || processed == 0 || processed%p.every != 0 {
		return
	}
	p.sleep(ctx, p.pause)
}
