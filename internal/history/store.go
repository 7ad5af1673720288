// Package history records command invocations so the history builtin
// and operators can see what the router resolved recently.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/relay/pkg/models"
)

// Entry is one recorded resolution.
type Entry struct {
	ID        int64              `json:"id"`
	Channel   models.ChannelType `json:"channel"`
	ChatID    string             `json:"chat_id"`
	UserID    string             `json:"user_id"`
	Alias     string             `json:"alias"`
	Outcome   string             `json:"outcome"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store persists invocation entries.
type Store interface {
	// Record appends one entry.
	Record(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-memory Store for tests and prefix-less local runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Record appends one entry.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
