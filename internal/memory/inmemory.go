package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process memory store for local/dev use.
type InMemoryStore struct {
	mu        sync.RWMutex
	retention time.Duration
	now       func() time.Time
	records   map[int64][]TurnRecord
}

func NewInMemoryStore(retention time.Duration) *InMemoryStore {
	return &InMemoryStore{
		retention: retention,
		now:       time.Now,
		records:   make(map[int64][]TurnRecord),
	}
}

// SetClock overrides the time source. Tests only.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) Append(_ context.Context, chatID int64, turns []TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.records[chatID]
	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now().UTC()
		}
		t.ChatID = chatID
		merged = append(merged, t)
	}
	s.records[chatID] = s.filtered(merged)
	return nil
}

func (s *InMemoryStore) Read(_ context.Context, chatID int64) ([]TurnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.filtered(s.records[chatID])
	if len(kept) == 0 {
		delete(s.records, chatID)
		return nil, nil
	}
	s.records[chatID] = kept
	out := make([]TurnRecord, len(kept))
	copy(out, kept)
	return out, nil
}

func (s *InMemoryStore) Clear(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, chatID)
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context, chatID int64) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kept := s.filtered(s.records[chatID])
	st := Stats{TotalTurns: len(kept)}
	for _, t := range kept {
		if t.Role == RoleUser {
			st.UserTurns++
		}
	}
	if len(kept) > 0 {
		st.OldestTurnAge = s.now().UTC().Sub(kept[0].CreatedAt)
	}
	return st, nil
}

func (s *InMemoryStore) Close() error { return nil }

// filtered drops turns older than the retention window, preserving order.
// Re-filtering an already clean slice is a no-op.
func (s *InMemoryStore) filtered(turns []TurnRecord) []TurnRecord {
	cutoff := s.now().UTC().Add(-s.retention)
	kept := turns[:0:0]
	for _, t := range turns {
		if t.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}
