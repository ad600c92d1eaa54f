package bot

import (
	"context"
	"sync"
	"time"
)

// PendingKind tags what the bot is waiting for from a chat.
type PendingKind string

const (
	PendingLocation PendingKind = "location"
)

type pendingEntry struct {
	Kind      PendingKind
	CreatedAt time.Time
}

// PendingTracker remembers chats the bot has asked a follow up
// question, for example to share a location. Entries expire after a
// TTL so an abandoned prompt does not hijack the next message.
type PendingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]pendingEntry
	now     func() time.Time
}

func NewPendingTracker(ttl time.Duration) *PendingTracker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PendingTracker{
		ttl:     ttl,
		entries: make(map[int64]pendingEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (t *PendingTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *PendingTracker) Set(chatID int64, kind PendingKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[chatID] = pendingEntry{Kind: kind, CreatedAt: t.now()}
}

// Peek returns the pending kind for a chat without consuming it.
func (t *PendingTracker) Peek(chatID int64) (PendingKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[chatID]
	if !ok {
		return "", false
	}
	if t.now().Sub(e.CreatedAt) > t.ttl {
		delete(t.entries, chatID)
		return "", false
	}
	return e.Kind, true
}

// Clear removes a pending prompt, returning what was pending.
func (t *PendingTracker) Clear(chatID int64) (PendingKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[chatID]
	if !ok {
		return "", false
	}
	delete(t.entries, chatID)
	if t.now().Sub(e.CreatedAt) > t.ttl {
		return "", false
	}
	return e.Kind, true
}

// RunJanitor sweeps expired entries until the context ends.
func (t *PendingTracker) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *PendingTracker) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.ttl)
	for id, e := range t.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(t.entries, id)
		}
	}
}
