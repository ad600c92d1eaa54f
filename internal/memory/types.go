package memory

import (
	"context"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnRecord stores a single user or assistant conversational turn.
type TurnRecord struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the retained memory for one conversation.
type Stats struct {
	TotalTurns    int
	UserTurns     int
	OldestTurnAge time.Duration
}

// Store persists and retrieves conversational memory per chat.
//
// Reads never return turns older than the retention window; expired turns
// are purged as a side effect of the read (lazy compaction), so no separate
// sweep job is needed.
type Store interface {
	Append(ctx context.Context, chatID int64, turns []TurnRecord) error
	Read(ctx context.Context, chatID int64) ([]TurnRecord, error)
	Clear(ctx context.Context, chatID int64) error
	Stats(ctx context.Context, chatID int64) (Stats, error)
	Close() error
}
