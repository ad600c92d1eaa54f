package memory

import (
	"context"
	"strings"
	"time"
)

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string, retention time.Duration) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(retention), nil
	}
	return NewPostgresStore(ctx, databaseURL, retention)
}
