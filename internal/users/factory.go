package users

import "context"

// NewRegistry selects a registry backend. A blank URL keeps profiles
// in process memory, anything else is treated as a PostgreSQL DSN.
func NewRegistry(ctx context.Context, databaseURL string) (Registry, error) {
	if databaseURL == "" {
		return NewInMemoryRegistry(), nil
	}
	return NewPostgresRegistry(ctx, databaseURL)
}
