package memory

import (
	"context"
	"testing"
	"time"
)

func TestAppendAndReadChronological(t *testing.T) {
	s := NewInMemoryStore(2 * time.Hour)
	ctx := context.Background()

	err := s.Append(ctx, 1, []TurnRecord{
		{Role: RoleUser, Content: "xin chào"},
		{Role: RoleAssistant, Content: "chào bạn"},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	turns, err := s.Read(ctx, 1)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Fatalf("turn order wrong: %+v", turns)
	}
	if turns[0].ID == "" {
		t.Fatalf("turn ID should be assigned on append")
	}
}

func TestRetentionExcludesExpiredTurns(t *testing.T) {
	s := NewInMemoryStore(2 * time.Hour)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	if err := s.Append(ctx, 7, []TurnRecord{{Role: RoleUser, Content: "old"}}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Advance past the retention window; the old turn must be invisible.
	now = base.Add(2*time.Hour + time.Minute)
	if err := s.Append(ctx, 7, []TurnRecord{{Role: RoleUser, Content: "fresh"}}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	turns, err := s.Read(ctx, 7)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "fresh" {
		t.Fatalf("Read() = %+v, want only the fresh turn", turns)
	}
}

func TestReadCompactsLazily(t *testing.T) {
	s := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	if err := s.Append(ctx, 3, []TurnRecord{{Role: RoleUser, Content: "a"}}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	now = base.Add(90 * time.Minute)
	if turns, _ := s.Read(ctx, 3); len(turns) != 0 {
		t.Fatalf("expired turns leaked: %+v", turns)
	}
	if _, ok := s.records[3]; ok {
		t.Fatalf("read should purge the fully expired record")
	}
}

func TestClearAndStats(t *testing.T) {
	s := NewInMemoryStore(2 * time.Hour)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	_ = s.Append(ctx, 5, []TurnRecord{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
		{Role: RoleUser, Content: "q2"},
	})

	now = base.Add(30 * time.Minute)
	st, err := s.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.TotalTurns != 3 || st.UserTurns != 2 {
		t.Fatalf("Stats = %+v", st)
	}
	if st.OldestTurnAge != 30*time.Minute {
		t.Fatalf("OldestTurnAge = %v, want 30m", st.OldestTurnAge)
	}

	if err := s.Clear(ctx, 5); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	turns, _ := s.Read(ctx, 5)
	if len(turns) != 0 {
		t.Fatalf("memory should be empty after Clear, got %+v", turns)
	}
}
