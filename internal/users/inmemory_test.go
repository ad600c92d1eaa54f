package users

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFirstUserBecomesAdmin(t *testing.T) {
	r := NewInMemoryRegistry()
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, 100, Seed{Username: "alice"})
	if err != nil {
		t.Fatalf("GetOrCreate first: %v", err)
	}
	if first.Role != RoleAdmin {
		t.Fatalf("first user role = %q, want %q", first.Role, RoleAdmin)
	}

	second, err := r.GetOrCreate(ctx, 200, Seed{Username: "bob"})
	if err != nil {
		t.Fatalf("GetOrCreate second: %v", err)
	}
	if second.Role != RoleMember {
		t.Fatalf("second user role = %q, want %q", second.Role, RoleMember)
	}

	// Returning users keep their role but refresh display fields.
	again, err := r.GetOrCreate(ctx, 100, Seed{Username: "alice2", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("GetOrCreate returning: %v", err)
	}
	if again.Role != RoleAdmin {
		t.Fatalf("returning user role = %q, want %q", again.Role, RoleAdmin)
	}
	if again.Username != "alice2" || again.FirstName != "Alice" {
		t.Fatalf("display fields not refreshed: %+v", again)
	}
}

func TestBootstrapSurvivesDeletion(t *testing.T) {
	r := NewInMemoryRegistry()
	ctx := context.Background()

	if _, err := r.GetOrCreate(ctx, 1, Seed{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetOrCreate(ctx, 2, Seed{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, 2); err != nil {
		t.Fatalf("delete member: %v", err)
	}

	// A user created after deletions is still a member; the bootstrap
	// decision applies only to the very first creation.
	p, err := r.GetOrCreate(ctx, 3, Seed{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != RoleMember {
		t.Fatalf("post-deletion user role = %q, want %q", p.Role, RoleMember)
	}
}

func TestLastAdminProtection(t *testing.T) {
	r := NewInMemoryRegistry()
	ctx := context.Background()

	admin, err := r.GetOrCreate(ctx, 1, Seed{Username: "root"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetOrCreate(ctx, 2, Seed{}); err != nil {
		t.Fatal(err)
	}

	if err := r.SetRole(ctx, admin.TelegramID, RoleMember); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("SetRole demote last admin: err = %v, want ErrLastAdmin", err)
	}
	if err := r.Delete(ctx, admin.TelegramID); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("Delete last admin: err = %v, want ErrLastAdmin", err)
	}

	got, err := r.Get(ctx, admin.TelegramID)
	if err != nil {
		t.Fatalf("Get after failed mutations: %v", err)
	}
	if got.Role != RoleAdmin {
		t.Fatalf("role changed despite rejection: %q", got.Role)
	}

	// With a second admin the demotion goes through.
	if err := r.SetRole(ctx, 2, RoleAdmin); err != nil {
		t.Fatalf("promote second admin: %v", err)
	}
	if err := r.SetRole(ctx, admin.TelegramID, RoleMember); err != nil {
		t.Fatalf("demote with backup admin: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	r := NewInMemoryRegistry()
	ctx := context.Background()

	if _, err := r.GetOrCreate(ctx, 7, Seed{Username: "u"}); err != nil {
		t.Fatal(err)
	}

	daily := true
	notify := "07:30"
	loc := &Location{Latitude: 21.03, Longitude: 105.85, City: "Hà Nội", Country: "Việt Nam"}
	p, err := r.Update(ctx, 7, Update{DailyWeather: &daily, NotifyTime: &notify, Location: loc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !p.Preferences.DailyWeather || p.Preferences.NotifyTime != "07:30" {
		t.Fatalf("preferences not applied: %+v", p.Preferences)
	}
	if p.Location == nil || p.Location.City != "Hà Nội" {
		t.Fatalf("location not applied: %+v", p.Location)
	}
	if p.Location.UpdatedAt.IsZero() {
		t.Fatal("location UpdatedAt not stamped")
	}

	if _, err := r.Update(ctx, 999, Update{DailyWeather: &daily}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing user: err = %v, want ErrNotFound", err)
	}
}

func TestListAndCount(t *testing.T) {
	r := NewInMemoryRegistry()
	r.SetClock(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	for _, id := range []int64{10, 20, 30} {
		if _, err := r.GetOrCreate(ctx, id, Seed{}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll len = %d, want 3", len(all))
	}

	admins, err := r.ListByRole(ctx, RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if len(admins) != 1 || admins[0].TelegramID != 10 {
		t.Fatalf("ListByRole(admin) = %+v", admins)
	}

	n, err := r.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Count = %d, want 3", n)
	}
}
