package users

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var (
	// ErrNotFound is returned when no profile exists for the given id.
	ErrNotFound = errors.New("user not found")
	// ErrLastAdmin rejects demoting or deleting the sole remaining admin.
	ErrLastAdmin = errors.New("last admin cannot be demoted or deleted")
)

// Location is a user's saved place, resolved by reverse geocoding.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preferences holds the per-user notification settings.
type Preferences struct {
	DailyWeather bool   `json:"daily_weather"`
	NotifyTime   string `json:"notify_time"` // "HH:MM", 24h
	Timezone     string `json:"timezone"`
}

// Profile is one registered chat user.
type Profile struct {
	TelegramID   int64       `json:"telegram_id"`
	Username     string      `json:"username,omitempty"`
	FirstName    string      `json:"first_name,omitempty"`
	LastName     string      `json:"last_name,omitempty"`
	Role         Role        `json:"role"`
	Location     *Location   `json:"location,omitempty"`
	Preferences  Preferences `json:"preferences"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	LastActiveAt time.Time   `json:"last_active_at"`
}

// DisplayName prefers the first name, falling back to username then id.
func (p Profile) DisplayName() string {
	if p.FirstName != "" {
		return p.FirstName
	}
	if p.Username != "" {
		return "@" + p.Username
	}
	return "N/A"
}

// Seed carries the mutable display fields captured from an inbound message.
type Seed struct {
	Username  string
	FirstName string
	LastName  string
}

// Update is a partial profile mutation; nil fields are left untouched.
type Update struct {
	Username     *string
	FirstName    *string
	LastName     *string
	Location     *Location
	DailyWeather *bool
	NotifyTime   *string
	Timezone     *string
}

// Registry stores user profiles.
//
// The first profile ever created is granted the admin role (evaluated at
// creation time only). The registry never reaches a state with zero admins
// once at least one profile exists.
type Registry interface {
	GetOrCreate(ctx context.Context, id int64, seed Seed) (Profile, error)
	Get(ctx context.Context, id int64) (Profile, error)
	Update(ctx context.Context, id int64, upd Update) (Profile, error)
	SetRole(ctx context.Context, id int64, role Role) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]Profile, error)
	ListByRole(ctx context.Context, role Role) ([]Profile, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
