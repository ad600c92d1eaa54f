package users

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRegistry is a simple in-process registry for local/dev use.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	now      func() time.Time
	profiles map[int64]Profile
	created  int
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		now:      time.Now,
		profiles: make(map[int64]Profile),
	}
}

// SetClock overrides the time source. Tests only.
func (r *InMemoryRegistry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *InMemoryRegistry) GetOrCreate(_ context.Context, id int64, seed Seed) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	if p, ok := r.profiles[id]; ok {
		p.Username = seed.Username
		p.FirstName = seed.FirstName
		p.LastName = seed.LastName
		p.UpdatedAt = ts
		p.LastActiveAt = ts
		r.profiles[id] = p
		return p, nil
	}

	role := RoleMember
	// First registered user bootstraps as admin. Decided once, at creation.
	if r.created == 0 {
		role = RoleAdmin
	}
	p := Profile{
		TelegramID:   id,
		Username:     seed.Username,
		FirstName:    seed.FirstName,
		LastName:     seed.LastName,
		Role:         role,
		Preferences:  Preferences{NotifyTime: "06:00", Timezone: "Asia/Ho_Chi_Minh"},
		CreatedAt:    ts,
		UpdatedAt:    ts,
		LastActiveAt: ts,
	}
	r.profiles[id] = p
	r.created++
	return p, nil
}

func (r *InMemoryRegistry) Get(_ context.Context, id int64) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *InMemoryRegistry) Update(_ context.Context, id int64, upd Update) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	if upd.Username != nil {
		p.Username = *upd.Username
	}
	if upd.FirstName != nil {
		p.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = *upd.LastName
	}
	if upd.Location != nil {
		loc := *upd.Location
		if loc.UpdatedAt.IsZero() {
			loc.UpdatedAt = r.now().UTC()
		}
		p.Location = &loc
	}
	if upd.DailyWeather != nil {
		p.Preferences.DailyWeather = *upd.DailyWeather
	}
	if upd.NotifyTime != nil {
		p.Preferences.NotifyTime = *upd.NotifyTime
	}
	if upd.Timezone != nil {
		p.Preferences.Timezone = *upd.Timezone
	}
	ts := r.now().UTC()
	p.UpdatedAt = ts
	p.LastActiveAt = ts
	r.profiles[id] = p
	return p, nil
}

func (r *InMemoryRegistry) SetRole(_ context.Context, id int64, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if p.Role == RoleAdmin && role != RoleAdmin && r.adminCountLocked() <= 1 {
		return ErrLastAdmin
	}
	p.Role = role
	p.UpdatedAt = r.now().UTC()
	r.profiles[id] = p
	return nil
}

func (r *InMemoryRegistry) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if p.Role == RoleAdmin && r.adminCountLocked() <= 1 {
		return ErrLastAdmin
	}
	delete(r.profiles, id)
	return nil
}

func (r *InMemoryRegistry) ListAll(_ context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRegistry) ListByRole(ctx context.Context, role Role) ([]Profile, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, p := range all {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *InMemoryRegistry) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles), nil
}

func (r *InMemoryRegistry) Close() error { return nil }

func (r *InMemoryRegistry) adminCountLocked() int {
	n := 0
	for _, p := range r.profiles {
		if p.Role == RoleAdmin {
			n++
		}
	}
	return n
}
