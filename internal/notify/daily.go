// Package notify delivers the morning weather message to subscribed
// users on a cron schedule.
package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/justduck/relaybot/internal/observability"
	"github.com/justduck/relaybot/internal/telegram"
	"github.com/justduck/relaybot/internal/users"
	"github.com/justduck/relaybot/internal/weather"
)

// RunFor preconditions a caller can branch on.
var (
	ErrNotSubscribed = errors.New("daily weather not enabled")
	ErrNoLocation    = errors.New("no saved location")
)

// Sender is the subset of the Telegram client the notifier needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) error
}

// Forecaster fetches conditions for a coordinate.
type Forecaster interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (weather.Current, error)
	FetchForecast(ctx context.Context, lat, lon float64, days int) ([]weather.Day, error)
}

type Config struct {
	// Delay spaces consecutive sends so one sweep does not burst
	// through the API rate budget.
	Delay time.Duration
}

// Service runs the daily weather sweep.
type Service struct {
	cfg     Config
	sender  Sender
	users   users.Registry
	weather Forecaster
	metrics *observability.Metrics
	logger  *log.Logger
}

func NewService(cfg Config, sender Sender, registry users.Registry, forecaster Forecaster, metrics *observability.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		cfg:     cfg,
		sender:  sender,
		users:   registry,
		weather: forecaster,
		metrics: metrics,
		logger:  logger,
	}
}

// Run sends the daily message to every subscribed user with a saved
// location. A failure for one user never aborts the sweep; the
// returned tally covers all attempted deliveries.
func (s *Service) Run(ctx context.Context) (success, failed int) {
	all, err := s.users.ListAll(ctx)
	if err != nil {
		s.logger.Printf("notify: list users: %v", err)
		return 0, 0
	}

	first := true
	for _, p := range all {
		if !p.Preferences.DailyWeather || p.Location == nil {
			continue
		}
		if !first && s.cfg.Delay > 0 {
			select {
			case <-time.After(s.cfg.Delay):
			case <-ctx.Done():
				return success, failed
			}
		}
		first = false

		if err := s.notifyUser(ctx, p); err != nil {
			s.logger.Printf("notify: user %d: %v", p.TelegramID, err)
			s.count("failed")
			failed++
			continue
		}
		s.count("success")
		success++
	}
	return success, failed
}

// RunFor delivers one notification to a single user, for the manual
// test endpoint. Admins may test before subscribing.
func (s *Service) RunFor(ctx context.Context, telegramID int64) error {
	p, err := s.users.Get(ctx, telegramID)
	if err != nil {
		return err
	}
	if p.Role != users.RoleAdmin && !p.Preferences.DailyWeather {
		return ErrNotSubscribed
	}
	if p.Location == nil {
		return ErrNoLocation
	}
	return s.notifyUser(ctx, p)
}

func (s *Service) notifyUser(ctx context.Context, p users.Profile) error {
	loc := p.Location
	cur, err := s.weather.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return err
	}

	var today *weather.Day
	if days, err := s.weather.FetchForecast(ctx, loc.Latitude, loc.Longitude, 1); err == nil && len(days) > 0 {
		today = &days[0]
	} else if err != nil {
		s.logger.Printf("notify: forecast for %d: %v", p.TelegramID, err)
	}

	place := loc.City
	if place == "" {
		place = "vị trí của bạn"
	}
	return s.sender.SendMessage(ctx, p.TelegramID, weather.FormatDaily(place, cur, today), telegram.SendOptions{})
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.NotifyResults.WithLabelValues(result).Inc()
	}
}
