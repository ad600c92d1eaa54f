// Package httpapi exposes the webhook, health, metrics, and admin
// REST surface.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justduck/relaybot/internal/config"
	"github.com/justduck/relaybot/internal/notify"
	"github.com/justduck/relaybot/internal/observability"
	"github.com/justduck/relaybot/internal/telegram"
	"github.com/justduck/relaybot/internal/users"
)

// UpdateHandler consumes one webhook update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd *telegram.Update) error
}

// DailyRunner triggers the notification sweep, or a single delivery
// for the manual test endpoint.
type DailyRunner interface {
	Run(ctx context.Context) (success, failed int)
	RunFor(ctx context.Context, telegramID int64) error
}

type Server struct {
	cfg     config.Config
	handler UpdateHandler
	users   users.Registry
	daily   DailyRunner
	metrics *observability.Metrics
	logger  *log.Logger
}

func New(cfg config.Config, handler UpdateHandler, registry users.Registry, daily DailyRunner, metrics *observability.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		users:   registry,
		daily:   daily,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/webhook/telegram", s.handleWebhook)

	r.Get("/cron/daily-weather", s.handleDailyCron)
	r.Post("/cron/daily-weather", s.handleDailyCron)

	r.Get("/v1/users", s.handleListUsers)
	r.Get("/v1/users/{id}", s.handleGetUser)
	r.Put("/v1/users/{id}", s.handleUpdateUser)
	r.Delete("/v1/users/{id}", s.handleDeleteUser)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"daily_enabled": s.cfg.DailyEnabled,
	})
}

// handleWebhook authenticates the secret header, then always answers
// 200 with {"ok":true}. Processing errors are logged, never surfaced;
// a non-2xx reply would make Telegram redeliver the same update in a
// loop.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TelegramSecret != "" {
		got := r.Header.Get(telegram.SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.TelegramSecret)) != 1 {
			s.countWebhook("rejected")
			respondError(w, http.StatusForbidden, "forbidden", "invalid secret token")
			return
		}
	}

	var upd telegram.Update
	if err := decodeJSON(r, &upd); err != nil {
		s.countWebhook("bad_payload")
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if err := s.handler.HandleUpdate(r.Context(), &upd); err != nil {
		s.logger.Printf("httpapi: handle update %d: %v", upd.UpdateID, err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleDailyCron runs the full sweep on GET, the external scheduler
// trigger. POST targets a single user for manual testing.
func (s *Server) handleDailyCron(w http.ResponseWriter, r *http.Request) {
	if s.daily == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "daily notifications not configured")
		return
	}
	if r.Method == http.MethodPost {
		s.handleDailyTest(w, r)
		return
	}
	success, failed := s.daily.Run(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"success": success, "failed": failed})
}

func (s *Server) handleDailyTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID int64 `json:"telegram_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.TelegramID == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "telegram_id is required")
		return
	}
	switch err := s.daily.RunFor(r.Context(), req.TelegramID); {
	case errors.Is(err, users.ErrNotFound):
		respondError(w, http.StatusNotFound, "user_not_found", "no such user")
	case errors.Is(err, notify.ErrNotSubscribed):
		respondError(w, http.StatusBadRequest, "not_subscribed", "daily weather is not enabled for this user")
	case errors.Is(err, notify.ErrNoLocation):
		respondError(w, http.StatusBadRequest, "no_location", "user has no saved location")
	case err != nil:
		respondError(w, http.StatusInternalServerError, "notify_error", err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]any{"sent": req.TelegramID})
	}
}

type profileResponse struct {
	TelegramID   int64             `json:"telegram_id"`
	Username     string            `json:"username,omitempty"`
	FirstName    string            `json:"first_name,omitempty"`
	LastName     string            `json:"last_name,omitempty"`
	Role         users.Role        `json:"role"`
	Location     *users.Location   `json:"location,omitempty"`
	Preferences  users.Preferences `json:"preferences"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActiveAt time.Time         `json:"last_active_at"`
}

func toProfileResponse(p users.Profile) profileResponse {
	return profileResponse{
		TelegramID:   p.TelegramID,
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Role:         p.Role,
		Location:     p.Location,
		Preferences:  p.Preferences,
		CreatedAt:    p.CreatedAt,
		LastActiveAt: p.LastActiveAt,
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	all, err := s.users.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	out := make([]profileResponse, 0, len(all))
	for _, p := range all {
		out = append(out, toProfileResponse(p))
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": out, "count": len(out)})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.userID(w, r)
	if !ok {
		return
	}
	p, err := s.users.Get(r.Context(), id)
	if errors.Is(err, users.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user_not_found", "no such user")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toProfileResponse(p))
}

type updateUserRequest struct {
	Role         *string `json:"role"`
	DailyWeather *bool   `json:"daily_weather"`
	NotifyTime   *string `json:"notify_time"`
	Timezone     *string `json:"timezone"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if req.Role != nil {
		role := users.Role(strings.ToLower(*req.Role))
		if role != users.RoleAdmin && role != users.RoleMember {
			respondError(w, http.StatusBadRequest, "invalid_role", "role must be admin or member")
			return
		}
		switch err := s.users.SetRole(r.Context(), id, role); {
		case errors.Is(err, users.ErrNotFound):
			respondError(w, http.StatusNotFound, "user_not_found", "no such user")
			return
		case errors.Is(err, users.ErrLastAdmin):
			respondError(w, http.StatusConflict, "last_admin", "cannot demote the last admin")
			return
		case err != nil:
			respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
	}

	upd := users.Update{
		DailyWeather: req.DailyWeather,
		NotifyTime:   req.NotifyTime,
		Timezone:     req.Timezone,
	}
	p, err := s.users.Update(r.Context(), id, upd)
	if errors.Is(err, users.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user_not_found", "no such user")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toProfileResponse(p))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.userID(w, r)
	if !ok {
		return
	}
	switch err := s.users.Delete(r.Context(), id); {
	case errors.Is(err, users.ErrNotFound):
		respondError(w, http.StatusNotFound, "user_not_found", "no such user")
	case errors.Is(err, users.ErrLastAdmin):
		respondError(w, http.StatusConflict, "last_admin", "cannot delete the last admin")
	case err != nil:
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user id must be numeric")
		return 0, false
	}
	return id, true
}

func (s *Server) countWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookUpdates.WithLabelValues(outcome).Inc()
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
