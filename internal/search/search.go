// Package search aggregates web and image search behind provider
// fallback chains. Each chain degrades to ErrNotConfigured when no
// provider has credentials so callers can reply with a fixed notice
// instead of failing the turn.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/justduck/relaybot/internal/observability"
)

// ErrNotConfigured means no provider in the chain has an API key.
var ErrNotConfigured = errors.New("search: no provider configured")

// Result is one web search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Image is one image search hit.
type Image struct {
	URL      string
	Credit   string
	Provider string
	PageURL  string
	AltText  string
}

type Config struct {
	TavilyAPIKey   string
	BraveAPIKey    string
	PexelsAPIKey   string
	UnsplashAPIKey string
	HTTPClient     *http.Client
	Metrics        *observability.Metrics
	Logger         *log.Logger

	// Base URLs are overridable for tests.
	TavilyBaseURL   string
	BraveBaseURL    string
	PexelsBaseURL   string
	UnsplashBaseURL string
}

// Service runs the fallback chains.
type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.TavilyBaseURL == "" {
		cfg.TavilyBaseURL = "https://api.tavily.com"
	}
	if cfg.BraveBaseURL == "" {
		cfg.BraveBaseURL = "https://api.search.brave.com"
	}
	if cfg.PexelsBaseURL == "" {
		cfg.PexelsBaseURL = "https://api.pexels.com"
	}
	if cfg.UnsplashBaseURL == "" {
		cfg.UnsplashBaseURL = "https://api.unsplash.com"
	}
	return &Service{cfg: cfg}
}

// WebConfigured reports whether at least one web search provider has
// credentials.
func (s *Service) WebConfigured() bool {
	return s.cfg.TavilyAPIKey != "" || s.cfg.BraveAPIKey != ""
}

// ImagesConfigured reports whether at least one image provider has
// credentials.
func (s *Service) ImagesConfigured() bool {
	return s.cfg.PexelsAPIKey != "" || s.cfg.UnsplashAPIKey != ""
}

// Search queries Tavily first and falls back to Brave when Tavily is
// unconfigured or fails.
func (s *Service) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	if !s.WebConfigured() {
		return nil, ErrNotConfigured
	}

	if s.cfg.TavilyAPIKey != "" {
		results, err := s.searchTavily(ctx, query, maxResults)
		if err == nil {
			return results, nil
		}
		s.countError("tavily")
		s.cfg.Logger.Printf("search: tavily failed, trying brave: %v", err)
		if s.cfg.BraveAPIKey == "" {
			return nil, err
		}
	}

	results, err := s.searchBrave(ctx, query, maxResults)
	if err != nil {
		s.countError("brave")
		return nil, err
	}
	return results, nil
}

// SearchImages queries Pexels first and falls back to Unsplash.
func (s *Service) SearchImages(ctx context.Context, query string, limit int) ([]Image, error) {
	if limit <= 0 {
		limit = 3
	}
	if !s.ImagesConfigured() {
		return nil, ErrNotConfigured
	}

	if s.cfg.PexelsAPIKey != "" {
		images, err := s.searchPexels(ctx, query, limit)
		if err == nil && len(images) > 0 {
			return images, nil
		}
		if err != nil {
			s.countError("pexels")
			s.cfg.Logger.Printf("search: pexels failed, trying unsplash: %v", err)
		}
		if s.cfg.UnsplashAPIKey == "" {
			if err != nil {
				return nil, err
			}
			return images, nil
		}
	}

	images, err := s.searchUnsplash(ctx, query, limit)
	if err != nil {
		s.countError("unsplash")
		return nil, err
	}
	return images, nil
}

// Digest renders results as numbered context lines for the model
// prompt.
func Digest(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n%s\nNguồn: %s\n\n", i+1, r.Title, r.Snippet, r.URL)
	}
	return strings.TrimSpace(b.String())
}

func (s *Service) countError(provider string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ProviderErrors.WithLabelValues(provider, "request_failed").Inc()
	}
}
