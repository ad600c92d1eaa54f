package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/justduck/relaybot/internal/reliability"
)

func (s *Service) searchTavily(ctx context.Context, query string, maxResults int) ([]Result, error) {
	payload, err := json.Marshal(map[string]any{
		"api_key":        s.cfg.TavilyAPIKey,
		"query":          query,
		"max_results":    maxResults,
		"search_depth":   "basic",
		"include_answer": false,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.cfg.TavilyBaseURL, "/")+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := s.doJSON(req, "tavily", &out); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}

func (s *Service) searchBrave(ctx context.Context, query string, maxResults int) ([]Result, error) {
	u := strings.TrimRight(s.cfg.BraveBaseURL, "/") + "/res/v1/web/search?q=" +
		url.QueryEscape(query) + "&count=" + strconv.Itoa(maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.cfg.BraveAPIKey)

	var out struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := s.doJSON(req, "brave", &out); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(out.Web.Results))
	for i, r := range out.Web.Results {
		if i >= maxResults {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return results, nil
}

func (s *Service) searchPexels(ctx context.Context, query string, limit int) ([]Image, error) {
	u := strings.TrimRight(s.cfg.PexelsBaseURL, "/") + "/v1/search?query=" +
		url.QueryEscape(query) + "&per_page=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build pexels request: %w", err)
	}
	req.Header.Set("Authorization", s.cfg.PexelsAPIKey)

	var out struct {
		Photos []struct {
			Photographer string `json:"photographer"`
			URL          string `json:"url"`
			Alt          string `json:"alt"`
			Src          struct {
				Large string `json:"large"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := s.doJSON(req, "pexels", &out); err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(out.Photos))
	for _, p := range out.Photos {
		images = append(images, Image{
			URL:      p.Src.Large,
			Credit:   p.Photographer,
			Provider: "Pexels",
			PageURL:  p.URL,
			AltText:  p.Alt,
		})
	}
	return images, nil
}

func (s *Service) searchUnsplash(ctx context.Context, query string, limit int) ([]Image, error) {
	u := strings.TrimRight(s.cfg.UnsplashBaseURL, "/") + "/search/photos?query=" +
		url.QueryEscape(query) + "&per_page=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build unsplash request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.cfg.UnsplashAPIKey)

	var out struct {
		Results []struct {
			AltDescription string `json:"alt_description"`
			URLs           struct {
				Regular string `json:"regular"`
			} `json:"urls"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
			User struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"results"`
	}
	if err := s.doJSON(req, "unsplash", &out); err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(out.Results))
	for _, r := range out.Results {
		images = append(images, Image{
			URL:      r.URLs.Regular,
			Credit:   r.User.Name,
			Provider: "Unsplash",
			PageURL:  r.Links.HTML,
			AltText:  r.AltDescription,
		})
	}
	return images, nil
}

func (s *Service) doJSON(req *http.Request, provider string, out any) error {
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return fmt.Errorf("%s transient status %d", provider, resp.StatusCode)
		}
		return fmt.Errorf("%s status %d", provider, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", provider, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}
