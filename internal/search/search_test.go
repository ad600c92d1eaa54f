package search

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchNotConfigured(t *testing.T) {
	s := NewService(Config{Logger: log.New(io.Discard, "", 0)})
	if _, err := s.Search(context.Background(), "tin tức", 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := s.SearchImages(context.Background(), "mèo", 3); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if s.WebConfigured() || s.ImagesConfigured() {
		t.Fatal("service reports configured without keys")
	}
}

func TestSearchTavilyPrimary(t *testing.T) {
	tavily := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"Tin A","url":"https://a.vn","content":"mô tả A"}]}`))
	}))
	defer tavily.Close()

	s := NewService(Config{
		TavilyAPIKey:  "tk",
		BraveAPIKey:   "bk",
		TavilyBaseURL: tavily.URL,
		BraveBaseURL:  "http://127.0.0.1:0",
		Logger:        log.New(io.Discard, "", 0),
	})
	results, err := s.Search(context.Background(), "tin tức", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Tin A" || results[0].Snippet != "mô tả A" {
		t.Fatalf("results = %+v", results)
	}
}

func TestSearchFallsBackToBrave(t *testing.T) {
	tavily := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer tavily.Close()

	var braveToken string
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		braveToken = r.Header.Get("X-Subscription-Token")
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"Tin B","url":"https://b.vn","description":"mô tả B"}]}}`))
	}))
	defer brave.Close()

	s := NewService(Config{
		TavilyAPIKey:  "tk",
		BraveAPIKey:   "bk",
		TavilyBaseURL: tavily.URL,
		BraveBaseURL:  brave.URL,
		Logger:        log.New(io.Discard, "", 0),
	})
	results, err := s.Search(context.Background(), "tin tức", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Tin B" {
		t.Fatalf("results = %+v", results)
	}
	if braveToken != "bk" {
		t.Fatalf("brave token = %q", braveToken)
	}
}

func TestSearchTavilyOnlyFailurePropagates(t *testing.T) {
	tavily := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer tavily.Close()

	s := NewService(Config{
		TavilyAPIKey:  "tk",
		TavilyBaseURL: tavily.URL,
		Logger:        log.New(io.Discard, "", 0),
	})
	if _, err := s.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error when the only provider fails")
	}
}

func TestSearchImagesPexelsThenUnsplash(t *testing.T) {
	pexels := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer pexels.Close()

	unsplash := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Client-ID uk" {
			t.Errorf("authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"results":[{"alt_description":"a cat","urls":{"regular":"https://img/u1"},"links":{"html":"https://page/u1"},"user":{"name":"Ann"}}]}`))
	}))
	defer unsplash.Close()

	s := NewService(Config{
		PexelsAPIKey:    "pk",
		UnsplashAPIKey:  "uk",
		PexelsBaseURL:   pexels.URL,
		UnsplashBaseURL: unsplash.URL,
		Logger:          log.New(io.Discard, "", 0),
	})
	images, err := s.SearchImages(context.Background(), "mèo", 3)
	if err != nil {
		t.Fatalf("SearchImages: %v", err)
	}
	if len(images) != 1 || images[0].Provider != "Unsplash" || images[0].Credit != "Ann" {
		t.Fatalf("images = %+v", images)
	}
}

func TestDigest(t *testing.T) {
	got := Digest([]Result{
		{Title: "A", URL: "https://a", Snippet: "sa"},
		{Title: "B", URL: "https://b", Snippet: "sb"},
	})
	want := "1. A\nsa\nNguồn: https://a\n\n2. B\nsb\nNguồn: https://b"
	if got != want {
		t.Fatalf("Digest = %q, want %q", got, want)
	}
}
