// Package tts synthesizes short Vietnamese voice replies through the
// Google Translate speech endpoint.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/justduck/relaybot/internal/reliability"
)

// MaxTextLength caps the synthesizable text; the endpoint truncates
// anything longer.
const MaxTextLength = 200

// ErrTextTooLong signals the cleaned text exceeds MaxTextLength, so
// callers can tell the user to shorten the request.
var ErrTextTooLong = errors.New("text too long for synthesis")

type Config struct {
	BaseURL    string
	Language   string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://translate.google.com"
	}
	if cfg.Language == "" {
		cfg.Language = "vi"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{cfg: cfg}
}

var (
	markdownChars = strings.NewReplacer("*", "", "_", "", "`", "", "~", "", "#", "")
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// CleanText strips markdown markers and URLs so the synthesized audio
// does not read out formatting.
func CleanText(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = markdownChars.Replace(text)
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Suitable reports whether text fits voice delivery after cleaning.
func Suitable(text string) bool {
	cleaned := CleanText(text)
	if cleaned == "" {
		return false
	}
	return len([]rune(cleaned)) <= MaxTextLength
}

// Synthesize returns MP3 bytes for the text. Text longer than
// MaxTextLength after cleaning is rejected so callers can fall back
// to a text reply.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil, fmt.Errorf("tts: nothing to synthesize")
	}
	if n := len([]rune(cleaned)); n > MaxTextLength {
		return nil, fmt.Errorf("tts: %w (%d runes, limit %d)", ErrTextTooLong, n, MaxTextLength)
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", cleaned)
	q.Set("tl", c.cfg.Language)
	q.Set("client", "tw-ob")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return nil, fmt.Errorf("tts transient status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("tts status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("tts returned empty audio")
	}
	return data, nil
}
