package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/justduck/relaybot/internal/observability"
	"github.com/justduck/relaybot/internal/reliability"
)

// ClientConfig wires the Bot API client.
type ClientConfig struct {
	Token      string
	APIBase    string
	HTTPClient *http.Client
	// OutboundRate caps API calls per second across all chats.
	OutboundRate  float64
	OutboundBurst int
	// ChunkDelay spaces consecutive chunks of one long reply.
	ChunkDelay time.Duration
	Metrics    *observability.Metrics
	Logger     *log.Logger
}

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	token      string
	apiBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
	chunkDelay time.Duration
	metrics    *observability.Metrics
	logger     *log.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if strings.TrimSpace(cfg.APIBase) == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.OutboundRate <= 0 {
		cfg.OutboundRate = 25
	}
	if cfg.OutboundBurst <= 0 {
		cfg.OutboundBurst = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Client{
		token:      cfg.Token,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.OutboundRate), cfg.OutboundBurst),
		chunkDelay: cfg.ChunkDelay,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// APIError is a non-ok response from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsParseError reports whether the API rejected message formatting,
// the signal to retry without a parse mode.
func IsParseError(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	return apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Description), "can't parse entities")
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/bot"+c.token+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	return c.decode(method, resp)
}

func (c *Client) decode(method string, resp *http.Response) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	var out apiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !out.OK {
		if c.metrics != nil {
			c.metrics.ProviderErrors.WithLabelValues("telegram", fmt.Sprintf("%d", out.ErrorCode)).Inc()
		}
		return nil, &APIError{Method: method, Code: out.ErrorCode, Description: out.Description}
	}
	return out.Result, nil
}

// SendOptions adjusts a single outbound text message.
type SendOptions struct {
	// ReplyMarkup is a keyboard payload, see LocationKeyboard and
	// RemoveKeyboard.
	ReplyMarkup any
	// PlainOnly skips the Markdown attempt entirely.
	PlainOnly bool
}

// SendMessage delivers text to a chat, splitting it into chunks under
// the API limit. Each chunk is first sent as Markdown; if Telegram
// rejects the formatting the chunk is resent as plain text so the
// user always receives the content. A chunk that fails outright is
// logged and skipped, the remaining chunks are still attempted.
// SendMessage returns an error only when no chunk was delivered.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) error {
	chunks := SplitMessage(text, ChunkLimit)
	if len(chunks) == 0 {
		return nil
	}
	delivered := 0
	var lastErr error
	for i, chunk := range chunks {
		if i > 0 && c.chunkDelay > 0 {
			select {
			case <-time.After(c.chunkDelay):
			case <-ctx.Done():
				c.countMessage("text", "error")
				return ctx.Err()
			}
		}
		if err := c.sendChunk(ctx, chatID, chunk, opts, i == len(chunks)-1); err != nil {
			if ctx.Err() != nil {
				c.countMessage("text", "error")
				return ctx.Err()
			}
			c.logger.Printf("telegram: chunk %d/%d to %d undelivered: %v", i+1, len(chunks), chatID, err)
			lastErr = err
			continue
		}
		delivered++
	}
	switch {
	case delivered == len(chunks):
		c.countMessage("text", "ok")
		return nil
	case delivered > 0:
		c.countMessage("text", "partial")
		return nil
	default:
		c.countMessage("text", "error")
		return lastErr
	}
}

func (c *Client) sendChunk(ctx context.Context, chatID int64, chunk string, opts SendOptions, last bool) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    chunk,
	}
	// Keyboards ride on the last chunk only.
	if opts.ReplyMarkup != nil && last {
		payload["reply_markup"] = opts.ReplyMarkup
	}

	if !opts.PlainOnly {
		payload["parse_mode"] = "Markdown"
		_, err := c.call(ctx, "sendMessage", payload)
		if err == nil {
			c.countChunk("markdown")
			return nil
		}
		if !IsParseError(err) {
			return err
		}
		delete(payload, "parse_mode")
	}
	if _, err := c.call(ctx, "sendMessage", payload); err != nil {
		return err
	}
	c.countChunk("plain")
	return nil
}

// SendPhoto posts a photo by URL with an optional caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"photo":   photoURL,
	}
	if caption != "" {
		payload["caption"] = caption
	}
	if _, err := c.call(ctx, "sendPhoto", payload); err != nil {
		c.countMessage("photo", "error")
		return err
	}
	c.countMessage("photo", "ok")
	return nil
}

// SendVoice uploads an audio payload as a voice note.
func (c *Client) SendVoice(ctx context.Context, chatID int64, audio []byte, filename string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	part, err := w.CreateFormFile("voice", filename)
	if err != nil {
		return fmt.Errorf("create voice part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("write voice payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/bot"+c.token+"/sendVoice", &buf)
	if err != nil {
		return fmt.Errorf("build sendVoice request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countMessage("voice", "error")
		return fmt.Errorf("call sendVoice: %w", err)
	}
	defer resp.Body.Close()

	if _, err := c.decode("sendVoice", resp); err != nil {
		c.countMessage("voice", "error")
		return err
	}
	c.countMessage("voice", "ok")
	return nil
}

// SendChatAction shows a typing or recording indicator. Failures are
// logged by callers at most; the indicator is cosmetic.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	_, err := c.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  action,
	})
	return err
}

type fileInfo struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

// DownloadFile resolves a file_id and fetches its bytes.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	raw, err := c.call(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	var fi fileInfo
	if err := json.Unmarshal(raw, &fi); err != nil {
		return nil, fmt.Errorf("decode getFile result: %w", err)
	}
	if fi.FilePath == "" {
		return nil, fmt.Errorf("getFile returned empty file_path for %s", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiBase+"/file/bot"+c.token+"/"+fi.FilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("build file download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return nil, fmt.Errorf("download file: transient status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	return data, nil
}

func (c *Client) countMessage(kind, status string) {
	if c.metrics != nil {
		c.metrics.OutboundMessages.WithLabelValues(kind, status).Inc()
	}
}

func (c *Client) countChunk(mode string) {
	if c.metrics != nil {
		c.metrics.OutboundChunks.WithLabelValues(mode).Inc()
	}
}
