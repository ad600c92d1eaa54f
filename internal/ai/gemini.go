package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/justduck/relaybot/internal/observability"
	"github.com/justduck/relaybot/internal/reliability"
)

type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *observability.Metrics
}

// GeminiGenerator calls the Google generative language REST API.
type GeminiGenerator struct {
	cfg GeminiConfig
}

func NewGeminiGenerator(cfg GeminiConfig) *GeminiGenerator {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &GeminiGenerator{cfg: cfg}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body := geminiRequest{}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, turn := range req.History {
		role := RoleUser
		if turn.Role == RoleModel {
			role = RoleModel
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: turn.Text}},
		})
	}

	last := geminiContent{Role: RoleUser}
	if req.UserText != "" {
		last.Parts = append(last.Parts, geminiPart{Text: req.UserText})
	}
	for _, img := range req.Images {
		last.Parts = append(last.Parts, geminiPart{InlineData: &geminiInlineData{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	if len(last.Parts) == 0 {
		return "", fmt.Errorf("empty generation request")
	}
	body.Contents = append(body.Contents, last)

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") +
		"/v1beta/models/" + g.cfg.Model + ":generateContent?key=" + g.cfg.APIKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := g.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		g.countError("network")
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()
	if g.cfg.Metrics != nil {
		g.cfg.Metrics.ObserveAILatency(time.Since(started))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		g.countError(strconv.Itoa(resp.StatusCode))
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return "", fmt.Errorf("gemini transient status %d: %s", resp.StatusCode, firstLine(data))
		}
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, firstLine(data))
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if out.Error != nil {
		g.countError(out.Error.Status)
		return "", fmt.Errorf("gemini error %s: %s", out.Error.Status, out.Error.Message)
	}
	if len(out.Candidates) == 0 {
		g.countError("no_candidates")
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		g.countError("empty_text")
		return "", fmt.Errorf("gemini candidate had no text (finish reason %s)", out.Candidates[0].FinishReason)
	}
	return text, nil
}

func (g *GeminiGenerator) countError(code string) {
	if g.cfg.Metrics != nil {
		g.cfg.Metrics.ProviderErrors.WithLabelValues("gemini", code).Inc()
	}
}

func firstLine(data []byte) string {
	s := strings.TrimSpace(string(data))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
