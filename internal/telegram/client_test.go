package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedCall struct {
	Method  string
	Payload map[string]any
}

// newStubAPI fakes the Bot API. The handler receives the decoded
// payload and returns (ok, errorCode, description).
func newStubAPI(t *testing.T, handle func(method string, payload map[string]any) (bool, int, string)) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]
		var payload map[string]any
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.NewDecoder(r.Body).Decode(&payload)
		}
		calls = append(calls, recordedCall{Method: method, Payload: payload})

		ok, code, desc := handle(method, payload)
		w.Header().Set("Content-Type", "application/json")
		if ok {
			_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": code, "description": desc,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		Token:         "test-token",
		APIBase:       srv.URL,
		HTTPClient:    srv.Client(),
		OutboundRate:  1000,
		OutboundBurst: 100,
		Logger:        log.New(io.Discard, "", 0),
	})
}

func TestSendMessageMarkdownFirst(t *testing.T) {
	srv, calls := newStubAPI(t, func(string, map[string]any) (bool, int, string) {
		return true, 0, ""
	})
	c := newTestClient(srv)

	if err := c.SendMessage(context.Background(), 42, "*hello*", SendOptions{}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("call count = %d, want 1", len(*calls))
	}
	got := (*calls)[0]
	if got.Method != "sendMessage" {
		t.Fatalf("method = %q", got.Method)
	}
	if got.Payload["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode = %v, want Markdown", got.Payload["parse_mode"])
	}
}

func TestSendMessageFallsBackToPlainOnParseError(t *testing.T) {
	srv, calls := newStubAPI(t, func(_ string, payload map[string]any) (bool, int, string) {
		if payload["parse_mode"] == "Markdown" {
			return false, 400, "Bad Request: can't parse entities: unclosed bold"
		}
		return true, 0, ""
	})
	c := newTestClient(srv)

	if err := c.SendMessage(context.Background(), 42, "*broken markdown", SendOptions{}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("call count = %d, want markdown attempt then plain retry", len(*calls))
	}
	if _, has := (*calls)[1].Payload["parse_mode"]; has {
		t.Fatal("retry still carried parse_mode")
	}
	if (*calls)[1].Payload["text"] != "*broken markdown" {
		t.Fatalf("retry text = %v", (*calls)[1].Payload["text"])
	}
}

func TestSendMessageErrorsWhenNothingDelivered(t *testing.T) {
	srv, calls := newStubAPI(t, func(string, map[string]any) (bool, int, string) {
		return false, 403, "Forbidden: bot was blocked by the user"
	})
	c := newTestClient(srv)

	err := c.SendMessage(context.Background(), 42, "hi", SendOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Code != 403 {
		t.Fatalf("err = %v, want APIError 403", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("call count = %d, want no blind retry on non-parse errors", len(*calls))
	}
}

func TestSendMessageContinuesAfterChunkFailure(t *testing.T) {
	srv, calls := newStubAPI(t, func(_ string, payload map[string]any) (bool, int, string) {
		if text, _ := payload["text"].(string); strings.HasPrefix(text, "a") {
			return false, 420, "Flood control exceeded"
		}
		return true, 0, ""
	})
	c := newTestClient(srv)

	text := strings.Repeat("a", 3900) + "\n\n" + strings.Repeat("b", 3900)
	if err := c.SendMessage(context.Background(), 42, text, SendOptions{}); err != nil {
		t.Fatalf("SendMessage = %v, want nil when part of the message got through", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("call count = %d, want the second chunk attempted after the first failed", len(*calls))
	}
	if text, _ := (*calls)[1].Payload["text"].(string); !strings.HasPrefix(text, "b") {
		t.Fatalf("second attempt text = %.20q, want the remaining chunk", text)
	}
}

func TestSendMessageChunksLongText(t *testing.T) {
	srv, calls := newStubAPI(t, func(string, map[string]any) (bool, int, string) {
		return true, 0, ""
	})
	c := newTestClient(srv)

	text := strings.TrimSpace(strings.Repeat(strings.Repeat("từ ", 400)+"\n\n", 5))
	if err := c.SendMessage(context.Background(), 42, text, SendOptions{}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(*calls) < 2 {
		t.Fatalf("call count = %d, want chunked delivery", len(*calls))
	}
	for i, call := range *calls {
		if n := len([]rune(call.Payload["text"].(string))); n > ChunkLimit {
			t.Fatalf("chunk %d length %d exceeds limit", i, n)
		}
	}
}

func TestSendMessageKeyboardOnLastChunkOnly(t *testing.T) {
	srv, calls := newStubAPI(t, func(string, map[string]any) (bool, int, string) {
		return true, 0, ""
	})
	c := newTestClient(srv)

	text := strings.TrimSpace(strings.Repeat(strings.Repeat("từ ", 400)+"\n\n", 4))
	err := c.SendMessage(context.Background(), 42, text, SendOptions{ReplyMarkup: LocationKeyboard()})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(*calls) < 2 {
		t.Fatalf("call count = %d, want multiple chunks", len(*calls))
	}
	for i, call := range *calls {
		_, has := call.Payload["reply_markup"]
		wantMarkup := i == len(*calls)-1
		if has != wantMarkup {
			t.Fatalf("chunk %d reply_markup presence = %v, want %v", i, has, wantMarkup)
		}
	}
}

func TestIsParseError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"parse entities", &APIError{Code: 400, Description: "Bad Request: can't parse entities: x"}, true},
		{"other 400", &APIError{Code: 400, Description: "Bad Request: chat not found"}, false},
		{"forbidden", &APIError{Code: 403, Description: "can't parse entities"}, false},
		{"plain error", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsParseError(tc.err); got != tc.want {
				t.Fatalf("IsParseError = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSendVoiceMultipart(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("chat_id") != "42" {
			t.Errorf("chat_id = %q", r.FormValue("chat_id"))
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIBase: srv.URL, HTTPClient: srv.Client(), OutboundRate: 1000, OutboundBurst: 100})
	if err := c.SendVoice(context.Background(), 42, []byte("audio-bytes"), "reply.mp3"); err != nil {
		t.Fatalf("SendVoice: %v", err)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Fatalf("content type = %q", gotContentType)
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"abc","file_path":"voice/file_1.oga"}}`))
		case strings.Contains(r.URL.Path, "/file/"):
			_, _ = w.Write([]byte("opus-data"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIBase: srv.URL, HTTPClient: srv.Client(), OutboundRate: 1000, OutboundBurst: 100})
	data, err := c.DownloadFile(context.Background(), "abc")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if string(data) != "opus-data" {
		t.Fatalf("data = %q", data)
	}
}
