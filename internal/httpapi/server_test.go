package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/justduck/relaybot/internal/config"
	"github.com/justduck/relaybot/internal/notify"
	"github.com/justduck/relaybot/internal/telegram"
	"github.com/justduck/relaybot/internal/users"
)

type fakeHandler struct {
	mu      sync.Mutex
	updates []*telegram.Update
	err     error
}

func (f *fakeHandler) HandleUpdate(_ context.Context, upd *telegram.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	return f.err
}

type fakeDaily struct {
	success, failed int
	ranFor          []int64
	runForErr       error
}

func (f *fakeDaily) Run(context.Context) (int, int) { return f.success, f.failed }

func (f *fakeDaily) RunFor(_ context.Context, id int64) error {
	f.ranFor = append(f.ranFor, id)
	return f.runForErr
}

func newTestServer(t *testing.T, secret string, handler *fakeHandler, registry users.Registry) *httptest.Server {
	srv, _ := newTestServerWithDaily(t, secret, handler, registry, nil)
	return srv
}

func newTestServerWithDaily(t *testing.T, secret string, handler *fakeHandler, registry users.Registry, daily *fakeDaily) (*httptest.Server, *fakeDaily) {
	t.Helper()
	if handler == nil {
		handler = &fakeHandler{}
	}
	if registry == nil {
		registry = users.NewInMemoryRegistry()
	}
	if daily == nil {
		daily = &fakeDaily{success: 2, failed: 1}
	}
	s := New(config.Config{TelegramSecret: secret}, handler, registry, daily, nil, log.New(io.Discard, "", 0))
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv, daily
}

func postWebhook(t *testing.T, srv *httptest.Server, secret, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook/telegram", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(telegram.SecretTokenHeader, secret)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	handler := &fakeHandler{}
	srv := newTestServer(t, "s3cret", handler, nil)

	resp := postWebhook(t, srv, "wrong", `{"update_id":1}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if len(handler.updates) != 0 {
		t.Fatal("update reached the handler despite bad secret")
	}
}

func TestWebhookAcceptsValidSecret(t *testing.T) {
	handler := &fakeHandler{}
	srv := newTestServer(t, "s3cret", handler, nil)

	resp := postWebhook(t, srv, "s3cret", `{"update_id":7,"message":{"message_id":1,"chat":{"id":5},"text":"hi","from":{"id":5}}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body["ok"] {
		t.Fatalf("body = %v, want ok:true", body)
	}
	if len(handler.updates) != 1 || handler.updates[0].UpdateID != 7 {
		t.Fatalf("handler updates = %+v", handler.updates)
	}
}

func TestWebhookAcksEvenWhenHandlerFails(t *testing.T) {
	handler := &fakeHandler{err: fmt.Errorf("downstream exploded")}
	srv := newTestServer(t, "", handler, nil)

	resp := postWebhook(t, srv, "", `{"update_id":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 so Telegram does not redeliver", resp.StatusCode)
	}
}

func TestWebhookAcksMalformedPayload(t *testing.T) {
	handler := &fakeHandler{}
	srv := newTestServer(t, "", handler, nil)

	resp := postWebhook(t, srv, "", `{not json`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(handler.updates) != 0 {
		t.Fatal("malformed payload reached the handler")
	}
}

func TestDailyCronSweepOnGet(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)

	resp, err := srv.Client().Get(srv.URL + "/cron/daily-weather")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != 2 || body["failed"] != 1 {
		t.Fatalf("body = %v", body)
	}
}

func TestDailyCronPostNotifiesSingleUser(t *testing.T) {
	srv, daily := newTestServerWithDaily(t, "", nil, nil, &fakeDaily{})

	resp, err := srv.Client().Post(srv.URL+"/cron/daily-weather", "application/json",
		strings.NewReader(`{"telegram_id":42}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(daily.ranFor) != 1 || daily.ranFor[0] != 42 {
		t.Fatalf("ranFor = %v, want just user 42", daily.ranFor)
	}
}

func TestDailyCronPostRequiresTelegramID(t *testing.T) {
	srv, daily := newTestServerWithDaily(t, "", nil, nil, &fakeDaily{})

	for _, body := range []string{"", "{}"} {
		resp, err := srv.Client().Post(srv.URL+"/cron/daily-weather", "application/json",
			strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q status = %d, want 400", body, resp.StatusCode)
		}
	}
	if len(daily.ranFor) != 0 {
		t.Fatalf("ranFor = %v, want nothing notified", daily.ranFor)
	}
}

func TestDailyCronPostUnknownUser(t *testing.T) {
	srv, _ := newTestServerWithDaily(t, "", nil, nil, &fakeDaily{runForErr: users.ErrNotFound})

	resp, err := srv.Client().Post(srv.URL+"/cron/daily-weather", "application/json",
		strings.NewReader(`{"telegram_id":7}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDailyCronPostUserWithoutLocation(t *testing.T) {
	srv, _ := newTestServerWithDaily(t, "", nil, nil, &fakeDaily{runForErr: notify.ErrNoLocation})

	resp, err := srv.Client().Post(srv.URL+"/cron/daily-weather", "application/json",
		strings.NewReader(`{"telegram_id":7}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUsersREST(t *testing.T) {
	reg := users.NewInMemoryRegistry()
	ctx := context.Background()
	admin, _ := reg.GetOrCreate(ctx, 1, users.Seed{Username: "root"})
	if _, err := reg.GetOrCreate(ctx, 2, users.Seed{Username: "member"}); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, "", nil, reg)

	resp, err := srv.Client().Get(srv.URL + "/v1/users")
	if err != nil {
		t.Fatal(err)
	}
	var listBody struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listBody); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if listBody.Count != 2 {
		t.Fatalf("count = %d, want 2", listBody.Count)
	}

	// Demoting the only admin is refused.
	req, _ := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/v1/users/%d", srv.URL, admin.TelegramID),
		strings.NewReader(`{"role":"member"}`))
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("demote last admin status = %d, want 409", resp.StatusCode)
	}

	// Deleting a member works.
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/v1/users/2", nil)
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete member status = %d", resp.StatusCode)
	}

	resp, err = srv.Client().Get(srv.URL + "/v1/users/2")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted user status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, "", nil, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}
