package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"tripparty/internal/app"
	"tripparty/internal/usertoken"
	"tripparty/pkg/ai"
	"tripparty/pkg/domain"
	"tripparty/pkg/store"
)

type staticGenerator struct{ reply string }

func (g staticGenerator) Chat(_ context.Context, _ []ai.Message, _ ai.Params) (string, error) {
	return g.reply, nil
}

type testEnv struct {
	srv    *httptest.Server
	tokens *usertoken.Tokens
}

func newTestServer(t *testing.T, overrides func(*Config)) *testEnv {
	t.Helper()
	a, err := app.New(app.Config{
		Store:     store.NewMemoryStore(),
		Generator: staticGenerator{reply: "pack light"},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	tokens, err := usertoken.New(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	redis := miniredis.RunT(t)
	cfg := Config{
		App:       a,
		Tokens:    tokens,
		RedisAddr: redis.Addr(),
	}
	if overrides != nil {
		overrides(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	return resp, payload
}

func (e *testEnv) signUp(t *testing.T, username string) (string, string) {
	t.Helper()
	resp, payload := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"password": "password-123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup %s: status %d (%v)", username, resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	user, _ := payload["user"].(map[string]any)
	id, _ := user["id"].(string)
	if token == "" || id == "" {
		t.Fatalf("signup %s: missing token or user id: %v", username, payload)
	}
	return token, id
}

func TestSignUpSignInFlow(t *testing.T) {
	env := newTestServer(t, nil)
	token, _ := env.signUp(t, "alice")

	resp, me := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK || me["username"] != "alice" {
		t.Fatalf("me: status %d payload %v", resp.StatusCode, me)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad signin: expected 401, got %d", resp.StatusCode)
	}

	resp, payload := env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"username": "alice", "password": "password-123",
	})
	if resp.StatusCode != http.StatusOK || payload["token"] == "" {
		t.Fatalf("signin: status %d payload %v", resp.StatusCode, payload)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/users/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", resp.StatusCode)
	}
}

func TestPartyLifecycleOverHTTP(t *testing.T) {
	env := newTestServer(t, nil)
	ownerToken, _ := env.signUp(t, "alice")
	bobToken, _ := env.signUp(t, "bob")
	carolToken, _ := env.signUp(t, "carol")

	resp, party := env.do(t, http.MethodPost, "/api/parties", ownerToken, map[string]any{
		"location":        "Lisbon",
		"description":     "coastal week",
		"estimatedPrice":  800,
		"maxParticipants": 2,
		"isGlobal":        true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create party: status %d payload %v", resp.StatusCode, party)
	}
	partyID, _ := party["id"].(string)

	resp, joined := env.do(t, http.MethodPost, "/api/parties/"+partyID+"/join", bobToken, nil)
	if resp.StatusCode != http.StatusOK || joined["status"] != string(domain.StatusFull) {
		t.Fatalf("join: status %d payload %v", resp.StatusCode, joined)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/parties/"+partyID+"/join", carolToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("join full party: expected 409, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/parties/"+partyID+"/join", ownerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("owner leave: expected 403, got %d", resp.StatusCode)
	}

	resp, left := env.do(t, http.MethodDelete, "/api/parties/"+partyID+"/join", bobToken, nil)
	if resp.StatusCode != http.StatusOK || left["status"] != string(domain.StatusOpen) {
		t.Fatalf("leave: status %d payload %v", resp.StatusCode, left)
	}

	resp, _ = env.do(t, http.MethodPatch, "/api/parties/"+partyID, bobToken, map[string]any{
		"description": "hijack",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner patch: expected 403, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPatch, "/api/parties/"+partyID, ownerToken, map[string]any{
		"owner": "mallory",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("disallowed patch key: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/parties/"+partyID, ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/parties/"+partyID, ownerToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.StatusCode)
	}
}

func TestAdvisorOverHTTP(t *testing.T) {
	env := newTestServer(t, nil)
	token, _ := env.signUp(t, "alice")

	resp, ask := env.do(t, http.MethodPost, "/api/advisor", token, map[string]string{
		"message": "where to in spain?",
	})
	if resp.StatusCode != http.StatusOK || ask["reply"] != "pack light" {
		t.Fatalf("ask: status %d payload %v", resp.StatusCode, ask)
	}

	resp, history := env.do(t, http.MethodGet, "/api/advisor?limit=10", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	if total, _ := history["total"].(float64); total != 2 {
		t.Fatalf("expected total 2, got %v", history["total"])
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/advisor", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear: status %d", resp.StatusCode)
	}
	resp, history = env.do(t, http.MethodGet, "/api/advisor", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history after clear: status %d", resp.StatusCode)
	}
	if total, _ := history["total"].(float64); total != 0 {
		t.Fatalf("expected empty history, got %v", history)
	}
}

func TestAdvisorAskRateLimit(t *testing.T) {
	env := newTestServer(t, func(cfg *Config) {
		cfg.AskRateLimitPerMinute = 1
	})
	token, _ := env.signUp(t, "alice")

	resp, _ := env.do(t, http.MethodPost, "/api/advisor", token, map[string]string{"message": "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first ask: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/advisor", token, map[string]string{"message": "hi again"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second ask: expected 429, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After header, got %q", got)
	}
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestServer(t, func(cfg *Config) {
		cfg.AuthRateLimitPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
			"username": "ghost", "password": "nope-nope",
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, resp.StatusCode)
		}
	}
	resp, _ := env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"username": "ghost", "password": "nope-nope",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after quota, got %d", resp.StatusCode)
	}
}

func TestServerRequiresRedis(t *testing.T) {
	a, err := app.New(app.Config{
		Store:     store.NewMemoryStore(),
		Generator: staticGenerator{reply: "x"},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	tokens, err := usertoken.New(usertoken.Config{Secret: "s"})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	if _, err := New(Config{App: a, Tokens: tokens}); err == nil {
		t.Fatalf("expected limiter initialization to fail without redis addr")
	}
}

func TestDirectMessagesOverHTTP(t *testing.T) {
	env := newTestServer(t, nil)
	aliceToken, _ := env.signUp(t, "alice")
	_, bobID := env.signUp(t, "bob")

	resp, _ := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]string{
		"recipient": bobID, "content": "hey bob",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("dm: expected 201, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/messages", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get conversations: %v", err)
	}
	defer resp2.Body.Close()
	var conversations []map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&conversations); err != nil {
		t.Fatalf("decode conversations: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(conversations))
	}
	participant, _ := conversations[0]["participant"].(map[string]any)
	if participant["username"] != "bob" {
		t.Fatalf("unexpected participant: %v", participant)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestServer(t, nil)
	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers on responses")
	}
}
