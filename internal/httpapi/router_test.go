package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"web3research/backend/internal/config"
	"web3research/backend/internal/db"
	"web3research/backend/internal/research"
	"web3research/backend/internal/runlog"
	"web3research/backend/internal/session"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.Config{
		AllowedOrigins:         []string{"http://localhost:5173"},
		DatabaseURL:            "file:" + filepath.Join(t.TempDir(), "research.db"),
		OpenRouterModel:        "test-model",
		MaxSessions:            10,
		SessionTimeout:         time.Hour,
		ToolTimeout:            time.Second,
		ResearchTimeoutSeconds: 5,
	}
	database, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewRouter(cfg, database)
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterGreetingAndSessionRoutes(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(`{"query":"hello there"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("research greeting failed: %d", rec.Code)
	}
	var resp research.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode research response: %v", err)
	}
	if resp.QueryIntent != research.IntentGreeting {
		t.Fatalf("expected greeting intent, got %s", resp.QueryIntent)
	}
	if resp.SessionID == "" {
		t.Fatal("expected a session id")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list sessions failed: %d", rec.Code)
	}
	var list struct {
		Sessions []session.Info `json:"sessions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode session list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].ID != resp.SessionID {
		t.Fatalf("expected session %s in list, got %+v", resp.SessionID, list.Sessions)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+resp.SessionID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get session failed: %d", rec.Code)
	}
	var sess session.Session
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 messages in greeting session, got %d", len(sess.Messages))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+resp.SessionID+"/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("session summary failed: %d", rec.Code)
	}
	var summary struct {
		SessionID string `json:"session_id"`
		Summary   string `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !strings.Contains(summary.Summary, "User asked") {
		t.Fatalf("unexpected summary: %q", summary.Summary)
	}
}

func TestRouterSessionNotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/does-not-exist", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "not_found" {
		t.Fatalf("expected not_found, got %q", body.Error.Code)
	}
}

func TestRouterSummaryRejectsBadMaxMessages(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/any/summary?max_messages=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRouterRecentRunsStartsEmpty(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/research/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Runs []runlog.Run `json:"runs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(body.Runs) != 0 {
		t.Fatalf("expected no archived runs, got %d", len(body.Runs))
	}
}
