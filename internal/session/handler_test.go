package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"whitepaper-console/internal/shared/server/middleware"
)

func setupSessionRouter(t *testing.T, factory *tickerFactory, pipe *fakePipeline) (*gin.Engine, *Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if pipe == nil {
		pipe = &fakePipeline{}
	}
	m := NewManager(pipe, testConfig(factory), time.Minute)
	t.Cleanup(m.Shutdown)

	router := gin.New()
	router.Use(middleware.Auth())
	api := router.Group("/api")
	NewHandler(m).RegisterRoutes(api)
	return router, m
}

func TestGetSessionReturnsEmptyWorkspace(t *testing.T) {
	router, _ := setupSessionRouter(t, &tickerFactory{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Document != nil || snap.Ingestion.Phase != PhaseIdle || snap.Analysis.Phase != PhaseIdle || snap.HasReport {
		t.Fatalf("expected empty workspace, got %+v", snap)
	}
}

func TestClearSessionWithoutOneIsNotFound(t *testing.T) {
	router, _ := setupSessionRouter(t, &tickerFactory{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "no_session" {
		t.Fatalf("expected no_session, got %q", body.Error.Code)
	}
}

func TestClearSessionResetsWorkspace(t *testing.T) {
	factory := &tickerFactory{}
	router, m := setupSessionRouter(t, factory, &fakePipeline{})

	ws := m.Workspace("guest:g1", "")
	ws.BeginIngest("", DocumentRef{ID: "doc-1", FileName: "wp.pdf"}, "pending")

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", resp.Code, resp.Body.String())
	}
	if snap := ws.Snapshot(); snap.Document != nil || snap.Ingestion.Phase != PhaseIdle {
		t.Fatalf("expected reset workspace, got %+v", snap)
	}
}

func TestSessionRequiresIdentity(t *testing.T) {
	router, _ := setupSessionRouter(t, &tickerFactory{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}
}
