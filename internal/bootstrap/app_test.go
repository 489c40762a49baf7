package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whitepaper-console/internal/session"
	"whitepaper-console/internal/shared/config"
)

func testConfig() config.Config {
	return config.Config{
		Port:                 "0",
		Env:                  "dev",
		CORSAllowOrigins:     []string{"http://localhost:3000"},
		IngestPollInterval:   2 * time.Millisecond,
		AnalysisPollInterval: 2 * time.Millisecond,
		IngestPollDeadline:   time.Minute,
		AnalysisPollDeadline: time.Minute,
		StillWorkingTicks:    1000,
		SessionTTL:           time.Minute,
		MaxUploadBytes:       10 << 20,
		SubmitPerMinute:      6000,
		ReadPerSecond:        1000,
	}
}

func TestBuildRequiresUpstreamOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"

	if _, err := Build(cfg); err == nil {
		t.Fatal("expected build to fail without UPSTREAM_BASE_URL in production")
	}
}

func snapshotFor(t *testing.T, router http.Handler, guest string) (int, session.Snapshot) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-Guest-Id", guest)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var snap session.Snapshot
	if resp.Code == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
	}
	return resp.Code, snap
}

func waitForSnapshot(t *testing.T, router http.Handler, guest, what string, cond func(session.Snapshot) bool) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var last session.Snapshot
	for time.Now().Before(deadline) {
		code, snap := snapshotFor(t, router, guest)
		if code == http.StatusOK {
			last = snap
			if cond(snap) {
				return snap
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last snapshot %+v", what, last)
	return session.Snapshot{}
}

func TestStubFlowEndToEnd(t *testing.T) {
	app, err := Build(testConfig())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(app.Shutdown)
	router := app.Router

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", health.Code)
	}
	if body := health.Body.String(); !strings.Contains(body, `"ok":true`) || !strings.Contains(body, `"upstream":"stub"`) {
		t.Fatalf("unexpected health payload %s", body)
	}

	submit := httptest.NewRequest(http.MethodPost, "/api/documents/url", strings.NewReader(`{"url":"https://example.com/papers/wp.pdf"}`))
	submit.Header.Set("Content-Type", "application/json")
	submit.Header.Set("X-Guest-Id", "e2e")
	submitResp := httptest.NewRecorder()
	router.ServeHTTP(submitResp, submit)
	if submitResp.Code != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d: %s", submitResp.Code, submitResp.Body.String())
	}

	waitForSnapshot(t, router, "e2e", "ingestion resolved", func(s session.Snapshot) bool {
		return s.Ingestion.Phase == session.PhaseResolved
	})

	start := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)
	start.Header.Set("X-Guest-Id", "e2e")
	startResp := httptest.NewRecorder()
	router.ServeHTTP(startResp, start)
	if startResp.Code != http.StatusAccepted {
		t.Fatalf("start analysis: expected 202, got %d: %s", startResp.Code, startResp.Body.String())
	}

	final := waitForSnapshot(t, router, "e2e", "report ready", func(s session.Snapshot) bool {
		return s.HasReport
	})
	if final.Analysis.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", final.Analysis.Progress)
	}

	md := httptest.NewRequest(http.MethodGet, "/api/analyses/report?format=md", nil)
	md.Header.Set("X-Guest-Id", "e2e")
	mdResp := httptest.NewRecorder()
	router.ServeHTTP(mdResp, md)
	if mdResp.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d: %s", mdResp.Code, mdResp.Body.String())
	}
	text := mdResp.Body.String()
	if !strings.Contains(text, "## Overall Score: 72/100 (medium)") {
		t.Fatalf("expected score heading in markdown, got %q", text)
	}
	if !strings.Contains(text, "wp.pdf") {
		t.Fatalf("expected file name in summary, got %q", text)
	}

	download := httptest.NewRequest(http.MethodGet, "/api/analyses/download", nil)
	download.Header.Set("X-Guest-Id", "e2e")
	downloadResp := httptest.NewRecorder()
	router.ServeHTTP(downloadResp, download)
	if downloadResp.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", downloadResp.Code)
	}
	if cd := downloadResp.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
	var payload map[string]any
	if err := json.NewDecoder(downloadResp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode download: %v", err)
	}
	if score, ok := payload["overall_score"].(float64); !ok || score != 72 {
		t.Fatalf("expected overall_score 72, got %v", payload["overall_score"])
	}
}

func TestStubFailureSurfacesUpstreamDetail(t *testing.T) {
	app, err := Build(testConfig())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(app.Shutdown)
	router := app.Router

	submit := httptest.NewRequest(http.MethodPost, "/api/documents/url", strings.NewReader(`{"url":"https://example.com/fail-layout.pdf"}`))
	submit.Header.Set("Content-Type", "application/json")
	submit.Header.Set("X-Guest-Id", "e2e-fail")
	submitResp := httptest.NewRecorder()
	router.ServeHTTP(submitResp, submit)
	if submitResp.Code != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d", submitResp.Code)
	}

	failed := waitForSnapshot(t, router, "e2e-fail", "ingestion failed", func(s session.Snapshot) bool {
		return s.Ingestion.Phase == session.PhaseFailed
	})
	if !strings.Contains(failed.Ingestion.Error, "Unsupported document layout") {
		t.Fatalf("expected upstream failure detail, got %q", failed.Ingestion.Error)
	}
	if failed.Ingestion.Progress == 0 {
		t.Fatalf("progress should freeze at its last value, got %d", failed.Ingestion.Progress)
	}

	analyze := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)
	analyze.Header.Set("X-Guest-Id", "e2e-fail")
	analyzeResp := httptest.NewRecorder()
	router.ServeHTTP(analyzeResp, analyze)
	if analyzeResp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for failed document, got %d", analyzeResp.Code)
	}
}
