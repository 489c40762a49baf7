package bootstrap

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"whitepaper-console/internal/analyses"
	"whitepaper-console/internal/documents"
	"whitepaper-console/internal/server"
	"whitepaper-console/internal/services/health"
	"whitepaper-console/internal/session"
	"whitepaper-console/internal/shared/config"
	"whitepaper-console/internal/shared/telemetry"
	"whitepaper-console/internal/upstream"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	Pipeline upstream.Pipeline
	Sessions *session.Manager

	DocumentsService *documents.Service
	AnalysesService  *analyses.Service
	DocumentsHandler *documents.Handler
	AnalysesHandler  *analyses.Handler
	SessionHandler   *session.Handler
	Health           *health.Service
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	pipe, mode, err := buildPipeline(cfg)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(pipe, session.Config{
		IngestInterval:    cfg.IngestPollInterval,
		AnalysisInterval:  cfg.AnalysisPollInterval,
		IngestDeadline:    cfg.IngestPollDeadline,
		AnalysisDeadline:  cfg.AnalysisPollDeadline,
		StillWorkingTicks: cfg.StillWorkingTicks,
	}, cfg.SessionTTL)

	docSvc := &documents.Service{
		Pipeline:       pipe,
		Sessions:       sessions,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	analysisSvc := analyses.NewService(sessions)

	app := &App{
		Config:           cfg,
		Pipeline:         pipe,
		Sessions:         sessions,
		DocumentsService: docSvc,
		AnalysesService:  analysisSvc,
		DocumentsHandler: documents.NewHandler(docSvc),
		AnalysesHandler:  analyses.NewHandler(analysisSvc),
		SessionHandler:   session.NewHandler(sessions),
		Health:           health.NewService(cfg.Env, mode),
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:    cfg,
		Health:    app.Health,
		Documents: app.DocumentsHandler,
		Analyses:  app.AnalysesHandler,
		Session:   app.SessionHandler,
	})

	return app, nil
}

// Shutdown stops the session janitor and tears down every workspace,
// cancelling any poll loops still running.
func (a *App) Shutdown() {
	if a.Sessions != nil {
		a.Sessions.Shutdown()
	}
}

// buildPipeline selects the live client or, in dev without an upstream
// configured, the in-memory stub.
func buildPipeline(cfg config.Config) (upstream.Pipeline, string, error) {
	if cfg.UpstreamBaseURL == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.upstream_stub", map[string]any{
				"reason": "UPSTREAM_BASE_URL empty",
			})
			return upstream.NewStub(), "stub", nil
		}
		return nil, "", fmt.Errorf("UPSTREAM_BASE_URL is required when ENV=%s", cfg.Env)
	}

	opts := upstream.Options{
		RPS:     cfg.UpstreamRPS,
		Burst:   cfg.UpstreamBurst,
		Timeout: cfg.UpstreamTimeout,
	}
	if cfg.UpstreamToken != "" {
		opts.Tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.UpstreamToken})
	}
	client, err := upstream.NewClient(cfg.UpstreamBaseURL, opts)
	if err != nil {
		return nil, "", err
	}
	return client, "live", nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
