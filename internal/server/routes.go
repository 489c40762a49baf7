package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whitepaper-console/internal/analyses"
	"whitepaper-console/internal/documents"
	"whitepaper-console/internal/services/health"
	"whitepaper-console/internal/session"
	"whitepaper-console/internal/shared/config"
	"whitepaper-console/internal/shared/metrics"
	"whitepaper-console/internal/shared/server/middleware"
	"whitepaper-console/internal/shared/server/respond"
)

const (
	groupSubmit = "SUBMIT"
	groupRead   = "READ"

	submitBurst = 3
	minReadBurst = 5
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Config    config.Config
	Health    *health.Service
	Documents *documents.Handler
	Analyses  *analyses.Handler
	Session   *session.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigins),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status())
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.Use(
		middleware.Auth(),
		middleware.RateLimit(rateLimitConfig(deps.Config)),
	)
	registerMeRoutes(api)
	deps.Documents.RegisterRoutes(api)
	deps.Analyses.RegisterRoutes(api)
	deps.Session.RegisterRoutes(api)

	return r
}

// rateLimitConfig splits traffic into a strict bucket for mutations, which
// fan out to the pipeline, and a looser one for status reads and streams.
func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	readBurst := int(cfg.ReadPerSecond) * 2
	if readBurst < minReadBurst {
		readBurst = minReadBurst
	}
	return middleware.RateLimitConfig{
		DefaultGroup: groupRead,
		GroupFor: func(c *gin.Context) string {
			switch c.Request.Method {
			case http.MethodPost, http.MethodDelete:
				return groupSubmit
			default:
				return groupRead
			}
		},
		Rules: map[string]middleware.RateLimitRule{
			groupSubmit: {Rate: cfg.SubmitPerMinute / 60, Burst: submitBurst},
			groupRead:   {Rate: cfg.ReadPerSecond, Burst: readBurst},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
