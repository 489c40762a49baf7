package analyses

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"whitepaper-console/report"
	"whitepaper-console/internal/session"
	"whitepaper-console/internal/shared/server/middleware"
	"whitepaper-console/internal/shared/server/respond"
	"whitepaper-console/internal/shared/util"
	"whitepaper-console/internal/upstream"
)

const (
	formatHTML     = "html"
	formatMarkdown = "md"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc      *Service
	Renderer *report.Renderer
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, Renderer: report.NewRenderer()}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.start)
	rg.GET("/analyses/report", h.rendered)
	rg.GET("/analyses/download", h.download)
}

func (h *Handler) start(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	token := middleware.CallerTokenFromContext(c)

	snap, err := h.Svc.Start(c.Request.Context(), owner, token)
	if err != nil {
		startError(c, err)
		return
	}

	// The pipeline occasionally answers generate with the finished report;
	// that shows up here as an already-resolved workflow.
	status := http.StatusAccepted
	if snap.Analysis.Phase == session.PhaseResolved {
		status = http.StatusOK
	}
	respond.JSON(c, status, snap)
}

func (h *Handler) rendered(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)

	_, raw, err := h.Svc.Completed(owner)
	if err != nil {
		reportError(c, err)
		return
	}

	v := report.Decode(raw)
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", formatHTML)))
	switch format {
	case formatHTML:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.Renderer.HTML(v)))
	case formatMarkdown:
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(v)))
	default:
		respond.Error(c, http.StatusBadRequest, "invalid_input", "format must be html or md", nil)
	}
}

func (h *Handler) download(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)

	doc, raw, err := h.Svc.Completed(owner)
	if err != nil {
		reportError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+attachmentName(doc)+`"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func attachmentName(doc session.DocumentRef) string {
	if doc.ID == "" {
		return "analysis.json"
	}
	return "analysis-" + doc.ID + ".json"
}

// startError maps failures from the start path. Local workspace guards come
// first; past those the error is whatever the pipeline said to the generate
// request.
func startError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrClosed):
		respond.Error(c, http.StatusNotFound, "no_session", "upload a document first", nil)
	case errors.Is(err, session.ErrNotReady):
		respond.Error(c, http.StatusConflict, "not_ready", "document processing has not completed", nil)
	default:
		if upErr, ok := upstream.AsError(err); ok && upErr.StatusCode >= 400 && upErr.StatusCode < 500 {
			respond.Error(c, upErr.StatusCode, "submission_failed", util.SanitizeDetail(upErr.Detail), nil)
			return
		}
		respond.Error(c, http.StatusBadGateway, "submission_failed", "analysis pipeline unavailable", nil)
	}
}

// reportError maps failures from the two report reads.
func reportError(c *gin.Context, err error) {
	var failed *FailedError
	switch {
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrClosed):
		respond.Error(c, http.StatusNotFound, "no_session", "no analysis in this session", nil)
	case errors.As(err, &failed):
		respond.Error(c, http.StatusConflict, "job_failed", util.SanitizeDetail(failed.Error()), nil)
	case errors.Is(err, session.ErrNoReport):
		respond.Error(c, http.StatusConflict, "not_ready", "no completed analysis is available", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load report", nil)
	}
}
