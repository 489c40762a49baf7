package documents

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"whitepaper-console/internal/shared/server/middleware"
	"whitepaper-console/internal/shared/server/respond"
	"whitepaper-console/internal/shared/util"
	"whitepaper-console/internal/upstream"
)

// multipart framing adds a few hundred bytes on top of the file itself;
// the slack lets the service report oversize files with a proper message
// instead of a generic form parse error.
const uploadBodySlack = 16 << 10

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.POST("/documents/url", h.fromURL)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id/status", h.status)
	rg.DELETE("/documents/:id", h.remove)
}

func (h *Handler) upload(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	token := middleware.CallerTokenFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.maxBytes()+uploadBodySlack)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "unable to read file", nil)
		return
	}

	snap, err := h.Svc.SubmitFile(c.Request.Context(), owner, token, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		submissionError(c, err)
		return
	}

	respond.JSON(c, http.StatusAccepted, snap)
}

type fromURLRequest struct {
	URL string `json:"url"`
}

func (h *Handler) fromURL(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	token := middleware.CallerTokenFromContext(c)

	var req fromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_input", "invalid request body", nil)
		return
	}

	snap, err := h.Svc.SubmitURL(c.Request.Context(), owner, token, req.URL)
	if err != nil {
		submissionError(c, err)
		return
	}

	respond.JSON(c, http.StatusAccepted, snap)
}

func (h *Handler) list(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
			return
		}
	}

	token := middleware.CallerTokenFromContext(c)

	docs, err := h.Svc.List(c.Request.Context(), token)
	if err != nil {
		lookupError(c, err, "failed to list documents")
		return
	}

	respond.OK(c, toListItems(docs))
}

func (h *Handler) status(c *gin.Context) {
	token := middleware.CallerTokenFromContext(c)

	st, err := h.Svc.Status(c.Request.Context(), token, c.Param("id"))
	if err != nil {
		lookupError(c, err, "failed to fetch document status")
		return
	}

	respond.OK(c, toStatusResponse(st))
}

func (h *Handler) remove(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	token := middleware.CallerTokenFromContext(c)

	if err := h.Svc.Delete(c.Request.Context(), owner, token, c.Param("id")); err != nil {
		lookupError(c, err, "failed to delete document")
		return
	}

	respond.NoContent(c)
}

// submissionError maps failures from the two submit paths. Input problems
// caught before any network call come back as 400; pipeline rejections keep
// their status code and detail so the caller sees what the backend said.
func submissionError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidInput) {
		respond.Error(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	if upErr, ok := upstream.AsError(err); ok && upErr.StatusCode >= 400 && upErr.StatusCode < 500 {
		respond.Error(c, upErr.StatusCode, "submission_failed", util.SanitizeDetail(upErr.Detail), nil)
		return
	}
	respond.Error(c, http.StatusBadGateway, "submission_failed", "document pipeline unavailable", nil)
}

// lookupError maps failures from the passthrough reads and delete.
func lookupError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, ErrInvalidInput) {
		respond.Error(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	if upErr, ok := upstream.AsError(err); ok && upErr.StatusCode == http.StatusNotFound {
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		return
	}
	respond.Error(c, http.StatusBadGateway, "internal_error", fallback, nil)
}
