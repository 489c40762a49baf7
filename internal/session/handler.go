package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whitepaper-console/internal/shared/server/middleware"
	"whitepaper-console/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the session manager.
type Handler struct {
	Sessions *Manager
}

// NewHandler constructs a Handler.
func NewHandler(sessions *Manager) *Handler {
	return &Handler{Sessions: sessions}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/session", h.get)
	rg.DELETE("/session", h.clear)
	rg.GET("/session/watch", h.watch)
}

func (h *Handler) get(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	token := middleware.CallerTokenFromContext(c)
	ws := h.Sessions.Workspace(owner, token)
	respond.OK(c, ws.Snapshot())
}

func (h *Handler) clear(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	ws, ok := h.Sessions.Peek(owner)
	if !ok {
		respond.Error(c, http.StatusNotFound, "no_session", "no active session", nil)
		return
	}
	ws.Reset()
	respond.NoContent(c)
}
