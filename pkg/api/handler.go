package api

import (
	"time"

	"github.com/labstack/echo"
	"github.com/nsyszr/pushbridge/pkg/bridge"
	"github.com/nsyszr/pushbridge/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Handler contains all properties to serve the API
type Handler struct {
	store      storage.Interface
	supervisor *bridge.Supervisor
	notifier   *bridge.Notifier
	now        func() time.Time
}

// NewHandler create a new API handler
func NewHandler(store storage.Interface, supervisor *bridge.Supervisor, notifier *bridge.Notifier) *Handler {
	return &Handler{
		store:      store,
		supervisor: supervisor,
		notifier:   notifier,
		now:        time.Now,
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register API routes")
	api := e.Group("/api/v1")
	api.GET("/bridges", h.handleFetchBridges)
	api.POST("/bridges", h.handleCreateBridge)
	api.GET("/bridges/:id", h.handleGetBridgeByID)
	api.PUT("/bridges/:id", h.handleUpdateBridge)
	api.DELETE("/bridges/:id", h.handleDeleteBridge)

	api.POST("/bridges/:id/start", h.handleStartBridge)
	api.POST("/bridges/:id/stop", h.handleStopBridge)
	api.GET("/bridges/:id/status", h.handleGetBridgeStatus)
	api.GET("/bridges/:id/sessions", h.handleFetchSessions)
	api.GET("/bridges/:id/messages", h.handleFetchMessages)

	api.POST("/users/:id/send", h.handleSendToUser)
	api.GET("/users/:id/reachable", h.handleUserReachable)

	api.Any("/status-events", h.statusEventsHandler(time.Second))
}

type errorResponse struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, code int, err error) error {
	return c.JSON(code, &errorResponse{Error: err.Error()})
}
