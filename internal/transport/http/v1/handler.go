// Package v1 provides the versioned HTTP handlers for the assistant.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cymbalair/assistant/internal/domain"
	"github.com/cymbalair/assistant/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Session lifecycle
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)
	e.POST("/v1/sessions/:session_id/reset", h.Reset)

	// Conversation
	e.POST("/v1/sessions/:session_id/chat", h.Chat)
	e.POST("/v1/sessions/:session_id/booking/confirm", h.ConfirmBooking)
	e.POST("/v1/sessions/:session_id/booking/decline", h.DeclineBooking)

	// Identity
	e.POST("/v1/sessions/:session_id/signin", h.SignIn)
	e.POST("/v1/sessions/:session_id/signout", h.SignOut)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorJSON maps domain errors to HTTP status codes.
func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoPendingAction):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrModelUnavailable):
		status = http.StatusBadGateway
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
