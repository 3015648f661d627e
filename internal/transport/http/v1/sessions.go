package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cymbalair/assistant/internal/domain"
)

// CreateSession starts a new conversation.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	resp, err := h.service.CreateSession(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSessionMessages retrieves the conversation history for a session.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	sessionID := c.Param("session_id")

	messages, err := h.service.GetMessages(c.Request().Context(), sessionID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

// Chat sends a user prompt into a session.
// POST /v1/sessions/:session_id/chat
func (h *Handler) Chat(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "prompt is required"})
	}

	resp, err := h.service.Chat(c.Request().Context(), sessionID, req.Prompt)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ConfirmBooking executes the session's pending booking.
// POST /v1/sessions/:session_id/booking/confirm
func (h *Handler) ConfirmBooking(c echo.Context) error {
	sessionID := c.Param("session_id")

	resp, err := h.service.ConfirmBooking(c.Request().Context(), sessionID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeclineBooking discards the session's pending booking.
// POST /v1/sessions/:session_id/booking/decline
func (h *Handler) DeclineBooking(c echo.Context) error {
	sessionID := c.Param("session_id")

	resp, err := h.service.DeclineBooking(c.Request().Context(), sessionID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Reset clears a session's conversation back to the greeting.
// POST /v1/sessions/:session_id/reset
func (h *Handler) Reset(c echo.Context) error {
	sessionID := c.Param("session_id")

	if err := h.service.Reset(c.Request().Context(), sessionID); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// SignIn attaches a verified user identity to a session.
// POST /v1/sessions/:session_id/signin
func (h *Handler) SignIn(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req domain.SignInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_token is required"})
	}

	greeting, err := h.service.SignIn(c.Request().Context(), sessionID, req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"output": greeting.Content,
	})
}

// SignOut clears the session's identity and conversation.
// POST /v1/sessions/:session_id/signout
func (h *Handler) SignOut(c echo.Context) error {
	sessionID := c.Param("session_id")

	if err := h.service.SignOut(c.Request().Context(), sessionID); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
