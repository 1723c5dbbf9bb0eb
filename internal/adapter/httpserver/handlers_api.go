package httpserver

import (
	"fmt"
	"net/http"

	"github.com/hideo54/image-adjuster/internal/domain"
	apperrors "github.com/hideo54/image-adjuster/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// The JSON API drives a session without a websocket, e.g. from scripts.
// Every change it makes is still pushed to connected views.
func (s *Server) registerAPIRoutes() {
	limiter := newRateLimiter(s.config.APIRateLimit, s.config.APIRateBurst)

	s.echo.GET("/api/session/:uuid", s.handleGetSession)
	s.echo.POST("/api/session/:uuid/commands", s.handleApplyCommand, limiter)
	s.echo.DELETE("/api/session/:uuid", s.handleDeleteSession)
}

func (s *Server) handleGetSession(c echo.Context) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	snapshot, err := s.sessions.Snapshot(id)
	if err != nil {
		return apperrors.FromCommandError(err).WithField("session_id", id.String())
	}

	if err := c.JSON(http.StatusOK, snapshot); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleApplyCommand(c echo.Context) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	var cmd domain.Command
	if err := c.Bind(&cmd); err != nil {
		return apperrors.ValidationError("malformed command body").WithField("session_id", id.String())
	}
	if cmd.Type == "" {
		return apperrors.ValidationError("command type is required").WithField("session_id", id.String())
	}

	result, err := s.sessions.Apply(c.Request().Context(), id, cmd)
	if err != nil {
		return apperrors.FromCommandError(err).
			WithField("session_id", id.String()).
			WithField("command", string(cmd.Type))
	}

	if err := c.JSON(http.StatusOK, result); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	if !s.sessions.Remove(id) {
		return apperrors.FromCommandError(domain.ErrSessionNotFound).WithField("session_id", id.String())
	}
	s.hub.Disconnect(id, "session closed")

	return c.NoContent(http.StatusNoContent)
}
