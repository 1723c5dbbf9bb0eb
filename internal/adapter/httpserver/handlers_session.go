package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/hideo54/image-adjuster/internal/adapter/websocket"
	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/hideo54/image-adjuster/internal/platform/correlation"
	apperrors "github.com/hideo54/image-adjuster/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const maxCommandMessageSize = 4096

func (s *Server) registerSessionRoutes() {
	s.echo.GET("/session/:uuid", s.handleSessionPage)
	s.echo.GET("/ws/session/:uuid", s.handleSessionSocket)
}

// handleIndex resumes the session remembered by the cookie, or opens a new one.
func (s *Server) handleIndex(c echo.Context) error {
	ctx := c.Request().Context()

	if id, ok := s.rememberedSession(c); ok {
		if _, err := s.sessions.Snapshot(id); err == nil {
			return redirectToSession(c, id)
		}
	}

	session := s.sessions.Create(ctx)
	if err := s.rememberSession(c, session.ID()); err != nil {
		return apperrors.InternalError("failed to save cookie", err)
	}
	return redirectToSession(c, session.ID())
}

type sessionPageData struct {
	SessionID   string
	Snapshot    domain.Snapshot
	OpacityStep float64
	WSPath      string
	APIPath     string
}

func (s *Server) handleSessionPage(c echo.Context) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	snapshot, err := s.sessions.Snapshot(id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// A closed tool cannot be reopened; start over with a fresh session.
		return c.Redirect(http.StatusSeeOther, "/")
	}
	if err != nil {
		return apperrors.InternalError("failed to load session", err).WithField("session_id", id.String())
	}

	if err := s.rememberSession(c, id); err != nil {
		slog.WarnContext(c.Request().Context(), "Failed to save cookie", "error", err)
	}

	return s.renderTemplate(c, "session.html", sessionPageData{
		SessionID:   id.String(),
		Snapshot:    snapshot,
		OpacityStep: domain.OpacityStep,
		WSPath:      "/ws/session/" + id.String(),
		APIPath:     "/api/session/" + id.String(),
	})
}

// handleSessionSocket upgrades to a websocket, sends the current snapshot, then
// applies every inbound command. Command errors are answered in-band.
func (s *Server) handleSessionSocket(c echo.Context) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	snapshot, err := s.sessions.Snapshot(id)
	if err != nil {
		return apperrors.FromCommandError(err).WithField("session_id", id.String())
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.WarnContext(c.Request().Context(), "WebSocket upgrade failed", "session_id", id.String(), "error", err)
		return nil
	}

	if err := s.hub.Register(id, conn); err != nil {
		slog.WarnContext(c.Request().Context(), "WebSocket registration failed", "session_id", id.String(), "error", err)
		_ = conn.Close()
		return nil
	}
	defer s.hub.Unregister(id, conn)

	// The session was reaped between the lookup and the upgrade.
	if err := s.sessions.MarkViewed(id); err != nil {
		slog.InfoContext(c.Request().Context(), "Session gone before view attached", "session_id", id.String(), "error", err)
		return nil
	}

	initial, err := websocket.EncodeSnapshot(snapshot)
	if err == nil {
		err = s.hub.Send(id, conn, initial)
	}
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Failed to send initial snapshot", "session_id", id.String(), "error", err)
		return nil
	}

	ctx := correlation.WithSession(c.Request().Context(), id.String())
	s.readCommands(ctx, id, conn)
	return nil
}

func (s *Server) readCommands(ctx context.Context, id uuid.UUID, conn *ws.Conn) {
	conn.SetReadLimit(maxCommandMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read ended", "error", err)
			}
			return
		}

		cmd, err := websocket.DecodeCommand(data)
		if err == nil {
			_, err = s.sessions.Apply(ctx, id, cmd)
		}
		if err == nil {
			continue
		}

		appErr := apperrors.FromCommandError(err)
		slog.InfoContext(ctx, "Command rejected", "error_type", appErr.Type, "error", appErr.Message)
		if err := s.hub.Send(id, conn, websocket.EncodeError(appErr)); err != nil {
			return
		}
	}
}

func parseSessionID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("uuid")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithField("uuid", raw)
	}
	return id, nil
}

func redirectToSession(c echo.Context, id uuid.UUID) error {
	if err := c.Redirect(http.StatusSeeOther, "/session/"+id.String()); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) rememberedSession(c echo.Context) (uuid.UUID, bool) {
	// A cookie signed with an old secret decodes with an error and an empty session.
	cookie, _ := s.sessionStore.Get(c.Request(), cookieName)
	raw, ok := cookie.Values[cookieKeySessionID].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) rememberSession(c echo.Context, id uuid.UUID) error {
	cookie, _ := s.sessionStore.Get(c.Request(), cookieName)
	cookie.Values[cookieKeySessionID] = id.String()
	if err := cookie.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("save cookie: %w", err)
	}
	return nil
}
