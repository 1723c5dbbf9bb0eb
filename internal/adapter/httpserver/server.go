package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	ws "github.com/gorilla/websocket"
	"github.com/hideo54/image-adjuster/internal/adapter/metrics"
	"github.com/hideo54/image-adjuster/internal/adapter/websocket"
	"github.com/hideo54/image-adjuster/internal/app"
	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/hideo54/image-adjuster/internal/platform/config"
	"github.com/hideo54/image-adjuster/web"
	"github.com/labstack/echo/v4"
)

type sessionService interface {
	Create(ctx context.Context) *app.Session
	Snapshot(id uuid.UUID) (domain.Snapshot, error)
	Apply(ctx context.Context, id uuid.UUID, cmd domain.Command) (domain.CommandResult, error)
	Remove(id uuid.UUID) bool
	MarkViewed(id uuid.UUID) error
}

type snapshotHub interface {
	Register(sessionID uuid.UUID, conn *ws.Conn) error
	Unregister(sessionID uuid.UUID, conn *ws.Conn)
	Send(sessionID uuid.UUID, conn *ws.Conn, data []byte) error
	Disconnect(sessionID uuid.UUID, reason string)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	sessions sessionService
	hub      snapshotHub
	upgrader ws.Upgrader

	templates      *template.Template
	sessionStore   *sessions.CookieStore
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck
}

// NewServer wires the routes. httpMetrics and metricsHandler may be nil.
func NewServer(cfg *config.Config, sessionSvc sessionService, hub snapshotHub, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler, healthChecks []HealthCheck) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		sessions:       sessionSvc,
		hub:            hub,
		upgrader:       newUpgrader(cfg),
		templates:      templates,
		sessionStore:   setupSessionStore(cfg),
		httpMetrics:    httpMetrics,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Cookie session keys. The cookie only remembers which adjustment session
// this browser last used.
const (
	cookieName         = "image-adjuster"
	cookieKeySessionID = "session_id"
)

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(http.StatusOK, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func newUpgrader(cfg *config.Config) ws.Upgrader {
	return ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     websocket.NewCheckOrigin(!cfg.IsProduction()),
	}
}
