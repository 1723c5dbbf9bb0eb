package httpserver

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/hideo54/image-adjuster/internal/app"
	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/hideo54/image-adjuster/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

// --- Mock implementations ---

type mockSessionService struct {
	createFn   func(ctx context.Context) *app.Session
	snapshotFn func(id uuid.UUID) (domain.Snapshot, error)
	applyFn    func(ctx context.Context, id uuid.UUID, cmd domain.Command) (domain.CommandResult, error)
	removeFn   func(id uuid.UUID) bool

	mu     sync.Mutex
	viewed []uuid.UUID
}

func (m *mockSessionService) Create(ctx context.Context) *app.Session {
	if m.createFn != nil {
		return m.createFn(ctx)
	}
	return app.NewSession(uuid.New(), app.SessionOptions{MaxIndex: domain.DefaultMaxIndex}, clockwork.NewFakeClock(), nil, nil)
}

func (m *mockSessionService) Snapshot(id uuid.UUID) (domain.Snapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(id)
	}
	return domain.Snapshot{}, domain.ErrSessionNotFound
}

func (m *mockSessionService) Apply(ctx context.Context, id uuid.UUID, cmd domain.Command) (domain.CommandResult, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, id, cmd)
	}
	return domain.CommandResult{}, domain.ErrSessionNotFound
}

func (m *mockSessionService) Remove(id uuid.UUID) bool {
	if m.removeFn != nil {
		return m.removeFn(id)
	}
	return false
}

func (m *mockSessionService) MarkViewed(id uuid.UUID) error {
	if _, err := m.Snapshot(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewed = append(m.viewed, id)
	return nil
}

type mockHub struct {
	mu           sync.Mutex
	disconnected []uuid.UUID
}

func (m *mockHub) Register(uuid.UUID, *ws.Conn) error     { return nil }
func (m *mockHub) Unregister(uuid.UUID, *ws.Conn)         {}
func (m *mockHub) Send(uuid.UUID, *ws.Conn, []byte) error { return nil }

func (m *mockHub) Disconnect(sessionID uuid.UUID, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = append(m.disconnected, sessionID)
}

// --- Test helpers ---

const testSessionSecret = "test-secret-key-32-bytes-long!!!"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:               config.EnvDevelopment,
		Port:                 "0",
		ImageDir:             t.TempDir(),
		ImageExt:             ".jpg",
		MaxIndex:             domain.DefaultMaxIndex,
		BlinkInterval:        time.Second,
		UnviewedSessionTTL:   time.Minute,
		SessionSecret:        testSessionSecret,
		SessionMaxAge:        time.Hour,
		MaxClientsPerSession: 8,
		APIRateLimit:         100,
		APIRateBurst:         100,
	}
}

func newTestServer(t *testing.T, sessionSvc sessionService, opts ...func(*Server)) *Server {
	t.Helper()

	tmpl := template.Must(template.New("session.html").Parse(`Session {{.SessionID}} frame {{.Snapshot.State.FrameIndex}} ws {{.WSPath}}`))

	cfg := testConfig(t)
	srv := &Server{
		echo:         echo.New(),
		config:       cfg,
		sessions:     sessionSvc,
		hub:          &mockHub{},
		upgrader:     newUpgrader(cfg),
		templates:    tmpl,
		sessionStore: setupSessionStore(cfg),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withHub(hub snapshotHub) func(*Server) {
	return func(s *Server) {
		s.hub = hub
	}
}

// serve runs a request through the full middleware and routing stack.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func snapshotFor(id uuid.UUID) domain.Snapshot {
	return domain.Snapshot{SessionID: id, Version: 1, State: domain.NewSessionState(), CanGoNext: true}
}

func (m *mockHub) disconnectedSessions() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.disconnected...)
}
