package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout   = 5 * time.Second
	stopTimeout      = 10 * time.Second
	commandQueueSize = 256
)

var (
	ErrHubStopped   = errors.New("websocket hub stopped")
	ErrSessionFull  = errors.New("max clients per session reached")
	ErrNotConnected = errors.New("connection not registered")
)

// Recorder receives hub events. *metrics.WebSocketMetrics satisfies it.
type Recorder interface {
	ClientConnected()
	ClientDisconnected()
	SnapshotQueued()
	SlowClientEvicted()
	ConnectionRejected(reason string)
}

type noopRecorder struct{}

func (noopRecorder) ClientConnected()          {}
func (noopRecorder) ClientDisconnected()       {}
func (noopRecorder) SnapshotQueued()           {}
func (noopRecorder) SlowClientEvicted()        {}
func (noopRecorder) ConnectionRejected(string) {}

type sessionClients map[*ws.Conn]*clientWriter

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	sessionID  uuid.UUID
	connection *ws.Conn
	reply      chan error
}

type unregisterCmd struct {
	baseHubCmd
	sessionID  uuid.UUID
	connection *ws.Conn
}

type broadcastCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	data      []byte
}

type sendCmd struct {
	baseHubCmd
	sessionID  uuid.UUID
	connection *ws.Conn
	data       []byte
	reply      chan error
}

type clientCountCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	reply     chan int
}

type disconnectCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	reason    string
}

type stopCmd struct {
	baseHubCmd
}

// Hub fans session snapshots out to the websocket clients viewing each session.
// A single goroutine owns the client map; callers talk to it through cmdCh.
type Hub struct {
	cmdCh                chan hubCmd
	clock                clockwork.Clock
	clients              map[uuid.UUID]sessionClients
	onSessionEmpty       func(sessionID uuid.UUID)
	maxClientsPerSession int
	recorder             Recorder
	done                 chan struct{}
	stopOnce             sync.Once
}

var _ domain.Publisher = (*Hub)(nil)

// NewHub starts the hub goroutine.
// onSessionEmpty runs on its own goroutine after the last client of a session leaves.
// recorder may be nil.
func NewHub(clock clockwork.Clock, maxClientsPerSession int, onSessionEmpty func(uuid.UUID), recorder Recorder) *Hub {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	h := &Hub{
		cmdCh:                make(chan hubCmd, commandQueueSize),
		clock:                clock,
		clients:              make(map[uuid.UUID]sessionClients),
		onSessionEmpty:       onSessionEmpty,
		maxClientsPerSession: maxClientsPerSession,
		recorder:             recorder,
		done:                 make(chan struct{}),
	}
	go h.run()
	return h
}

// Register attaches a connection to a session. The connection is closed when
// the session is full.
func (h *Hub) Register(sessionID uuid.UUID, conn *ws.Conn) error {
	reply := make(chan error, 1)
	if err := h.submit(registerCmd{sessionID: sessionID, connection: conn, reply: reply}); err != nil {
		return err
	}
	return h.awaitError(reply, "register")
}

func (h *Hub) Unregister(sessionID uuid.UUID, conn *ws.Conn) {
	_ = h.submit(unregisterCmd{sessionID: sessionID, connection: conn})
}

// PublishSnapshot queues a snapshot for every client of the session. It never
// blocks: a full command queue drops the snapshot, and the next one supersedes it.
func (h *Hub) PublishSnapshot(sessionID uuid.UUID, snapshot domain.Snapshot) {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		slog.Error("Failed to marshal snapshot", "session_id", sessionID.String(), "error", err)
		return
	}

	select {
	case <-h.done:
	case h.cmdCh <- broadcastCmd{sessionID: sessionID, data: data}:
	default:
		slog.Warn("Hub command queue full, dropping snapshot", "session_id", sessionID.String(), "version", snapshot.Version)
	}
}

// Send queues data for a single registered connection.
func (h *Hub) Send(sessionID uuid.UUID, conn *ws.Conn, data []byte) error {
	reply := make(chan error, 1)
	if err := h.submit(sendCmd{sessionID: sessionID, connection: conn, data: data, reply: reply}); err != nil {
		return err
	}
	return h.awaitError(reply, "send")
}

// ClientCount returns the number of clients viewing a session, or -1 if the hub
// did not answer in time.
func (h *Hub) ClientCount(sessionID uuid.UUID) int {
	reply := make(chan int, 1)
	if err := h.submit(clientCountCmd{sessionID: sessionID, reply: reply}); err != nil {
		return -1
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-reply:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	case <-h.done:
		return -1
	}
}

// Disconnect closes every client of a session with a close frame. onSessionEmpty
// is not fired; the caller is already tearing the session down.
func (h *Hub) Disconnect(sessionID uuid.UUID, reason string) {
	_ = h.submit(disconnectCmd{sessionID: sessionID, reason: reason})
}

// Stop closes every client with a close frame and waits for the hub goroutine.
// It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if err := h.submit(stopCmd{}); err != nil {
			return
		}

		timeout := h.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-h.done:
			slog.Info("Websocket hub stopped")
		case <-timeout.Chan():
			slog.Warn("Websocket hub stop timeout exceeded", "timeout", stopTimeout)
		}
	})
}

func (h *Hub) submit(cmd hubCmd) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case <-h.done:
		return ErrHubStopped
	case h.cmdCh <- cmd:
		return nil
	}
}

func (h *Hub) awaitError(reply chan error, op string) error {
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-reply:
		return err
	case <-timer.Chan():
		return fmt.Errorf("%s command timed out after %v", op, commandTimeout)
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Websocket hub panic recovered", "panic", r)
			h.closeAllClients("hub failure")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.sessionID, c.connection)
		case broadcastCmd:
			h.handleBroadcast(c)
		case sendCmd:
			h.handleSend(c)
		case disconnectCmd:
			h.handleDisconnect(c)
		case clientCountCmd:
			c.reply <- len(h.clients[c.sessionID])
		case stopCmd:
			h.closeAllClients("Server shutting down")
			return
		default:
			slog.Warn("Websocket hub received unknown command", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	clients := h.clients[c.sessionID]
	if len(clients) >= h.maxClientsPerSession {
		slog.Warn("Rejecting client: max clients reached", "session_id", c.sessionID.String(), "max_clients", h.maxClientsPerSession)
		h.recorder.ConnectionRejected("session_full")
		_ = c.connection.Close()
		c.reply <- fmt.Errorf("%w (%d)", ErrSessionFull, h.maxClientsPerSession)
		return
	}

	if clients == nil {
		clients = make(sessionClients)
		h.clients[c.sessionID] = clients
	}
	clients[c.connection] = newClientWriter(c.connection, h.clock)
	h.recorder.ClientConnected()

	slog.Debug("Client registered", "session_id", c.sessionID.String(), "total_clients", len(clients))
	c.reply <- nil
}

func (h *Hub) handleUnregister(sessionID uuid.UUID, conn *ws.Conn) {
	clients, exists := h.clients[sessionID]
	if !exists {
		return
	}
	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	h.recorder.ClientDisconnected()

	if len(clients) > 0 {
		slog.Debug("Client unregistered", "session_id", sessionID.String(), "remaining_clients", len(clients))
		return
	}

	delete(h.clients, sessionID)
	slog.Info("Last client disconnected", "session_id", sessionID.String())
	if h.onSessionEmpty != nil {
		go h.onSessionEmpty(sessionID)
	}
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	clients := h.clients[c.sessionID]

	var slow []*ws.Conn
	for conn, writer := range clients {
		select {
		case writer.sendChannel <- c.data:
			h.recorder.SnapshotQueued()
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "session_id", c.sessionID.String())
		h.recorder.SlowClientEvicted()
		h.handleUnregister(c.sessionID, conn)
	}
}

func (h *Hub) handleSend(c sendCmd) {
	writer, ok := h.clients[c.sessionID][c.connection]
	if !ok {
		c.reply <- ErrNotConnected
		return
	}

	select {
	case writer.sendChannel <- c.data:
		c.reply <- nil
	default:
		h.recorder.SlowClientEvicted()
		h.handleUnregister(c.sessionID, c.connection)
		c.reply <- fmt.Errorf("client send buffer full")
	}
}

func (h *Hub) handleDisconnect(c disconnectCmd) {
	clients := h.clients[c.sessionID]
	for _, cw := range clients {
		cw.stopGraceful(c.reason)
		h.recorder.ClientDisconnected()
	}
	delete(h.clients, c.sessionID)
	if len(clients) > 0 {
		slog.Info("Session clients disconnected", "session_id", c.sessionID.String(), "clients", len(clients), "reason", c.reason)
	}
}

// closeAllClients sends close frames without firing onSessionEmpty; shutdown
// tears the sessions down itself.
func (h *Hub) closeAllClients(reason string) {
	total := 0
	for sessionID, clients := range h.clients {
		for _, cw := range clients {
			cw.stopGraceful(reason)
			h.recorder.ClientDisconnected()
			total++
		}
		delete(h.clients, sessionID)
	}
	slog.Info("Websocket hub closed all clients", "disconnected_clients", total, "reason", reason)
}
