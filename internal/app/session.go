package app

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/jonboulle/clockwork"
)

const defaultBlinkInterval = 1 * time.Second

// SessionOptions are the fixed parameters every session of a process shares.
type SessionOptions struct {
	MaxIndex      int
	BlinkInterval time.Duration
	Images        domain.ImageSource
}

// Session holds the adjustment state of one operator and applies the update rules.
// All mutations are serialised by mu; the blink ticker goroutine takes the same lock.
type Session struct {
	id        uuid.UUID
	clock     clockwork.Clock
	opts      SessionOptions
	publisher domain.Publisher
	observer  domain.SessionObserver

	mu      sync.Mutex
	state   domain.SessionState
	version uint64
	blink   *blinker
	closed  bool
}

// blinker is one running blink timer. A tick is only applied while the session
// still points at the blinker that produced it.
type blinker struct {
	ticker clockwork.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewSession creates a session with default state. publisher and observer may be nil.
func NewSession(id uuid.UUID, opts SessionOptions, clock clockwork.Clock, publisher domain.Publisher, observer domain.SessionObserver) *Session {
	if opts.MaxIndex < 0 {
		opts.MaxIndex = 0
	}
	if opts.BlinkInterval <= 0 {
		opts.BlinkInterval = defaultBlinkInterval
	}
	return &Session{
		id:        id,
		clock:     clock,
		opts:      opts,
		publisher: publisher,
		observer:  observer,
		state:     domain.NewSessionState(),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns a copy of the current state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current state together with its rendered view.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) NudgeX(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.OffsetX += delta
	s.commitLocked()
	return true
}

func (s *Session) NudgeY(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.OffsetY += delta
	s.commitLocked()
	return true
}

// NudgeRotation moves the rotation by delta tenths of a degree.
func (s *Session) NudgeRotation(delta float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RotationDeg = quantizeRotation(s.state.RotationDeg, delta)
	s.commitLocked()
	return true
}

// SetBaseOpacity is ignored while blink mode drives the opacities.
func (s *Session) SetBaseOpacity(v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.BlinkEnabled {
		return false
	}
	s.state.BaseOpacity = normaliseOpacity(v, s.state.BaseOpacity)
	s.commitLocked()
	return true
}

// SetOverlayOpacity is ignored while blink mode drives the opacities.
func (s *Session) SetOverlayOpacity(v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.BlinkEnabled {
		return false
	}
	s.state.OverlayOpacity = normaliseOpacity(v, s.state.OverlayOpacity)
	s.commitLocked()
	return true
}

func (s *Session) CanGoNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGoNextLocked()
}

func (s *Session) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGoBackLocked()
}

// GoNext advances to the next frame pair. It is rejected at MaxIndex.
func (s *Session) GoNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canGoNextLocked() {
		return false
	}
	s.changeFrameLocked(s.state.FrameIndex + 1)
	return true
}

// GoBack returns to the previous frame pair. It is rejected at frame 0.
func (s *Session) GoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canGoBackLocked() {
		return false
	}
	s.changeFrameLocked(s.state.FrameIndex - 1)
	return true
}

func (s *Session) ToggleBlink() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.BlinkEnabled {
		s.stopBlinkLocked()
	} else if !s.startBlinkLocked() {
		return false
	}
	s.commitLocked()
	return true
}

// StartBlink is a no-op when blink mode is already on.
func (s *Session) StartBlink() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.BlinkEnabled || !s.startBlinkLocked() {
		return false
	}
	s.commitLocked()
	return true
}

// StopBlink is a no-op when blink mode is already off.
func (s *Session) StopBlink() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.BlinkEnabled {
		return false
	}
	s.stopBlinkLocked()
	s.commitLocked()
	return true
}

// Close cancels the blink timer and waits for its goroutine to exit.
// Further blink starts are refused.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	b := s.blink
	s.cancelBlinkLocked()
	s.mu.Unlock()

	if b != nil {
		<-b.done
	}
}

func (s *Session) canGoNextLocked() bool {
	return s.state.FrameIndex < s.opts.MaxIndex
}

func (s *Session) canGoBackLocked() bool {
	return s.state.FrameIndex > 0
}

func (s *Session) changeFrameLocked(to int) {
	transition := domain.Transition{
		From:        s.state.FrameIndex,
		To:          to,
		OffsetX:     s.state.OffsetX,
		OffsetY:     s.state.OffsetY,
		RotationDeg: s.state.RotationDeg,
	}
	slog.Info("Frame transition",
		"session_id", s.id.String(),
		"from", transition.From,
		"to", transition.To,
		"x", transition.OffsetX,
		"y", transition.OffsetY,
		"deg", transition.RotationDeg,
	)

	s.state.FrameIndex = to
	s.state.OffsetX = 0
	s.state.OffsetY = 0
	s.state.RotationDeg = 0
	if s.state.BlinkEnabled {
		s.stopBlinkLocked()
	}
	if s.observer != nil {
		s.observer.FrameTransition()
	}
	s.commitLocked()
}

func (s *Session) startBlinkLocked() bool {
	if s.closed {
		return false
	}
	b := &blinker{
		ticker: s.clock.NewTicker(s.opts.BlinkInterval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.blink = b
	s.state.BlinkEnabled = true
	go s.runBlink(b)
	return true
}

func (s *Session) stopBlinkLocked() {
	s.cancelBlinkLocked()
	s.state.BlinkEnabled = false
	s.state.BaseOpacity = domain.DefaultOpacity
	s.state.OverlayOpacity = domain.DefaultOpacity
}

func (s *Session) cancelBlinkLocked() {
	b := s.blink
	if b == nil {
		return
	}
	s.blink = nil
	b.ticker.Stop()
	close(b.stop)
}

func (s *Session) runBlink(b *blinker) {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-b.ticker.Chan():
			s.blinkTick(b)
		}
	}
}

func (s *Session) blinkTick(b *blinker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Stopped between the tick firing and acquiring the lock.
	if s.blink != b {
		return
	}

	if s.state.BaseOpacity == 1 {
		s.state.BaseOpacity = 0
	} else {
		s.state.BaseOpacity = 1
	}
	if s.state.OverlayOpacity == 0 {
		s.state.OverlayOpacity = 1
	} else {
		s.state.OverlayOpacity = 0
	}

	if s.observer != nil {
		s.observer.BlinkTick()
	}
	s.commitLocked()
}

func (s *Session) commitLocked() {
	s.version++
	if s.publisher != nil {
		s.publisher.PublishSnapshot(s.id, s.snapshotLocked())
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		SessionID: s.id,
		Version:   s.version,
		State:     s.state,
		CanGoNext: s.canGoNextLocked(),
		CanGoBack: s.canGoBackLocked(),
		View:      Render(s.state, s.opts.Images),
	}
}

// quantizeRotation applies floor(10*current + delta)/10 on the tenth-degree grid.
// current is snapped to its tenth first so float error cannot accumulate.
func quantizeRotation(current, delta float64) float64 {
	return math.Floor(math.Round(current*10)+delta) / 10
}

func normaliseOpacity(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*10) / 10
}
