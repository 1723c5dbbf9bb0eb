package domain

import "github.com/google/uuid"

// Publisher pushes session snapshots to connected views.
// Implementations must not block and must not call back into the session.
type Publisher interface {
	PublishSnapshot(sessionID uuid.UUID, snapshot Snapshot)
}

// SessionObserver receives lifecycle and activity events for metrics.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
	FrameTransition()
	BlinkTick()
	CommandHandled(command CommandType, applied bool)
}
