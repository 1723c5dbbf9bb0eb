package domain

import "github.com/google/uuid"

// Session defaults. Transform values reset to zero on every frame change;
// opacities return to DefaultOpacity when blink mode ends.
const (
	DefaultMaxIndex = 53
	DefaultOpacity  = 0.5
	OpacityStep     = 0.1
)

// SessionState is the full adjustment state of one operator session.
type SessionState struct {
	FrameIndex     int     `json:"frame_index"`
	OffsetX        int     `json:"x"`
	OffsetY        int     `json:"y"`
	RotationDeg    float64 `json:"deg"`
	BaseOpacity    float64 `json:"base_opacity"`
	OverlayOpacity float64 `json:"overlay_opacity"`
	BlinkEnabled   bool    `json:"blink_enabled"`
}

// NewSessionState returns the state a freshly opened tool starts with.
func NewSessionState() SessionState {
	return SessionState{
		BaseOpacity:    DefaultOpacity,
		OverlayOpacity: DefaultOpacity,
	}
}

// Snapshot is what gets pushed to the view after every change.
type Snapshot struct {
	SessionID uuid.UUID    `json:"session_id"`
	Version   uint64       `json:"version"`
	State     SessionState `json:"state"`
	CanGoNext bool         `json:"can_go_next"`
	CanGoBack bool         `json:"can_go_back"`
	View      View         `json:"view"`
}

// Transition is the diagnostic record emitted when the frame index changes.
type Transition struct {
	From        int
	To          int
	OffsetX     int
	OffsetY     int
	RotationDeg float64
}
