package domain

// Key is a normalised keyboard binding.
type Key string

const (
	KeyLeft  Key = "left"
	KeyRight Key = "right"
	KeyUp    Key = "up"
	KeyDown  Key = "down"
	KeyW     Key = "w"
	KeyS     Key = "s"
)

// CommandType names an operator action.
type CommandType string

const (
	CommandKey            CommandType = "key"
	CommandBaseOpacity    CommandType = "base_opacity"
	CommandOverlayOpacity CommandType = "overlay_opacity"
	CommandToggleBlink    CommandType = "toggle_blink"
	CommandStartBlink     CommandType = "start_blink"
	CommandStopBlink      CommandType = "stop_blink"
	CommandNext           CommandType = "next"
	CommandBack           CommandType = "back"
)

// Command is a single operator action as it arrives from the view.
type Command struct {
	Type  CommandType `json:"type"`
	Key   string      `json:"key,omitempty"`
	Value *float64    `json:"value,omitempty"`
}

// CommandResult reports whether a command changed the session.
type CommandResult struct {
	Applied  bool     `json:"applied"`
	Snapshot Snapshot `json:"snapshot"`
}

// Known reports whether t is one of the defined command types.
func (t CommandType) Known() bool {
	switch t {
	case CommandKey, CommandBaseOpacity, CommandOverlayOpacity,
		CommandToggleBlink, CommandStartBlink, CommandStopBlink,
		CommandNext, CommandBack:
		return true
	}
	return false
}
