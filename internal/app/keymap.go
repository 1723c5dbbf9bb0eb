package app

import (
	"fmt"
	"strings"

	"github.com/hideo54/image-adjuster/internal/domain"
)

// keyAliases maps browser KeyboardEvent.key values onto bindings.
var keyAliases = map[string]domain.Key{
	"left":       domain.KeyLeft,
	"arrowleft":  domain.KeyLeft,
	"right":      domain.KeyRight,
	"arrowright": domain.KeyRight,
	"up":         domain.KeyUp,
	"arrowup":    domain.KeyUp,
	"down":       domain.KeyDown,
	"arrowdown":  domain.KeyDown,
	"w":          domain.KeyW,
	"s":          domain.KeyS,
}

// ParseKey normalises a key name. Matching is case-insensitive.
func ParseKey(name string) (domain.Key, error) {
	key, ok := keyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownKey, name)
	}
	return key, nil
}

// PressKey applies the binding for key.
func (s *Session) PressKey(key domain.Key) (bool, error) {
	switch key {
	case domain.KeyLeft:
		return s.NudgeX(-1), nil
	case domain.KeyRight:
		return s.NudgeX(1), nil
	case domain.KeyUp:
		return s.NudgeY(-1), nil
	case domain.KeyDown:
		return s.NudgeY(1), nil
	case domain.KeyW:
		return s.NudgeRotation(-1), nil
	case domain.KeyS:
		return s.NudgeRotation(1), nil
	default:
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownKey, key)
	}
}

// Apply dispatches a command from the view. Errors are only returned for
// malformed commands; a well-formed command that has no effect reports false.
func (s *Session) Apply(cmd domain.Command) (bool, error) {
	switch cmd.Type {
	case domain.CommandKey:
		key, err := ParseKey(cmd.Key)
		if err != nil {
			return false, err
		}
		return s.PressKey(key)
	case domain.CommandBaseOpacity:
		v, err := opacityValue(cmd)
		if err != nil {
			return false, err
		}
		return s.SetBaseOpacity(v), nil
	case domain.CommandOverlayOpacity:
		v, err := opacityValue(cmd)
		if err != nil {
			return false, err
		}
		return s.SetOverlayOpacity(v), nil
	case domain.CommandToggleBlink:
		return s.ToggleBlink(), nil
	case domain.CommandStartBlink:
		return s.StartBlink(), nil
	case domain.CommandStopBlink:
		return s.StopBlink(), nil
	case domain.CommandNext:
		return s.GoNext(), nil
	case domain.CommandBack:
		return s.GoBack(), nil
	default:
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Type)
	}
}

func opacityValue(cmd domain.Command) (float64, error) {
	if cmd.Value == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrMissingValue, cmd.Type)
	}
	v := *cmd.Value
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: %v", domain.ErrOpacityOutOfRange, v)
	}
	return v, nil
}
