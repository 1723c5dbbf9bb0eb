package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/hideo54/image-adjuster/internal/domain"
	apperrors "github.com/hideo54/image-adjuster/internal/platform/errors"
)

const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
)

// Message is the envelope of every server-to-browser frame.
type Message struct {
	Type      string              `json:"type"`
	Snapshot  *domain.Snapshot    `json:"snapshot,omitempty"`
	Error     string              `json:"error,omitempty"`
	ErrorType apperrors.ErrorType `json:"error_type,omitempty"`
}

func EncodeSnapshot(snapshot domain.Snapshot) ([]byte, error) {
	data, err := json.Marshal(Message{Type: MessageSnapshot, Snapshot: &snapshot})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// EncodeError renders a command failure for in-band delivery.
func EncodeError(err *apperrors.Error) []byte {
	data, _ := json.Marshal(Message{Type: MessageError, Error: err.Message, ErrorType: err.Type})
	return data
}

// DecodeCommand parses one browser frame into a command.
func DecodeCommand(data []byte) (domain.Command, error) {
	var cmd domain.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return domain.Command{}, apperrors.ValidationError("malformed command message")
	}
	if cmd.Type == "" {
		return domain.Command{}, apperrors.ValidationError("command type is required")
	}
	return cmd, nil
}
