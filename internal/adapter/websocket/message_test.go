package websocket

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hideo54/image-adjuster/internal/domain"
	apperrors "github.com/hideo54/image-adjuster/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"key","key":"ArrowLeft"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.CommandKey, cmd.Type)
	assert.Equal(t, "ArrowLeft", cmd.Key)
	assert.Nil(t, cmd.Value)

	cmd, err = DecodeCommand([]byte(`{"type":"overlay_opacity","value":0.3}`))
	require.NoError(t, err)
	assert.Equal(t, domain.CommandOverlayOpacity, cmd.Type)
	require.NotNil(t, cmd.Value)
	assert.InDelta(t, 0.3, *cmd.Value, 1e-9)
}

func TestDecodeCommand_Invalid(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"key":"w"}`, `[1,2]`} {
		_, err := DecodeCommand([]byte(raw))
		require.Error(t, err, raw)

		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.TypeValidation, appErr.Type)
	}
}

func TestEncodeSnapshot(t *testing.T) {
	id := uuid.New()
	snap := domain.Snapshot{SessionID: id, Version: 7, State: domain.NewSessionState(), CanGoNext: true}

	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "snapshot", decoded["type"])
	inner := decoded["snapshot"].(map[string]any)
	assert.Equal(t, id.String(), inner["session_id"])
	assert.InDelta(t, 7, inner["version"], 0)
	assert.NotContains(t, decoded, "error")
}

func TestEncodeError(t *testing.T) {
	data := EncodeError(apperrors.ValidationError("unknown key"))
	assert.JSONEq(t, `{"type":"error","error":"unknown key","error_type":"validation"}`, string(data))
}
