package mcpserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamanz/payment-gateway-mcp/types"
)

func TestDecodeArgsTextToSpeech(t *testing.T) {
	raw := json.RawMessage(`{"text":"hello","voice_id":"rachel","stability":0.5}`)
	args, err := decodeArgs("text_to_speech", raw)
	require.NoError(t, err)

	tts, ok := args.(*TextToSpeechArgs)
	require.True(t, ok)
	assert.Equal(t, "hello", tts.Text)
	assert.Equal(t, "rachel", tts.VoiceID)
	require.NotNil(t, tts.Stability)
	assert.Equal(t, 0.5, *tts.Stability)
}

func TestDecodeArgsMissingRequiredField(t *testing.T) {
	t.Run("text_to_speech without text", func(t *testing.T) {
		_, err := decodeArgs("text_to_speech", json.RawMessage(`{"voice_id":"rachel"}`))
		require.Error(t, err)
		assert.Equal(t, types.ErrInvalidArguments, types.ErrorCode(err))
	})

	t.Run("get_voice_settings without voice_id", func(t *testing.T) {
		_, err := decodeArgs("get_voice_settings", json.RawMessage(`{}`))
		require.Error(t, err)
		assert.Equal(t, types.ErrInvalidArguments, types.ErrorCode(err))
	})
}

func TestDecodeArgsOutOfRange(t *testing.T) {
	_, err := decodeArgs("text_to_speech", json.RawMessage(`{"text":"hi","stability":1.5}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidArguments, types.ErrorCode(err))
}

func TestDecodeArgsNoArgTools(t *testing.T) {
	for _, tool := range []string{"list_voices", "check_api_status"} {
		args, err := decodeArgs(tool, nil)
		require.NoError(t, err, "tool %s accepts empty arguments", tool)
		require.NotNil(t, args)
	}
}

func TestDecodeArgsMalformedJSON(t *testing.T) {
	_, err := decodeArgs("text_to_speech", json.RawMessage(`{"text":`))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidArguments, types.ErrorCode(err))
}

func TestDecodeArgsUnknownTool(t *testing.T) {
	_, err := decodeArgs("transcribe", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrUnknownTool, types.ErrorCode(err))
}

func TestInputSchemaRequiredFields(t *testing.T) {
	tts := inputSchema("text_to_speech")
	assert.Equal(t, []string{"text"}, tts["required"])

	settings := inputSchema("get_voice_settings")
	assert.Equal(t, []string{"voice_id"}, settings["required"])

	free := inputSchema("list_voices")
	assert.Equal(t, "object", free["type"])
	assert.NotContains(t, free, "required")
}
