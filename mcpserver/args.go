package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/adamanz/payment-gateway-mcp/types"
)

// Typed argument variants per tool, validated at the boundary before
// anything reaches the payment gate.

type ListVoicesArgs struct{}

type TextToSpeechArgs struct {
	Text            string   `json:"text" validate:"required"`
	VoiceID         string   `json:"voice_id,omitempty"`
	OutputDirectory string   `json:"output_directory,omitempty"`
	ModelID         string   `json:"model_id,omitempty"`
	Stability       *float64 `json:"stability,omitempty" validate:"omitempty,gte=0,lte=1"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type GetVoiceSettingsArgs struct {
	VoiceID string `json:"voice_id" validate:"required"`
}

type CheckAPIStatusArgs struct{}

var validate = validator.New()

// decodeArgs parses raw tool arguments into the typed variant for the
// tool and validates it. Unknown tools are a programming error here:
// the server only wires handlers for tools it registered.
func decodeArgs(tool string, raw json.RawMessage) (interface{}, error) {
	var args interface{}
	switch tool {
	case "list_voices":
		args = &ListVoicesArgs{}
	case "text_to_speech":
		args = &TextToSpeechArgs{}
	case "get_voice_settings":
		args = &GetVoiceSettingsArgs{}
	case "check_api_status":
		args = &CheckAPIStatusArgs{}
	default:
		return nil, types.NewGatewayError(types.ErrUnknownTool, fmt.Sprintf("unknown tool: %s", tool))
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, args); err != nil {
			return nil, types.NewGatewayError(types.ErrInvalidArguments, fmt.Sprintf("invalid arguments: %v", err))
		}
	}
	if err := validate.Struct(args); err != nil {
		return nil, types.NewGatewayError(types.ErrInvalidArguments, fmt.Sprintf("invalid arguments: %v", err))
	}
	return args, nil
}

// inputSchema returns the JSON schema advertised for a tool.
func inputSchema(tool string) map[string]any {
	switch tool {
	case "text_to_speech":
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":             map[string]any{"type": "string", "description": "The text to convert to speech"},
				"voice_id":         map[string]any{"type": "string"},
				"output_directory": map[string]any{"type": "string"},
				"model_id":         map[string]any{"type": "string"},
				"stability":        map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				"similarity_boost": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
			"required": []string{"text"},
		}
	case "get_voice_settings":
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"voice_id": map[string]any{"type": "string", "description": "The voice to fetch settings for"},
			},
			"required": []string{"voice_id"},
		}
	default:
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
}
