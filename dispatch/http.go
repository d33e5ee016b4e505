package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPExecutor calls a tool server over HTTP. The server exposes a
// single /call endpoint accepting a tools/call request body and
// returning either a result or an error object.
type HTTPExecutor struct {
	baseURL string
	http    *http.Client
}

var _ Executor = (*HTTPExecutor)(nil)

// NewHTTPExecutor creates an executor for the tool server at baseURL.
func NewHTTPExecutor(baseURL string, timeout time.Duration) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type callRequest struct {
	Method string     `json:"method"`
	Params callParams `json:"params"`
}

type callParams struct {
	Name      string      `json:"name"`
	Arguments interface{} `json:"arguments"`
}

type callResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *callError      `json:"error,omitempty"`
}

type callError struct {
	Message string `json:"message"`
}

// Execute implements Executor.
func (e *HTTPExecutor) Execute(ctx context.Context, tool string, args interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(callRequest{
		Method: "tools/call",
		Params: callParams{Name: tool, Arguments: args},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool server request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool server returned %d", resp.StatusCode)
	}

	var decoded callResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode tool server response: %w", err)
	}
	if decoded.Error != nil {
		msg := decoded.Error.Message
		if msg == "" {
			msg = "unknown error from tool server"
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return decoded.Result, nil
}
