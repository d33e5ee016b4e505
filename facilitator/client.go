// Package facilitator talks to the external x402 facilitator service
// that verifies and settles payment proofs. The gateway treats it as
// the single source of truth for whether money moved: any transport
// failure or timeout is surfaced as an error and never interpreted as
// acceptance.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adamanz/payment-gateway-mcp/types"
)

// Facilitator is the contract for payment verification and settlement.
type Facilitator interface {
	// Verify checks a payment proof against requirements without
	// executing the transaction.
	Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error)

	// Settle executes a verified payment on chain and returns the
	// settlement receipt.
	Settle(ctx context.Context, req *types.VerifyRequest) (*types.SettlementResult, error)
}

// Client is an HTTP facilitator client speaking the x402 facilitator
// API (/verify and /settle).
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Facilitator = (*Client)(nil)

// NewClient creates a facilitator client. The timeout bounds each
// verify/settle round trip; settlement confirmation on testnets is
// typically within tens of seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Verify implements Facilitator.
func (c *Client) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, types.NewGatewayError(types.ErrInvalidPayload, err.Error())
	}

	var resp types.VerifyResponse
	if err := c.post(ctx, "/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Settle implements Facilitator.
func (c *Client) Settle(ctx context.Context, req *types.VerifyRequest) (*types.SettlementResult, error) {
	if err := req.Validate(); err != nil {
		return nil, types.NewGatewayError(types.ErrInvalidPayload, err.Error())
	}

	var resp types.SettlementResult
	if err := c.post(ctx, "/settle", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("facilitator request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read facilitator response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator returned %d: %s", httpResp.StatusCode, truncate(data, 256))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode facilitator response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
