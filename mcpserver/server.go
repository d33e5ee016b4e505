// Package mcpserver exposes the payment gateway as an MCP server.
//
// Each paid tool is gated behind the challenge/proof/verify cycle:
// callers either attach a signed payment proof under the x402/payment
// request metadata key, or - when the gateway is configured with a
// signing wallet - the server signs the challenge on the caller's
// behalf before dispatching.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	paygate "github.com/adamanz/payment-gateway-mcp"
	"github.com/adamanz/payment-gateway-mcp/logger"
	"github.com/adamanz/payment-gateway-mcp/types"
)

// MCP _meta keys for the x402 payment protocol.
const (
	// PaymentMetaKey carries payment payloads (client -> server).
	PaymentMetaKey = "x402/payment"

	// PaymentResponseMetaKey carries settlement receipts (server -> client).
	PaymentResponseMetaKey = "x402/payment-response"
)

// ProofSigner is the payment proof collaborator: it turns payment
// requirements into a signed proof, or fails (insufficient funds,
// signing error).
type ProofSigner interface {
	Sign(req *types.PaymentRequirements) (*types.PaymentPayload, error)
}

// Server wires the payment gateway into an MCP server.
type Server struct {
	gw     *paygate.Gateway
	signer ProofSigner // nil when callers must supply proofs themselves
	log    logger.Logger
	mcp    *mcp.Server
}

// NewServer builds the MCP server and registers all tools. signer may
// be nil, in which case unpaid calls are answered with a payment
// challenge instead of being auto-paid.
func NewServer(gw *paygate.Gateway, signer ProofSigner, log logger.Logger) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}
	s := &Server{
		gw:     gw,
		signer: signer,
		log:    log,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "Payment Gateway",
			Version: "1.0.0",
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over the given transport until ctx is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

func (s *Server) registerTools() {
	for _, desc := range s.gw.Issuer().Tools() {
		desc := desc
		s.mcp.AddTool(&mcp.Tool{
			Name:        desc.Name,
			Description: fmt.Sprintf("%s Costs $%s.", desc.Description, desc.Price.String()),
			InputSchema: inputSchema(desc.Name),
		}, s.paidToolHandler(desc.Name))
	}

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_payment_history",
		Description: "Get the payment history for this session. This tool is free.",
		InputSchema: inputSchema("get_payment_history"),
	}, s.historyHandler)
}

// paidToolHandler builds the gated handler for one metered tool.
func (s *Server) paidToolHandler(tool string) mcp.ToolHandler {
	return func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArgs(tool, request.Params.Arguments)
		if err != nil {
			return envelopeResult(paygate.ErrorEnvelope(err.Error(), nil)), nil
		}

		proof := extractProof(request)
		env, err := s.invoke(ctx, tool, args, proof)
		if err != nil {
			return envelopeResult(paygate.ErrorEnvelope(err.Error(), nil)), nil
		}
		return envelopeResult(env), nil
	}
}

// invoke runs the gate, auto-signing the challenge when a wallet is
// configured and the caller supplied no proof of their own.
func (s *Server) invoke(ctx context.Context, tool string, args interface{}, proof *types.PaymentPayload) (*paygate.Envelope, error) {
	if proof == nil && s.signer != nil {
		outcome, err := s.gw.Authorize(ctx, tool, nil)
		if err != nil {
			return nil, err
		}
		signed, err := s.signer.Sign(outcome.Requirements)
		if err != nil {
			s.log.Error("proof signing failed", map[string]any{"tool": tool, "error": err.Error()})
			env := paygate.ErrorEnvelope(fmt.Sprintf("Payment failed: %v", err), nil)
			env.Status = "payment_required"
			return env, nil
		}
		proof = signed
	}

	return s.gw.Invoke(ctx, tool, args, proof)
}

// historyHandler is the free ledger query surface.
func (s *Server) historyHandler(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	led := s.gw.Ledger()
	body, err := json.Marshal(map[string]any{
		"history":    led.Entries(),
		"totalSpent": led.TotalSettled().StringFixed(2),
	})
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil
}

// extractProof reads a payment proof from the request's _meta, if
// present.
func extractProof(request *mcp.CallToolRequest) *types.PaymentPayload {
	meta := request.Params.Meta
	if meta == nil {
		return nil
	}
	raw, ok := meta[PaymentMetaKey]
	if !ok || raw == nil {
		return nil
	}

	// roundtrip through JSON to convert the untyped meta value
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var proof types.PaymentPayload
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil
	}
	return &proof
}

// envelopeResult converts a gateway envelope into an MCP tool result.
// Challenges and failures set IsError and carry the envelope in
// structuredContent as well as content[0].text; settled payments are
// echoed under the payment-response meta key.
func envelopeResult(env *paygate.Envelope) *mcp.CallToolResult {
	body := env.JSON()

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: env.IsError(),
	}

	if env.IsError() {
		var structured map[string]any
		if json.Unmarshal(body, &structured) == nil {
			result.StructuredContent = structured
		}
	}

	if env.Payment != nil {
		result.Meta = mcp.Meta{PaymentResponseMetaKey: env.Payment}
	}
	return result
}
