// Package paygate implements the payment-gated invocation protocol: a
// per-call challenge/proof/verify cycle in front of a downstream tool
// server, with every attempted payment recorded in an append-only
// ledger.
package paygate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adamanz/payment-gateway-mcp/challenge"
	"github.com/adamanz/payment-gateway-mcp/dispatch"
	"github.com/adamanz/payment-gateway-mcp/facilitator"
	"github.com/adamanz/payment-gateway-mcp/ledger"
	"github.com/adamanz/payment-gateway-mcp/logger"
	"github.com/adamanz/payment-gateway-mcp/metrics"
	"github.com/adamanz/payment-gateway-mcp/types"
)

// AuthorizationState is the terminal state of one authorize call.
type AuthorizationState string

const (
	// StateChallengeIssued means no proof accompanied the request; the
	// caller must retry with a proof for the returned requirements.
	StateChallengeIssued AuthorizationState = "challenge_issued"

	StateAccepted AuthorizationState = "accepted"
	StateRejected AuthorizationState = "rejected"
)

// AuthorizationOutcome is the result of Gateway.Authorize.
type AuthorizationOutcome struct {
	State AuthorizationState

	// Requirements is set when State is StateChallengeIssued.
	Requirements *types.PaymentRequirements

	// Receipt is set when State is StateAccepted.
	Receipt *types.SettlementReceipt

	// Reason is set when State is StateRejected, verbatim from the
	// rejector.
	Reason string
}

// Gateway orchestrates the challenge/proof/verify cycle per tool
// invocation and owns the proof single-use bookkeeping. One Gateway is
// constructed per server lifetime; the ledger is passed in explicitly
// and shared with the query surface.
type Gateway struct {
	issuer      *challenge.Issuer
	facilitator facilitator.Facilitator
	ledger      *ledger.Ledger
	dispatcher  *dispatch.Dispatcher

	log     logger.Logger
	metrics metrics.Recorder
	timeout time.Duration

	// mu guards the pending-challenge registry and the used-token set.
	// Verifier calls happen outside the lock.
	mu      sync.Mutex
	pending map[string]*types.PaymentRequirements
	used    map[string]struct{}
}

// New creates a Gateway. The facilitator timeout defaults to 30s and
// can be changed with WithTimeout.
func New(issuer *challenge.Issuer, fac facilitator.Facilitator, led *ledger.Ledger, disp *dispatch.Dispatcher, opts ...Option) *Gateway {
	g := &Gateway{
		issuer:      issuer,
		facilitator: fac,
		ledger:      led,
		dispatcher:  disp,
		log:         logger.NoopLogger{},
		metrics:     metrics.NoopRecorder{},
		timeout:     30 * time.Second,
		pending:     make(map[string]*types.PaymentRequirements),
		used:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ledger returns the gateway's payment ledger for the query surface.
func (g *Gateway) Ledger() *ledger.Ledger {
	return g.ledger
}

// Issuer returns the challenge issuer, exposing the tool catalog.
func (g *Gateway) Issuer() *challenge.Issuer {
	return g.issuer
}

// Authorize runs the payment gate for one invocation of tool.
//
// With no proof it issues a fresh challenge and stops; no ledger entry
// is written since no payment was attempted. With a proof it re-derives
// the requirements the proof was created against, submits both to the
// facilitator, and returns Accepted or Rejected. Exactly one ledger
// entry is appended per terminal Accepted/Rejected outcome, and a
// settled entry is always appended before the caller may dispatch.
func (g *Gateway) Authorize(ctx context.Context, tool string, proof *types.PaymentPayload) (*AuthorizationOutcome, error) {
	desc, ok := g.issuer.Descriptor(tool)
	if !ok {
		// bad tool name is a caller error, not a payment attempt
		return nil, types.NewGatewayError(types.ErrUnknownTool, fmt.Sprintf("unknown tool: %s", tool))
	}

	if proof == nil {
		req, err := g.issuer.IssueChallenge(tool)
		if err != nil {
			return nil, err
		}
		_, token, _ := challenge.ParseResource(req.Resource)

		g.mu.Lock()
		g.pending[token] = req
		g.mu.Unlock()

		g.log.Debug("challenge issued", map[string]any{"tool": tool, "resource": req.Resource})
		g.metrics.IncCounter("challenge_issued", map[string]string{"tool": tool})
		return &AuthorizationOutcome{State: StateChallengeIssued, Requirements: req}, nil
	}

	req, reason := g.consumeProof(tool, proof)
	if reason != "" {
		return g.reject(tool, desc, reason), nil
	}

	// Verification and settlement run on a context detached from caller
	// cancellation: money may move on chain regardless of whether the
	// caller is still waiting, and the ledger must record the true
	// outcome. Dispatch is still skipped for a canceled caller.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	verifyReq := &types.VerifyRequest{
		X402Version:         types.X402Version,
		PaymentPayload:      *proof,
		PaymentRequirements: *req,
	}

	start := time.Now()
	verifyResp, err := g.facilitator.Verify(settleCtx, verifyReq)
	g.metrics.ObserveLatency("verify", time.Since(start), map[string]string{"tool": tool})
	if err != nil {
		// fail closed: absence of confirmation is never acceptance
		g.log.Warn("verifier unreachable", map[string]any{"tool": tool, "error": err.Error()})
		return g.reject(tool, desc, types.ErrVerifierUnreachable), nil
	}
	if !verifyResp.IsValid {
		return g.reject(tool, desc, verifyResp.InvalidReason), nil
	}

	start = time.Now()
	settleResp, err := g.facilitator.Settle(settleCtx, verifyReq)
	g.metrics.ObserveLatency("settle", time.Since(start), map[string]string{"tool": tool})
	if err != nil {
		g.log.Warn("settlement unreachable", map[string]any{"tool": tool, "error": err.Error()})
		return g.reject(tool, desc, types.ErrVerifierUnreachable), nil
	}
	if !settleResp.Success {
		reason := settleResp.ErrorReason
		if reason == "" {
			reason = types.ErrSettlementFailed
		}
		return g.reject(tool, desc, reason), nil
	}

	g.ledger.Append(ledger.Entry{
		Tool:    tool,
		Amount:  desc.Price,
		Outcome: ledger.OutcomeSettled,
		TxHash:  settleResp.TxHash,
	})

	payer := settleResp.Payer
	if payer == "" {
		payer = verifyResp.Payer
	}
	receipt := &types.SettlementReceipt{
		Tool:    tool,
		Amount:  desc.Price,
		TxHash:  settleResp.TxHash,
		Network: req.Network,
		Payer:   payer,
	}

	g.log.Info("payment settled", map[string]any{"tool": tool, "txHash": settleResp.TxHash, "amount": desc.Price.String()})
	g.metrics.IncCounter("payment_settled", map[string]string{"tool": tool})
	return &AuthorizationOutcome{State: StateAccepted, Receipt: receipt}, nil
}

// consumeProof binds the proof to its pending challenge. The
// correlation token is consumed here, before any verifier call, so a
// proof can never be submitted twice even when verification fails.
// Returns the matched requirements, or a rejection reason.
func (g *Gateway) consumeProof(tool string, proof *types.PaymentPayload) (*types.PaymentRequirements, string) {
	if err := proof.Validate(); err != nil {
		return nil, types.ErrInvalidPayload
	}

	proofTool, token, ok := challenge.ParseResource(proof.Resource)
	if !ok || proofTool != tool {
		return nil, types.ErrRequirementsMismatch
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, replayed := g.used[token]; replayed {
		return nil, types.ErrProofAlreadyUsed
	}

	req, pending := g.pending[token]
	if !pending {
		return nil, types.ErrRequirementsMismatch
	}
	delete(g.pending, token)
	g.used[token] = struct{}{}

	if proof.Network != req.Network || proof.Scheme != req.Scheme || proof.Resource != req.Resource {
		return nil, types.ErrRequirementsMismatch
	}
	return req, ""
}

// reject appends the failed ledger entry and returns the rejected
// outcome. The reason travels verbatim into both.
func (g *Gateway) reject(tool string, desc types.ToolDescriptor, reason string) *AuthorizationOutcome {
	g.ledger.Append(ledger.Entry{
		Tool:    tool,
		Amount:  desc.Price,
		Outcome: ledger.OutcomeFailed,
		Reason:  reason,
	})
	g.log.Info("payment rejected", map[string]any{"tool": tool, "reason": reason})
	g.metrics.IncCounter("payment_rejected", map[string]string{"tool": tool})
	return &AuthorizationOutcome{State: StateRejected, Reason: reason}
}

// Invoke runs the full authorize-then-dispatch sequence for one tool
// call and builds the caller-facing envelope. Dispatch happens at most
// once, only after a settled ledger entry exists, and is skipped when
// the caller's context is already done by the time settlement lands.
func (g *Gateway) Invoke(ctx context.Context, tool string, args interface{}, proof *types.PaymentPayload) (*Envelope, error) {
	outcome, err := g.Authorize(ctx, tool, proof)
	if err != nil {
		return nil, err
	}

	switch outcome.State {
	case StateChallengeIssued:
		desc, _ := g.issuer.Descriptor(tool)
		return ChallengeEnvelope(desc, outcome.Requirements), nil

	case StateRejected:
		// no charge occurred, so no payment block
		return ErrorEnvelope(outcome.Reason, nil), nil

	case StateAccepted:
		if ctx.Err() != nil {
			// caller gave up while settlement was in flight; the charge
			// is ledgered but the downstream call must not run
			g.log.Warn("dispatch skipped after cancellation", map[string]any{"tool": tool})
			return ErrorEnvelope(ctx.Err().Error(), outcome.Receipt), nil
		}
		result := g.dispatcher.Dispatch(ctx, tool, args, outcome.Receipt)
		if result.Err != nil {
			return ErrorEnvelope(result.Err.Error(), result.Receipt), nil
		}
		return SuccessEnvelope(result.Output, result.Receipt), nil

	default:
		return nil, types.NewGatewayError(types.ErrPaymentFailed, fmt.Sprintf("unexpected authorization state: %s", outcome.State))
	}
}
