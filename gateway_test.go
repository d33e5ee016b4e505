package paygate_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paygate "github.com/adamanz/payment-gateway-mcp"
	"github.com/adamanz/payment-gateway-mcp/challenge"
	"github.com/adamanz/payment-gateway-mcp/dispatch"
	"github.com/adamanz/payment-gateway-mcp/ledger"
	"github.com/adamanz/payment-gateway-mcp/types"
)

const testRecipient = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"

type fakeFacilitator struct {
	verifyFn    func(req *types.VerifyRequest) (*types.VerifyResponse, error)
	settleFn    func(req *types.VerifyRequest) (*types.SettlementResult, error)
	verifyCalls int
	settleCalls int
}

func (f *fakeFacilitator) Verify(_ context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	f.verifyCalls++
	if f.verifyFn == nil {
		return &types.VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil
	}
	return f.verifyFn(req)
}

func (f *fakeFacilitator) Settle(_ context.Context, req *types.VerifyRequest) (*types.SettlementResult, error) {
	f.settleCalls++
	if f.settleFn == nil {
		return &types.SettlementResult{Success: true, TxHash: "0xabc"}, nil
	}
	return f.settleFn(req)
}

type fakeExecutor struct {
	calls int
	fn    func(tool string, args interface{}) (json.RawMessage, error)
}

func (f *fakeExecutor) Execute(_ context.Context, tool string, args interface{}) (json.RawMessage, error) {
	f.calls++
	if f.fn == nil {
		return json.RawMessage(`{"ok":true}`), nil
	}
	return f.fn(tool, args)
}

func newGateway(t *testing.T, fac *fakeFacilitator, exec *fakeExecutor) (*paygate.Gateway, *ledger.Ledger) {
	t.Helper()
	price := decimal.RequireFromString("0.10")
	issuer, err := challenge.NewIssuer([]types.ToolDescriptor{
		{Name: "list_voices", Description: "List voices.", Price: price, Network: types.NetworkBaseSepolia},
		{Name: "text_to_speech", Description: "Convert text to speech.", Price: price, Network: types.NetworkBaseSepolia},
	}, testRecipient, types.NetworkBaseSepolia, "")
	require.NoError(t, err)

	led := ledger.New()
	gw := paygate.New(issuer, fac, led, dispatch.NewDispatcher(exec))
	return gw, led
}

// proofFor builds a payment proof bound to the given challenge, the way
// a caller's wallet would.
func proofFor(req *types.PaymentRequirements) *types.PaymentPayload {
	return &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      req.Scheme,
		Network:     req.Network,
		Resource:    req.Resource,
		Payload:     base64.StdEncoding.EncodeToString([]byte(`{"signature":"0xsig"}`)),
	}
}

func TestAuthorizeUnknownTool(t *testing.T) {
	fac := &fakeFacilitator{}
	gw, led := newGateway(t, fac, &fakeExecutor{})

	outcome, err := gw.Authorize(context.Background(), "transcribe", nil)
	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.Equal(t, types.ErrUnknownTool, types.ErrorCode(err))
	assert.Equal(t, 0, led.Len(), "bad tool names never reach the ledger")
	assert.Equal(t, 0, fac.verifyCalls)
}

func TestAuthorizeWithoutProofIssuesChallenge(t *testing.T) {
	fac := &fakeFacilitator{}
	gw, led := newGateway(t, fac, &fakeExecutor{})

	outcome, err := gw.Authorize(context.Background(), "list_voices", nil)
	require.NoError(t, err)

	assert.Equal(t, paygate.StateChallengeIssued, outcome.State)
	require.NotNil(t, outcome.Requirements)
	assert.Equal(t, "100000", outcome.Requirements.MaxAmountRequired)
	assert.Equal(t, testRecipient, outcome.Requirements.PayTo)
	assert.Equal(t, 0, led.Len(), "a challenge is not a payment attempt")
	assert.Equal(t, 0, fac.verifyCalls)
}

func TestAuthorizeAcceptedAppendsSettledEntryBeforeDispatch(t *testing.T) {
	fac := &fakeFacilitator{}
	exec := &fakeExecutor{}
	gw, led := newGateway(t, fac, exec)

	// the executor observes the ledger state at dispatch time
	var entriesAtDispatch int
	exec.fn = func(string, interface{}) (json.RawMessage, error) {
		entriesAtDispatch = led.Len()
		return json.RawMessage(`{"voices":[]}`), nil
	}

	outcome, err := gw.Authorize(context.Background(), "text_to_speech", nil)
	require.NoError(t, err)

	env, err := gw.Invoke(context.Background(), "text_to_speech", map[string]any{"text": "hi"}, proofFor(outcome.Requirements))
	require.NoError(t, err)

	require.Equal(t, 1, exec.calls, "downstream runs exactly once per accepted outcome")
	assert.Equal(t, 1, entriesAtDispatch, "settled entry must exist before dispatch")

	entries := led.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.OutcomeSettled, entries[0].Outcome)
	assert.Equal(t, "text_to_speech", entries[0].Tool)
	assert.Equal(t, "0xabc", entries[0].TxHash)
	assert.True(t, led.TotalSettled().Equal(decimal.RequireFromString("0.10")))

	require.NotNil(t, env.Payment)
	assert.Equal(t, "0xabc", env.Payment.TransactionHash)
	assert.Equal(t, "0.1", env.Payment.Amount)
	assert.False(t, env.IsError())
}

func TestAuthorizeRejectedByVerifier(t *testing.T) {
	fac := &fakeFacilitator{
		verifyFn: func(*types.VerifyRequest) (*types.VerifyResponse, error) {
			return &types.VerifyResponse{IsValid: false, InvalidReason: "insufficient_funds"}, nil
		},
	}
	exec := &fakeExecutor{}
	gw, led := newGateway(t, fac, exec)

	outcome, err := gw.Authorize(context.Background(), "list_voices", nil)
	require.NoError(t, err)

	env, err := gw.Invoke(context.Background(), "list_voices", nil, proofFor(outcome.Requirements))
	require.NoError(t, err)

	assert.Equal(t, "insufficient_funds", env.Error, "verifier reason propagates verbatim")
	assert.Nil(t, env.Payment, "no charge occurred")
	assert.Equal(t, 0, exec.calls, "rejected payments never dispatch")
	assert.Equal(t, 0, fac.settleCalls)

	entries := led.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, "insufficient_funds", entries[0].Reason)
	assert.True(t, led.TotalSettled().IsZero())
}

func TestAuthorizeVerifierUnreachableFailsClosed(t *testing.T) {
	fac := &fakeFacilitator{
		verifyFn: func(*types.VerifyRequest) (*types.VerifyResponse, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	exec := &fakeExecutor{}
	gw, led := newGateway(t, fac, exec)

	outcome, err := gw.Authorize(context.Background(), "list_voices", nil)
	require.NoError(t, err)

	result, err := gw.Authorize(context.Background(), "list_voices", proofFor(outcome.Requirements))
	require.NoError(t, err)

	assert.Equal(t, paygate.StateRejected, result.State)
	assert.Equal(t, types.ErrVerifierUnreachable, result.Reason,
		"absence of confirmation must never read as acceptance")
	assert.Equal(t, 0, exec.calls)

	entries := led.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, types.ErrVerifierUnreachable, entries[0].Reason)
}

func TestSettlementFailureFailsClosed(t *testing.T) {
	fac := &fakeFacilitator{
		settleFn: func(*types.VerifyRequest) (*types.SettlementResult, error) {
			return nil, errors.New("i/o timeout")
		},
	}
	exec := &fakeExecutor{}
	gw, led := newGateway(t, fac, exec)

	outcome, err := gw.Authorize(context.Background(), "text_to_speech", nil)
	require.NoError(t, err)

	result, err := gw.Authorize(context.Background(), "text_to_speech", proofFor(outcome.Requirements))
	require.NoError(t, err)

	assert.Equal(t, paygate.StateRejected, result.State)
	assert.Equal(t, types.ErrVerifierUnreachable, result.Reason)
	assert.Equal(t, 0, exec.calls)
	assert.True(t, led.TotalSettled().IsZero())
}

func TestProofReplayRejected(t *testing.T) {
	fac := &fakeFacilitator{}
	exec := &fakeExecutor{}
	gw, led := newGateway(t, fac, exec)

	outcome, err := gw.Authorize(context.Background(), "list_voices", nil)
	require.NoError(t, err)
	proof := proofFor(outcome.Requirements)

	first, err := gw.Authorize(context.Background(), "list_voices", proof)
	require.NoError(t, err)
	require.Equal(t, paygate.StateAccepted, first.State)

	second, err := gw.Authorize(context.Background(), "list_voices", proof)
	require.NoError(t, err)
	assert.Equal(t, paygate.StateRejected, second.State)
	assert.Equal(t, types.ErrProofAlreadyUsed, second.Reason)

	assert.Equal(t, 1, fac.verifyCalls, "a consumed proof never reaches the verifier again")
	require.Equal(t, 2, led.Len())
	assert.Equal(t, ledger.OutcomeSettled, led.Entries()[0].Outcome)
	assert.Equal(t, ledger.OutcomeFailed, led.Entries()[1].Outcome)
}

func TestProofForUnknownChallengeRejectedWithoutVerifierCall(t *testing.T) {
	fac := &fakeFacilitator{}
	gw, led := newGateway(t, fac, &fakeExecutor{})

	proof := &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeExact,
		Network:     "base-sepolia",
		Resource:    challenge.ResourceFor("list_voices", challenge.MintToken()),
		Payload:     base64.StdEncoding.EncodeToString([]byte(`{}`)),
	}

	result, err := gw.Authorize(context.Background(), "list_voices", proof)
	require.NoError(t, err)

	assert.Equal(t, paygate.StateRejected, result.State)
	assert.Equal(t, types.ErrRequirementsMismatch, result.Reason)
	assert.Equal(t, 0, fac.verifyCalls, "mismatched requirements never reach the verifier")
	assert.Equal(t, 1, led.Len())
}

func TestProofForDifferentToolRejected(t *testing.T) {
	fac := &fakeFacilitator{}
	gw, _ := newGateway(t, fac, &fakeExecutor{})

	outcome, err := gw.Authorize(context.Background(), "list_voices", nil)
	require.NoError(t, err)

	// proof minted for list_voices submitted against text_to_speech
	result, err := gw.Authorize(context.Background(), "text_to_speech", proofFor(outcome.Requirements))
	require.NoError(t, err)

	assert.Equal(t, paygate.StateRejected, result.State)
	assert.Equal(t, types.ErrRequirementsMismatch, result.Reason)
	assert.Equal(t, 0, fac.verifyCalls)
}

func TestDownstreamFailureKeepsReceipt(t *testing.T) {
	fac := &fakeFacilitator{}
	exec := &fakeExecutor{
		fn: func(string, interface{}) (json.RawMessage, error) {
			return nil, errors.New("voice not found")
		},
	}
	gw, led := newGateway(t, fac, exec)

	outcome, err := gw.Authorize(context.Background(), "text_to_speech", nil)
	require.NoError(t, err)

	env, err := gw.Invoke(context.Background(), "text_to_speech", map[string]any{"text": "hi"}, proofFor(outcome.Requirements))
	require.NoError(t, err)

	assert.True(t, env.IsError())
	assert.Contains(t, env.Error, "voice not found")
	require.NotNil(t, env.Payment, "the caller paid; the receipt must survive downstream failure")
	assert.Equal(t, "0xabc", env.Payment.TransactionHash)

	// the charge stands in the ledger too
	assert.True(t, led.TotalSettled().Equal(decimal.RequireFromString("0.10")))
}

func TestInvokeWithoutProofReturnsChallengeEnvelope(t *testing.T) {
	gw, led := newGateway(t, &fakeFacilitator{}, &fakeExecutor{})

	env, err := gw.Invoke(context.Background(), "list_voices", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "payment_required", env.Status)
	assert.Equal(t, "list_voices", env.Tool)
	assert.Equal(t, "0.1", env.Amount)
	require.NotNil(t, env.Requirements)
	assert.True(t, env.IsError())
	assert.Equal(t, 0, led.Len())
}

func TestCanceledCallerSkipsDispatchButLedgersOutcome(t *testing.T) {
	fac := &fakeFacilitator{}
	exec := &fakeExecutor{}
	gw, led := newGateway(t, fac, exec)

	outcome, err := gw.Authorize(context.Background(), "list_voices", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env, err := gw.Invoke(ctx, "list_voices", nil, proofFor(outcome.Requirements))
	require.NoError(t, err)

	// settlement still completed on the detached context
	assert.True(t, led.TotalSettled().Equal(decimal.RequireFromString("0.10")),
		"the true settlement outcome is ledgered even after cancellation")
	assert.Equal(t, 0, exec.calls, "dispatch is skipped for a canceled caller")
	assert.True(t, env.IsError())
	require.NotNil(t, env.Payment, "money moved; the receipt is surfaced")
}

func TestPaymentHistoryAcrossOutcomes(t *testing.T) {
	calls := 0
	fac := &fakeFacilitator{
		verifyFn: func(*types.VerifyRequest) (*types.VerifyResponse, error) {
			calls++
			if calls == 1 {
				return &types.VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil
			}
			return &types.VerifyResponse{IsValid: false, InvalidReason: "insufficient_funds"}, nil
		},
	}
	gw, led := newGateway(t, fac, &fakeExecutor{})

	// settled call
	outcome, err := gw.Authorize(context.Background(), "text_to_speech", nil)
	require.NoError(t, err)
	_, err = gw.Invoke(context.Background(), "text_to_speech", nil, proofFor(outcome.Requirements))
	require.NoError(t, err)

	// rejected call
	outcome, err = gw.Authorize(context.Background(), "list_voices", nil)
	require.NoError(t, err)
	_, err = gw.Invoke(context.Background(), "list_voices", nil, proofFor(outcome.Requirements))
	require.NoError(t, err)

	entries := led.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "text_to_speech", entries[0].Tool)
	assert.Equal(t, ledger.OutcomeSettled, entries[0].Outcome)
	assert.Equal(t, "list_voices", entries[1].Tool)
	assert.Equal(t, ledger.OutcomeFailed, entries[1].Outcome)
	assert.True(t, led.TotalSettled().Equal(decimal.RequireFromString("0.10")))
}
