package paygate

import (
	"encoding/json"

	"github.com/adamanz/payment-gateway-mcp/types"
)

// PaymentInfo is the payment block of a response envelope.
type PaymentInfo struct {
	Amount          string `json:"amount"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// Envelope is the caller-facing response for one invocation. Exactly
// one of Status (challenge), Result (success), or Error (failure) is
// populated; the payment block is present whenever a charge occurred,
// including on downstream failure.
type Envelope struct {
	Status       string                     `json:"status,omitempty"`
	Tool         string                     `json:"tool,omitempty"`
	Amount       string                     `json:"amount,omitempty"`
	Requirements *types.PaymentRequirements `json:"requirements,omitempty"`

	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	Payment *PaymentInfo `json:"payment,omitempty"`
}

// IsError reports whether the envelope represents a non-success
// outcome (challenge or failure).
func (e *Envelope) IsError() bool {
	return e.Result == nil
}

// JSON serializes the envelope.
func (e *Envelope) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// ChallengeEnvelope builds the payment-required response.
func ChallengeEnvelope(desc types.ToolDescriptor, req *types.PaymentRequirements) *Envelope {
	return &Envelope{
		Status:       "payment_required",
		Tool:         desc.Name,
		Amount:       desc.Price.String(),
		Requirements: req,
	}
}

// SuccessEnvelope builds the response for a paid, dispatched call.
func SuccessEnvelope(result json.RawMessage, receipt *types.SettlementReceipt) *Envelope {
	return &Envelope{
		Result:  result,
		Payment: paymentInfo(receipt),
	}
}

// ErrorEnvelope builds a failure response. The receipt may be nil when
// no charge occurred; when present it is never dropped.
func ErrorEnvelope(errMsg string, receipt *types.SettlementReceipt) *Envelope {
	return &Envelope{
		Error:   errMsg,
		Payment: paymentInfo(receipt),
	}
}

func paymentInfo(receipt *types.SettlementReceipt) *PaymentInfo {
	if receipt == nil {
		return nil
	}
	return &PaymentInfo{
		Amount:          receipt.Amount.String(),
		TransactionHash: receipt.TxHash,
	}
}
