package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// X402Version is the version of the x402 protocol spoken with the facilitator.
const X402Version = 1

// SchemeExact is the only payment scheme the gateway issues challenges for:
// the caller must pay exactly the tool's listed price.
const SchemeExact = "exact"

// USDCDecimals is the number of decimals used when converting a display
// price ("0.10") into atomic token units ("100000").
const USDCDecimals = 6

// ToolDescriptor describes a metered tool: its unique name, the price
// charged per invocation, and the network the payment settles on.
// Descriptors are built once at startup and never mutated.
type ToolDescriptor struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Network     Network         `json:"network" validate:"required"`
}

// AtomicPrice returns the price in atomic units of the settlement asset.
func (d ToolDescriptor) AtomicPrice() string {
	return d.Price.Shift(USDCDecimals).String()
}

// PaymentRequirements defines what a caller must pay before a tool
// invocation is dispatched. A fresh instance is minted per invocation
// attempt; the Resource field carries the per-call correlation token,
// so requirements are never valid for two different invocations.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use (e.g. "exact").
	Scheme string `json:"scheme"`

	// Network of the blockchain to send payment on.
	Network string `json:"network"`

	// Amount required, in atomic units of the asset.
	// Represented as a string because Go does not support uint256.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource being paid for: mcp://tool/<name>#<correlation token>.
	Resource string `json:"resource"`

	// Description of the tool being purchased.
	Description string `json:"description"`

	// MIME type of the tool response.
	MimeType string `json:"mimeType"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo"`

	// Maximum time in seconds for verification and settlement to complete.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Address of the EIP-3009 compliant ERC20 contract.
	Asset string `json:"asset"`

	// Extra information specific to the scheme. For "exact" on EVM this
	// carries the EIP-712 domain `name` and `version` of the asset.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Validate checks that the PaymentRequirements contains all required fields.
func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}
	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}
	if pr.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}
	if pr.Resource == "" {
		return fmt.Errorf("paymentRequirements.resource is required")
	}
	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}
	if pr.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}
	if pr.MaxTimeoutSeconds <= 0 {
		return fmt.Errorf("paymentRequirements.maxTimeoutSeconds must be greater than 0")
	}
	return nil
}

// PaymentPayload is the signed payment proof a caller submits against a
// challenge. The Payload field is an opaque base64-encoded, chain-specific
// signed artifact; Resource binds the proof to the exact requirements it
// was created against. A payload is accepted at most once.
type PaymentPayload struct {
	X402Version int `json:"x402Version"`

	Scheme string `json:"scheme"`

	Network string `json:"network"`

	// Resource copied from the challenge this proof answers. The gateway
	// extracts the correlation token from it to look up the pending
	// requirements.
	Resource string `json:"resource"`

	// Base64-encoded signed payment artifact.
	Payload string `json:"payload"`
}

// Validate checks that the PaymentPayload contains all required fields.
func (p *PaymentPayload) Validate() error {
	if p.X402Version <= 0 {
		return fmt.Errorf("x402Version must be greater than 0")
	}
	if p.Resource == "" {
		return fmt.Errorf("paymentPayload.resource is required")
	}
	if p.Payload == "" {
		return fmt.Errorf("paymentPayload.payload is required")
	}
	return nil
}

// VerifyRequest is the body sent to the facilitator's /verify and /settle
// endpoints.
type VerifyRequest struct {
	X402Version int `json:"x402Version"`

	PaymentPayload PaymentPayload `json:"paymentPayload"`

	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// Validate checks that the VerifyRequest contains all required fields.
func (v *VerifyRequest) Validate() error {
	if v.X402Version <= 0 {
		return fmt.Errorf("x402Version must be greater than 0")
	}
	if err := v.PaymentPayload.Validate(); err != nil {
		return err
	}
	return v.PaymentRequirements.Validate()
}

// VerifyResponse is the facilitator's verification result.
type VerifyResponse struct {
	// Indicates whether the payment is valid.
	IsValid bool `json:"isValid"`

	// Provides a reason if the payment is invalid, otherwise empty.
	InvalidReason string `json:"invalidReason,omitempty"`

	// Address recovered as the payer.
	Payer string `json:"payer,omitempty"`
}

// SettlementResult is the facilitator's settlement result.
type SettlementResult struct {
	Success     bool   `json:"success"`
	TxHash      string `json:"txHash,omitempty"`
	NetworkID   string `json:"networkId,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// SettlementReceipt is the typed record of a completed charge, returned
// directly by the gate on acceptance. Immutable once issued.
type SettlementReceipt struct {
	Tool    string          `json:"tool"`
	Amount  decimal.Decimal `json:"amount"`
	TxHash  string          `json:"transactionHash"`
	Network string          `json:"network"`
	Payer   string          `json:"payer,omitempty"`
}

// EIP3009Authorization is the TransferWithAuthorization message signed by
// the payer's wallet.
type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256, atomic units
	ValidAfter  string `json:"validAfter"`  // uint256 timestamp
	ValidBefore string `json:"validBefore"` // uint256 timestamp
	Nonce       string `json:"nonce"`       // bytes32
}

// EIP3009Payload is the decoded form of PaymentPayload.Payload for EVM
// payments using EIP-3009.
type EIP3009Payload struct {
	Signature     string               `json:"signature"` // 65-byte ECDSA signature (r,s,v)
	Authorization EIP3009Authorization `json:"authorization"`
}
