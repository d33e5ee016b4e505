package types

// Rejection and error reason codes. Facilitator-supplied reasons are
// propagated verbatim; these cover the conditions the gateway decides
// on its own.
const (
	// -----------------------------
	// CALLER ERRORS
	// -----------------------------
	ErrUnknownTool          = "unknown_tool"
	ErrInvalidArguments     = "invalid_arguments"
	ErrInvalidPayload       = "invalid_payload"
	ErrRequirementsMismatch = "requirements_mismatch"
	ErrProofAlreadyUsed     = "proof_already_used"

	// -----------------------------
	// PAYMENT PATH
	// -----------------------------
	ErrPaymentFailed       = "payment_failed"
	ErrVerifierUnreachable = "verifier_unreachable"
	ErrSettlementFailed    = "settlement_failed"

	// -----------------------------
	// DOWNSTREAM
	// -----------------------------
	ErrDownstreamFailure = "downstream_failure"

	// -----------------------------
	// CONFIGURATION
	// -----------------------------
	ErrConfigError = "config_error"
)

// GatewayError is the typed error returned across package boundaries.
type GatewayError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *GatewayError) Error() string {
	return e.Message
}

// NewGatewayError builds a GatewayError with a formatted message.
func NewGatewayError(code, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message}
}

// ErrorCode extracts the gateway error code from err, or empty if err is
// not a GatewayError.
func ErrorCode(err error) string {
	if ge, ok := err.(*GatewayError); ok {
		return ge.Code
	}
	return ""
}
