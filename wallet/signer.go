// Package wallet produces signed payment proofs for payment
// requirements. It is the gateway's client-side signing collaborator:
// given a challenge, it signs an EIP-3009 transferWithAuthorization for
// the exact amount and recipient the challenge names.
package wallet

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/adamanz/payment-gateway-mcp/types"
)

// validity window applied to signed authorizations. validAfter is
// backdated to tolerate clock skew between signer and facilitator.
const (
	validAfterSkew  = 60 * time.Second
	validityWindow  = 10 * time.Minute
	signaturePrefix = "0x"
)

// Signer signs payment proofs with a locally held private key.
type Signer struct {
	key  *ecdsa.PrivateKey
	from string
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Signer{
		key:  key,
		from: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

// Address returns the payer address derived from the signing key.
func (s *Signer) Address() string {
	return s.from
}

// Sign produces a payment proof bound to the given requirements. The
// proof reuses the requirements' resource identifier, so it can only
// ever authorize the single invocation the challenge was minted for.
func (s *Signer) Sign(req *types.PaymentRequirements) (*types.PaymentPayload, error) {
	if err := req.Validate(); err != nil {
		return nil, types.NewGatewayError(types.ErrInvalidPayload, err.Error())
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	auth := types.EIP3009Authorization{
		From:        s.from,
		To:          req.PayTo,
		Value:       req.MaxAmountRequired,
		ValidAfter:  strconv.FormatInt(now.Add(-validAfterSkew).Unix(), 10),
		ValidBefore: strconv.FormatInt(now.Add(validityWindow).Unix(), 10),
		Nonce:       signaturePrefix + hex.EncodeToString(nonce),
	}

	domain := Domain{
		Name:              extraString(req.Extra, "name", "USDC"),
		Version:           extraString(req.Extra, "version", "2"),
		ChainID:           types.Network(req.Network).ChainID(),
		VerifyingContract: req.Asset,
	}
	if domain.ChainID == "" {
		return nil, types.NewGatewayError(types.ErrConfigError, fmt.Sprintf("unsupported network: %s", req.Network))
	}

	digest, err := TransferWithAuthDigest(domain, auth.From, auth.To, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to build digest: %w", err)
	}

	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}
	// contracts expect V as 27/28
	sig[64] += 27

	signed := types.EIP3009Payload{
		Signature:     hexutil.Encode(sig),
		Authorization: auth,
	}
	raw, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	return &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      req.Scheme,
		Network:     req.Network,
		Resource:    req.Resource,
		Payload:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func extraString(extra map[string]interface{}, key, fallback string) string {
	if extra == nil {
		return fallback
	}
	if v, ok := extra[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// DecodePayload decodes the base64 EIP-3009 payload carried inside a
// payment proof.
func DecodePayload(p *types.PaymentPayload) (*types.EIP3009Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	var decoded types.EIP3009Payload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("invalid EIP-3009 payload: %w", err)
	}
	return &decoded, nil
}
