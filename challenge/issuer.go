// Package challenge derives payment requirements for metered tools and
// mints the per-call correlation tokens that bind a payment proof to
// exactly one invocation attempt.
package challenge

import (
	"fmt"

	"github.com/adamanz/payment-gateway-mcp/types"
)

// Issuer looks up tool prices and issues fresh PaymentRequirements.
// It has no side effects beyond generating correlation tokens; replay
// tracking belongs to the gate.
type Issuer struct {
	catalog map[string]types.ToolDescriptor
	order   []string

	payTo   string
	network types.Network
	asset   string

	// EIP-712 domain of the asset, surfaced in requirements extra.
	assetName    string
	assetVersion string

	timeoutSeconds int
}

// NewIssuer builds an Issuer over a fixed tool catalog. The catalog,
// recipient, and network are immutable for the issuer's lifetime.
func NewIssuer(tools []types.ToolDescriptor, payTo string, network types.Network, asset string) (*Issuer, error) {
	if payTo == "" {
		return nil, types.NewGatewayError(types.ErrConfigError, "payment recipient is required")
	}
	if !network.IsSupported() {
		return nil, types.NewGatewayError(types.ErrConfigError, fmt.Sprintf("unsupported network: %s", network))
	}
	if asset == "" {
		asset = network.DefaultAsset()
	}

	catalog := make(map[string]types.ToolDescriptor, len(tools))
	order := make([]string, 0, len(tools))
	for _, d := range tools {
		if d.Name == "" {
			return nil, types.NewGatewayError(types.ErrConfigError, "tool descriptor without a name")
		}
		if _, dup := catalog[d.Name]; dup {
			return nil, types.NewGatewayError(types.ErrConfigError, fmt.Sprintf("duplicate tool: %s", d.Name))
		}
		catalog[d.Name] = d
		order = append(order, d.Name)
	}

	return &Issuer{
		catalog:        catalog,
		order:          order,
		payTo:          payTo,
		network:        network,
		asset:          asset,
		assetName:      "USDC",
		assetVersion:   "2",
		timeoutSeconds: 60,
	}, nil
}

// IssueChallenge mints fresh PaymentRequirements for one invocation of
// the named tool. The resource identifier embeds a new correlation
// token, so the returned requirements can never match a proof created
// for a different call.
func (i *Issuer) IssueChallenge(tool string) (*types.PaymentRequirements, error) {
	d, ok := i.catalog[tool]
	if !ok {
		return nil, types.NewGatewayError(types.ErrUnknownTool, fmt.Sprintf("unknown tool: %s", tool))
	}

	return &types.PaymentRequirements{
		Scheme:            types.SchemeExact,
		Network:           i.network.String(),
		MaxAmountRequired: d.AtomicPrice(),
		Resource:          ResourceFor(tool, MintToken()),
		Description:       d.Description,
		MimeType:          "application/json",
		PayTo:             i.payTo,
		MaxTimeoutSeconds: i.timeoutSeconds,
		Asset:             i.asset,
		Extra: map[string]interface{}{
			"name":    i.assetName,
			"version": i.assetVersion,
		},
	}, nil
}

// Descriptor returns the catalog entry for a tool.
func (i *Issuer) Descriptor(tool string) (types.ToolDescriptor, bool) {
	d, ok := i.catalog[tool]
	return d, ok
}

// Tools returns the catalog in registration order.
func (i *Issuer) Tools() []types.ToolDescriptor {
	out := make([]types.ToolDescriptor, 0, len(i.order))
	for _, name := range i.order {
		out = append(out, i.catalog[name])
	}
	return out
}

// Network returns the settlement network the issuer charges on.
func (i *Issuer) Network() types.Network {
	return i.network
}
