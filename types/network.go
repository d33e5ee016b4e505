package types

// Network identifies the blockchain a payment settles on.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
)

// USDC contract addresses per supported network. The gateway prices
// every tool in USDC, so the asset defaults to the network's USDC
// deployment unless overridden in configuration.
var usdcAssets = map[Network]string{
	NetworkBase:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	NetworkBaseSepolia: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	NetworkPolygon:     "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
	NetworkPolygonAmoy: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
}

var chainIDs = map[Network]string{
	NetworkBase:        "8453",
	NetworkBaseSepolia: "84532",
	NetworkPolygon:     "137",
	NetworkPolygonAmoy: "80002",
}

// DefaultAsset returns the USDC contract address for the network,
// or empty if the network is not supported.
func (n Network) DefaultAsset() string {
	return usdcAssets[n]
}

// ChainID returns the EVM chain id as a decimal string.
func (n Network) ChainID() string {
	return chainIDs[n]
}

func (n Network) IsSupported() bool {
	_, ok := chainIDs[n]
	return ok
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia || n == NetworkPolygonAmoy
}

func (n Network) String() string {
	return string(n)
}
