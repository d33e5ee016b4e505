// Package config loads the gateway's environment configuration once at
// startup. The resulting Config is immutable for the process lifetime.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/adamanz/payment-gateway-mcp/types"
)

const (
	defaultNetwork        = types.NetworkBaseSepolia
	defaultPricePerCall   = "0.10"
	defaultFacilitatorURL = "https://x402.org/facilitator"
	defaultToolServerURL  = "http://localhost:8000"
	defaultVerifyTimeout  = 30 * time.Second
)

// Config holds everything the gateway needs: where payments go, which
// network they settle on, where proofs are verified, and where paid
// calls are forwarded.
type Config struct {
	// PaymentRecipient is the address tool payments are sent to.
	PaymentRecipient string `validate:"required,eth_addr"`

	// UserPrivateKey, when set, lets the gateway sign payment proofs on
	// the caller's behalf instead of requiring proofs in request metadata.
	UserPrivateKey string

	Network      types.Network
	Asset        string
	PricePerCall decimal.Decimal

	FacilitatorURL string `validate:"required,url"`
	ToolServerURL  string `validate:"required,url"`

	VerifyTimeout time.Duration

	LogLevel      string
	EnableMetrics bool
}

var validate = validator.New()

// Load reads configuration from the environment, consulting a .env
// file when present.
func Load() (*Config, error) {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	cfg := &Config{
		PaymentRecipient: os.Getenv("PAYMENT_RECIPIENT"),
		UserPrivateKey:   os.Getenv("USER_PRIVATE_KEY"),
		Network:          types.Network(envOr("X402_NETWORK", string(defaultNetwork))),
		Asset:            os.Getenv("X402_ASSET"),
		FacilitatorURL:   envOr("FACILITATOR_URL", defaultFacilitatorURL),
		ToolServerURL:    envOr("ELEVENLABS_SERVER_URL", defaultToolServerURL),
		VerifyTimeout:    defaultVerifyTimeout,
		LogLevel:         envOr("LOG_LEVEL", "info"),
		EnableMetrics:    os.Getenv("ENABLE_METRICS") == "true",
	}

	price, err := decimal.NewFromString(envOr("PRICE_PER_CALL", defaultPricePerCall))
	if err != nil {
		return nil, types.NewGatewayError(types.ErrConfigError, fmt.Sprintf("invalid PRICE_PER_CALL: %v", err))
	}
	if price.IsNegative() {
		return nil, types.NewGatewayError(types.ErrConfigError, "PRICE_PER_CALL cannot be negative")
	}
	cfg.PricePerCall = price

	if raw := os.Getenv("VERIFY_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, types.NewGatewayError(types.ErrConfigError, fmt.Sprintf("invalid VERIFY_TIMEOUT: %s", raw))
		}
		cfg.VerifyTimeout = d
	}

	if !cfg.Network.IsSupported() {
		return nil, types.NewGatewayError(types.ErrConfigError, fmt.Sprintf("unsupported network: %s", cfg.Network))
	}
	if cfg.Asset == "" {
		cfg.Asset = cfg.Network.DefaultAsset()
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, types.NewGatewayError(types.ErrConfigError, fmt.Sprintf("invalid configuration: %v", err))
	}
	return cfg, nil
}

// Tools builds the metered tool catalog, each priced at PricePerCall.
func (c *Config) Tools() []types.ToolDescriptor {
	paid := []struct {
		name, description string
	}{
		{"list_voices", "List all available voices with their details."},
		{"text_to_speech", "Convert text to speech and save it to a file."},
		{"get_voice_settings", "Get the default settings for a specific voice."},
		{"check_api_status", "Check if the speech API is configured and accessible."},
	}

	out := make([]types.ToolDescriptor, 0, len(paid))
	for _, t := range paid {
		out = append(out, types.ToolDescriptor{
			Name:        t.name,
			Description: t.description,
			Price:       c.PricePerCall,
			Network:     c.Network,
		})
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
