// Command payment-gateway-mcp runs the payment-gated MCP tool server
// over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	paygate "github.com/adamanz/payment-gateway-mcp"
	"github.com/adamanz/payment-gateway-mcp/challenge"
	"github.com/adamanz/payment-gateway-mcp/config"
	"github.com/adamanz/payment-gateway-mcp/dispatch"
	"github.com/adamanz/payment-gateway-mcp/facilitator"
	"github.com/adamanz/payment-gateway-mcp/ledger"
	"github.com/adamanz/payment-gateway-mcp/logger"
	"github.com/adamanz/payment-gateway-mcp/mcpserver"
	"github.com/adamanz/payment-gateway-mcp/metrics"
	"github.com/adamanz/payment-gateway-mcp/wallet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewZapLogger(cfg.LogLevel)

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.EnableMetrics {
		rec = metrics.NewPrometheusRecorder()
	}

	issuer, err := challenge.NewIssuer(cfg.Tools(), cfg.PaymentRecipient, cfg.Network, cfg.Asset)
	if err != nil {
		return err
	}

	gw := paygate.New(
		issuer,
		facilitator.NewClient(cfg.FacilitatorURL, cfg.VerifyTimeout),
		ledger.New(),
		dispatch.NewDispatcher(dispatch.NewHTTPExecutor(cfg.ToolServerURL, 0)),
		paygate.WithLogger(log),
		paygate.WithMetrics(rec),
		paygate.WithTimeout(cfg.VerifyTimeout),
	)

	var signer mcpserver.ProofSigner
	if cfg.UserPrivateKey != "" {
		w, err := wallet.NewSigner(cfg.UserPrivateKey)
		if err != nil {
			return err
		}
		log.Info("signing wallet configured", map[string]any{"payer": w.Address()})
		signer = w
	}

	srv := mcpserver.NewServer(gw, signer, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("payment gateway started", map[string]any{
		"recipient":   cfg.PaymentRecipient,
		"network":     cfg.Network.String(),
		"price":       cfg.PricePerCall.String(),
		"facilitator": cfg.FacilitatorURL,
		"toolServer":  cfg.ToolServerURL,
	})

	return srv.Run(ctx, &mcp.StdioTransport{})
}
