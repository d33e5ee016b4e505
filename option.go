package paygate

import (
	"time"

	"github.com/adamanz/payment-gateway-mcp/logger"
	"github.com/adamanz/payment-gateway-mcp/metrics"
)

type Option func(*Gateway)

func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gateway) {
		g.metrics = r
	}
}

// WithTimeout bounds each facilitator verify/settle call.
func WithTimeout(t time.Duration) Option {
	return func(g *Gateway) {
		if t > 0 {
			g.timeout = t
		}
	}
}
