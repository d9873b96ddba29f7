package gateway

import (
	"context"
	"time"

	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
)

const defaultTimeout = 15 * time.Second

// caller bounds each outbound request and records its latency.
type caller struct {
	gateway string
	timeout time.Duration
	metrics *metrics.GatewayMetrics
}

func (c caller) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	c.metrics.Observe(c.gateway, op, time.Since(start), err)
	return err
}
