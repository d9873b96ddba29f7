package main

import (
	"context"
	"fmt"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/razorpay"
	"github.com/pgwallah/pgwallah-backend/pkg/square"
)

// buildGateways registers every gateway whose credentials are configured.
func buildGateways(ctx context.Context, cfg *config.Config, logg *logger.Logger, gatewayMetrics *metrics.GatewayMetrics) (*gateway.Registry, error) {
	var adapters []gateway.Gateway

	if cfg.Razorpay.Enabled() {
		client, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
		if err != nil {
			return nil, fmt.Errorf("razorpay client: %w", err)
		}
		adapter, err := gateway.NewRazorpay(gateway.RazorpayParams{
			Client:        client,
			KeySecret:     client.KeySecret(),
			WebhookSecret: client.WebhookSecret(),
			UPIVPA:        cfg.Razorpay.UPIVPA,
			PayeeName:     cfg.Razorpay.PayeeName,
			Timeout:       cfg.Gateway.Timeout,
			Metrics:       gatewayMetrics,
		})
		if err != nil {
			return nil, fmt.Errorf("razorpay adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Square.Enabled() {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		adapter, err := gateway.NewSquare(gateway.SquareParams{
			Client:          client,
			SignatureKey:    client.SigningSecret(),
			NotificationURL: client.NotificationURL(),
			CheckoutURL:     cfg.Square.CheckoutURL,
			LocationID:      cfg.Square.LocationID,
			Timeout:         cfg.Gateway.Timeout,
			Metrics:         gatewayMetrics,
		})
		if err != nil {
			return nil, fmt.Errorf("square adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	return gateway.NewRegistry(cfg.Gateway.Default, adapters...)
}
