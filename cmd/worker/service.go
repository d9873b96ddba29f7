package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/pgwallah/pgwallah-backend/pkg/db"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/pubsub"
	"github.com/pgwallah/pgwallah-backend/pkg/redis"
	"github.com/pgwallah/pgwallah-backend/pkg/storage/gcs"
)

type envelopeProcessor interface {
	Process(ctx context.Context, envelope outbox.PayloadEnvelope) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	DB           *db.Client
	Redis        *redis.Client
	PubSub       *pubsub.Client
	GCS          *gcs.Client
	Subscription *gcppubsub.Subscriber
	Receipts     envelopeProcessor
}

type Service struct {
	logg         *logger.Logger
	db           *db.Client
	redis        *redis.Client
	pubsub       *pubsub.Client
	gcs          *gcs.Client
	subscription *gcppubsub.Subscriber
	receipts     envelopeProcessor
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.GCS == nil {
		return nil, errors.New("gcs client is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("receipts subscription is required")
	}
	if params.Receipts == nil {
		return nil, errors.New("receipts consumer is required")
	}
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		redis:        params.Redis,
		pubsub:       params.PubSub,
		gcs:          params.GCS,
		subscription: params.Subscription,
		receipts:     params.Receipts,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "gcs", s.gcs.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run consumes the payment events subscription until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.handle(innerCtx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message should be acked.
func (s *Service) handle(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		s.logg.Error(logCtx, "worker.invalid_envelope", err)
		return true
	}
	if err := s.receipts.Process(logCtx, envelope); err != nil {
		s.logg.Error(logCtx, "worker.receipt_failed", err)
		return false
	}
	return true
}
