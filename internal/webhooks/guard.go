package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// markTimeout bounds the post-commit write; it runs detached from the request.
const markTimeout = 2 * time.Second

// guardStore is the subset of the redis client the guard needs.
type guardStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	WebhookEventKey(gateway, eventID string) string
}

// Guard remembers gateway event ids that the engine already committed so
// redeliveries skip the database. Keys are written only after a successful
// apply; the unique constraints in the engine stay authoritative.
type Guard struct {
	store guardStore
	ttl   time.Duration
}

func NewGuard(store guardStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Seen reports whether the event was applied by an earlier delivery.
func (g *Guard) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	found, err := g.store.Exists(ctx, g.store.WebhookEventKey(gateway, eventID))
	if err != nil {
		return false, fmt.Errorf("read webhook key: %w", err)
	}
	return found, nil
}

// MarkApplied records a committed event. The write ignores cancellation of
// ctx: the gateway hanging up after commit must not cost the fast path.
func (g *Guard) MarkApplied(ctx context.Context, gateway, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if err := g.store.Set(ctx, g.store.WebhookEventKey(gateway, eventID), "1", g.ttl); err != nil {
		return fmt.Errorf("set webhook key: %w", err)
	}
	return nil
}
