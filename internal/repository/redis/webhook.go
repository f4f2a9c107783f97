package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookKeyPrefix = "storefront:webhook:"

// WebhookDeduplicator implements repository.WebhookDeduplicator using Redis.
type WebhookDeduplicator struct {
	client redis.Cmdable
}

// NewWebhookDeduplicator creates a new Redis-backed webhook deduplicator.
func NewWebhookDeduplicator(client redis.Cmdable) *WebhookDeduplicator {
	return &WebhookDeduplicator{client: client}
}

func webhookKey(paymentID, status string) string {
	return webhookKeyPrefix + paymentID + ":" + status
}

// FirstSeen records the notification with SET NX and reports whether this
// call created the key.
func (d *WebhookDeduplicator) FirstSeen(ctx context.Context, paymentID, status string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, webhookKey(paymentID, status), time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx webhook: %w", err)
	}
	return ok, nil
}

// Forget deletes the record of a notification.
func (d *WebhookDeduplicator) Forget(ctx context.Context, paymentID, status string) error {
	if err := d.client.Del(ctx, webhookKey(paymentID, status)).Err(); err != nil {
		return fmt.Errorf("redis del webhook: %w", err)
	}
	return nil
}
