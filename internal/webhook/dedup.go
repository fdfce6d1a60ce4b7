// AngelaMos | 2026
// dedup.go

package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	claimKeyPrefix = "webhook:event:"
	claimTTL       = 24 * time.Hour
)

// EventClaims deduplicates at-least-once webhook delivery by claiming
// event ids in Redis. Claims fail open: if Redis is unreachable the event
// is processed anyway, because handlers are idempotent and a dropped
// event is worse than a reprocessed one.
type EventClaims struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewEventClaims(rdb *redis.Client, logger *slog.Logger) *EventClaims {
	return &EventClaims{rdb: rdb, logger: logger}
}

// Claim attempts to take ownership of an event id. It returns false only
// when another delivery already holds the claim.
func (c *EventClaims) Claim(ctx context.Context, eventID string) bool {
	ok, err := c.rdb.SetNX(ctx, claimKeyPrefix+eventID, 1, claimTTL).Result()
	if err != nil {
		c.logger.Warn("event claim unavailable, processing anyway",
			"event_id", eventID,
			"error", err,
		)
		return true
	}

	return ok
}

// Release frees a claim after a failed handler so the provider's
// redelivery gets processed.
func (c *EventClaims) Release(ctx context.Context, eventID string) {
	if err := c.rdb.Del(ctx, claimKeyPrefix+eventID).Err(); err != nil {
		c.logger.Warn("failed to release event claim",
			"event_id", eventID,
			"error", err,
		)
	}
}
