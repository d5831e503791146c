package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-registration/internal/ledger"

	"github.com/go-redis/redis/v8"
)

// AvailabilityCache keeps short-lived ledger summaries so the public
// availability endpoint does not hit the database on every poll. Writers
// invalidate the key after each committed change.
type AvailabilityCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{Client: client, TTL: ttl}
}

func availabilityKey(eventID int64) string {
	return fmt.Sprintf("availability:%d", eventID)
}

// Get returns nil, nil on a miss.
func (c *AvailabilityCache) Get(ctx context.Context, eventID int64) (*ledger.Availability, error) {
	raw, err := c.Client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var a ledger.Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		// A corrupt entry is dropped and treated as a miss.
		_ = c.Client.Del(ctx, availabilityKey(eventID)).Err()
		return nil, nil
	}
	return &a, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, a ledger.Availability) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, availabilityKey(a.EventID), raw, c.TTL).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID int64) error {
	return c.Client.Del(ctx, availabilityKey(eventID)).Err()
}
