package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ReminderGuard makes sure each attendee gets at most one reminder per
// event even though the reminder window is wider than the job interval.
type ReminderGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewReminderGuard(client *redis.Client, ttl time.Duration) *ReminderGuard {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ReminderGuard{Client: client, TTL: ttl}
}

func reminderKey(eventID int64, email string) string {
	return fmt.Sprintf("reminder_sent:%d:%s", eventID, strings.ToLower(email))
}

// Claim marks the reminder as sent. It reports false when it was already claimed.
func (g *ReminderGuard) Claim(ctx context.Context, eventID int64, email string) (bool, error) {
	return g.Client.SetNX(ctx, reminderKey(eventID, email), time.Now().UTC().Format(time.RFC3339), g.TTL).Result()
}

// Release drops a claim so a failed send can be retried on the next run.
func (g *ReminderGuard) Release(ctx context.Context, eventID int64, email string) error {
	return g.Client.Del(ctx, reminderKey(eventID, email)).Err()
}
