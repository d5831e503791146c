package database

import (
	"context"
	"fmt"
	"time"

	"ms-registration/internal/models"

	"github.com/uptrace/bun"
)

// Seed inserts a small set of sample events when the events table is empty.
// It returns the number of events inserted.
func Seed(ctx context.Context, db bun.IDB, now time.Time) (int, error) {
	existing, err := db.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	events := []models.Event{
		{
			Title:       "Go Meetup: Concurrency Patterns",
			Description: "An evening of talks on goroutines, channels and locking.",
			Location:    "Main Hall",
			StartsAt:    now.AddDate(0, 0, 14),
			Capacity:    100,
			Status:      models.EventStatusPublished,
		},
		{
			Title:       "Database Internals Workshop",
			Description: "Hands-on session on row locks and isolation levels.",
			Location:    "Room 2B",
			StartsAt:    now.Add(24 * time.Hour),
			Capacity:    4,
			Status:      models.EventStatusPublished,
		},
		{
			Title:    "Product Launch (draft)",
			Location: "Online",
			StartsAt: now.AddDate(0, 1, 0),
			Capacity: 250,
			Status:   models.EventStatusDraft,
		},
	}
	for i := range events {
		events[i].CreatedAt = now
		events[i].UpdatedAt = now
	}

	if _, err := db.NewInsert().Model(&events).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert seed events: %w", err)
	}
	return len(events), nil
}
