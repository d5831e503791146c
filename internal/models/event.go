package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
	EventStatusCompleted = "completed"
)

var EventStatuses = []string{EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusCompleted}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description,omitempty"`
	Location    string    `bun:"location" json:"location,omitempty"`
	StartsAt    time.Time `bun:"starts_at,notnull" json:"starts_at"`
	Capacity    int       `bun:"capacity,notnull" json:"capacity"`
	Status      string    `bun:"status,notnull" json:"status"`
	// WaitlistSequence is the highest waitlist position ever issued for the event.
	WaitlistSequence int64     `bun:"waitlist_sequence,notnull" json:"-"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// AcceptsRegistrations reports whether new registrations may be taken at the given instant.
func (e *Event) AcceptsRegistrations(now time.Time) bool {
	if e.Status == EventStatusCancelled || e.Status == EventStatusCompleted {
		return false
	}
	return now.Before(e.StartsAt)
}

type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"max=255"`
	StartsAt    time.Time `json:"starts_at" validate:"required,future"`
	Capacity    int       `json:"capacity" validate:"required,gt=0"`
	Status      string    `json:"status" validate:"omitempty,oneof=draft published"`
}

type EventStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft published cancelled completed"`
}
