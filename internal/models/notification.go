package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationRegistrationRecorded = "registration.recorded"
	NotificationWaitlistPromoted     = "registration.promoted"
	NotificationEventReminder        = "event.reminder"
	NotificationEventCancelled       = "event.cancelled"
)

type RegistrationNotification struct {
	EventID          int64  `json:"event_id"`
	EventTitle       string `json:"event_title"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	WaitlistPosition *int64 `json:"waitlist_position,omitempty"`
}

type PromotionNotification struct {
	EventID    int64  `json:"event_id"`
	EventTitle string `json:"event_title"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

type ReminderNotification struct {
	EventID    int64     `json:"event_id"`
	EventTitle string    `json:"event_title"`
	Location   string    `json:"location,omitempty"`
	StartsAt   time.Time `json:"starts_at"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
}

type EventCancelledNotification struct {
	EventID            int64  `json:"event_id"`
	EventTitle         string `json:"event_title"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	RegistrationStatus string `json:"registration_status"`
}

// Envelope is the message body published for every notification.
type Envelope struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func NewEnvelope(kind string, payload any, at time.Time) Envelope {
	return Envelope{
		ID:         uuid.New(),
		Type:       kind,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}
}

// Registrant is an attendee joined with their registration status for one event.
type Registrant struct {
	RegistrationID int64  `bun:"registration_id" json:"registration_id"`
	EventID        int64  `bun:"event_id" json:"event_id"`
	Status         string `bun:"status" json:"status"`
	Email          string `bun:"email" json:"email"`
	Name           string `bun:"name" json:"name"`
}
