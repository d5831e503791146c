package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	StatusConfirmed  = "confirmed"
	StatusWaitlisted = "waitlisted"
	StatusCancelled  = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

var (
	RegistrationStatuses = []string{StatusConfirmed, StatusWaitlisted, StatusCancelled}
	PaymentStatuses      = []string{PaymentPending, PaymentPaid, PaymentRefunded}
)

// Registration links an attendee to an event. WaitlistPosition is set only
// while Status is waitlisted.
type Registration struct {
	bun.BaseModel `bun:"table:registrations"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID          int64     `bun:"event_id,notnull" json:"event_id"`
	AttendeeID       int64     `bun:"attendee_id,notnull" json:"attendee_id"`
	Status           string    `bun:"status,notnull" json:"status"`
	WaitlistPosition *int64    `bun:"waitlist_position" json:"waitlist_position,omitempty"`
	PaymentStatus    string    `bun:"payment_status,notnull" json:"payment_status"`
	IsAdminOverride  bool      `bun:"is_admin_override,notnull" json:"is_admin_override"`
	RegisteredAt     time.Time `bun:"registered_at,notnull" json:"registered_at"`
	UpdatedAt        time.Time `bun:"updated_at,notnull" json:"updated_at"`

	Attendee *Attendee `bun:"rel:belongs-to,join:attendee_id=id" json:"attendee,omitempty"`
	Event    *Event    `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

type RegistrationFilter struct {
	Status        string `validate:"omitempty,oneof=confirmed waitlisted cancelled"`
	PaymentStatus string `validate:"omitempty,oneof=pending paid refunded"`
}

type StatusUpdateRequest struct {
	Status        string `json:"status" validate:"required,oneof=confirmed waitlisted cancelled"`
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid refunded"`
}

// Card is only format-checked; any well-formed card is accepted.
type Card struct {
	Name   string `json:"card_name" validate:"required,max=255"`
	Number string `json:"card_number" validate:"required,len=16,numeric"`
	Expiry string `json:"expiry" validate:"required,cardexpiry"`
	CVV    string `json:"cvv" validate:"required,min=3,max=4,numeric"`
}

type RegistrationRequest struct {
	AttendeeDetails
	Card Card `json:"card"`
}
