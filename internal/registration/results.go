package registration

import (
	"errors"
	"fmt"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrDuplicateRegistration = errors.New("attendee already registered for this event")
	ErrForbidden             = errors.New("registration belongs to another attendee")
	ErrInvalidStatus         = errors.New("invalid registration or payment status")
	ErrNotConfirmed          = errors.New("registration is not confirmed")
)

// errRejected unwinds a transaction whose outcome is a business rejection.
// It never leaves this package.
var errRejected = errors.New("registration rejected")

type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeWaitlisted Outcome = "waitlisted"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeRejected   Outcome = "rejected"
)

type Reason string

const (
	ReasonWaitlistFull       Reason = "waitlist_full"
	ReasonOverrideLimit      Reason = "override_limit"
	ReasonRegistrationClosed Reason = "registration_closed"
)

// ReservationResult is exactly one of confirmed, waitlisted, duplicate or
// rejected. Registration is nil only for rejections.
type ReservationResult struct {
	Outcome          Outcome              `json:"outcome"`
	Reason           Reason               `json:"reason,omitempty"`
	Registration     *models.Registration `json:"registration,omitempty"`
	AttendeeCreated  bool                 `json:"attendee_created"`
	WaitlistCapacity int                  `json:"waitlist_capacity,omitempty"`
}

func (r *ReservationResult) Message() string {
	switch r.Outcome {
	case OutcomeDuplicate:
		return "You are already registered for this event. Your attendee information was updated."
	case OutcomeConfirmed:
		return "Registration completed successfully." + r.attendeeNote()
	case OutcomeWaitlisted:
		return fmt.Sprintf("Event is full. You were added to the waitlist at position %d.", position(r.Registration)) + r.attendeeNote()
	case OutcomeRejected:
		return rejectionMessage(r.Reason, r.WaitlistCapacity)
	}
	return ""
}

func (r *ReservationResult) attendeeNote() string {
	if r.AttendeeCreated {
		return " Your information was saved to the database."
	}
	return " Your information was updated in the database."
}

// CancellationResult reports a cancellation and any promotion it caused.
type CancellationResult struct {
	Registration     *models.Registration `json:"registration"`
	PriorStatus      string               `json:"prior_status"`
	AlreadyCancelled bool                 `json:"already_cancelled"`
	Refunded         bool                 `json:"refunded"`
	Promoted         *models.Registration `json:"promoted,omitempty"`
	PromotedName     string               `json:"promoted_name,omitempty"`
}

func (r *CancellationResult) Message() string {
	switch {
	case r.AlreadyCancelled:
		return "This registration is already cancelled."
	case r.PriorStatus == models.StatusWaitlisted:
		return "You have been removed from the waitlist."
	}
	msg := "Registration cancelled."
	if r.Refunded {
		msg += " A refund has been initiated."
	}
	return msg
}

// OverrideResult is confirmed or rejected with ReasonOverrideLimit.
type OverrideResult struct {
	Outcome      Outcome              `json:"outcome"`
	Reason       Reason               `json:"reason,omitempty"`
	Registration *models.Registration `json:"registration,omitempty"`
	Reactivated  bool                 `json:"reactivated"`
	PriorStatus  string               `json:"prior_status,omitempty"`
}

func (r *OverrideResult) Message() string {
	if r.Outcome == OutcomeRejected {
		return rejectionMessage(r.Reason, 0)
	}
	if r.Reactivated {
		return fmt.Sprintf("Existing %s registration was force-confirmed by an admin.", r.PriorStatus)
	}
	return "Attendee was force-added to the event."
}

type StatusUpdateResult struct {
	Registration *models.Registration `json:"registration"`
	PriorStatus  string               `json:"prior_status"`
	Promoted     *models.Registration `json:"promoted,omitempty"`
	PromotedName string               `json:"promoted_name,omitempty"`
}

func (r *StatusUpdateResult) Message() string {
	msg := "Registration updated."
	if r.PromotedName != "" {
		msg += fmt.Sprintf(" %s was promoted from the waitlist.", r.PromotedName)
	}
	return msg
}

func rejectionMessage(reason Reason, waitlistCapacity int) string {
	switch reason {
	case ReasonWaitlistFull:
		return fmt.Sprintf("This event is fully booked and the waitlist (%d spots) is also full.", waitlistCapacity)
	case ReasonOverrideLimit:
		return fmt.Sprintf("Override limit reached. Admins may only force-add up to %d users per event.", ledger.MaxAdminOverrides)
	case ReasonRegistrationClosed:
		return "Registration is closed for this event."
	}
	return "Registration was rejected."
}

func position(reg *models.Registration) int64 {
	if reg == nil || reg.WaitlistPosition == nil {
		return 0
	}
	return *reg.WaitlistPosition
}
