package registration

import (
	"context"
	"errors"
	"fmt"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
	"ms-registration/internal/registration/db"
)

type ReserveRequest struct {
	EventID  int64
	Attendee models.AttendeeDetails
}

// Reserve records a paid registration for the attendee. The attendee gets a
// confirmed seat while confirmed registrations are below capacity, then a
// waitlist slot while the waitlist has room, and is rejected after that.
// A registration that already exists in any status is reported as a
// duplicate, and the attendee's details are still updated.
//
// Business outcomes are returned in the result; the error is reserved for
// missing events, storage failures and the unique index firing.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*ReservationResult, error) {
	var (
		result   *ReservationResult
		event    *models.Event
		attendee *models.Attendee
	)
	now := s.now()

	err := s.Store.RunInTx(ctx, func(ctx context.Context, tx *db.Tx) error {
		var err error
		event, err = tx.LockEvent(ctx, req.EventID)
		if err != nil {
			return eventLookupError(req.EventID, err)
		}
		if !event.AcceptsRegistrations(now) {
			result = &ReservationResult{Outcome: OutcomeRejected, Reason: ReasonRegistrationClosed}
			return errRejected
		}

		var created bool
		attendee, created, err = tx.UpsertAttendee(ctx, req.Attendee, now)
		if err != nil {
			return fmt.Errorf("upsert attendee: %w", err)
		}

		existing, err := tx.LockRegistrationFor(ctx, event.ID, attendee.ID)
		if err != nil {
			return fmt.Errorf("lock existing registration: %w", err)
		}
		if existing != nil {
			result = &ReservationResult{Outcome: OutcomeDuplicate, Registration: existing, AttendeeCreated: created}
			return nil
		}

		reg := &models.Registration{
			EventID:       event.ID,
			AttendeeID:    attendee.ID,
			PaymentStatus: models.PaymentPaid,
			RegisteredAt:  now,
			UpdatedAt:     now,
		}

		confirmed, err := tx.LockRegistrations(ctx, event.ID, models.StatusConfirmed)
		if err != nil {
			return fmt.Errorf("lock confirmed registrations: %w", err)
		}
		if ledger.ConfirmedCount(confirmed) < event.Capacity {
			reg.Status = models.StatusConfirmed
		} else {
			waitlisted, err := tx.LockRegistrations(ctx, event.ID, models.StatusWaitlisted)
			if err != nil {
				return fmt.Errorf("lock waitlisted registrations: %w", err)
			}
			waitlistCap := ledger.WaitlistCapacity(event.Capacity)
			if ledger.WaitlistedCount(waitlisted) >= waitlistCap {
				result = &ReservationResult{Outcome: OutcomeRejected, Reason: ReasonWaitlistFull, WaitlistCapacity: waitlistCap}
				return errRejected
			}
			next := ledger.NextWaitlistPosition(event.WaitlistSequence, waitlisted)
			if err := tx.RecordWaitlistPosition(ctx, event, next); err != nil {
				return fmt.Errorf("record waitlist position: %w", err)
			}
			reg.Status = models.StatusWaitlisted
			reg.WaitlistPosition = &next
		}

		if err := tx.InsertRegistration(ctx, reg); err != nil {
			if errors.Is(err, db.ErrUniqueViolation) {
				return ErrDuplicateRegistration
			}
			return fmt.Errorf("insert registration: %w", err)
		}

		result = &ReservationResult{Outcome: Outcome(reg.Status), Registration: reg, AttendeeCreated: created}
		return nil
	})
	if err != nil && !errors.Is(err, errRejected) {
		return nil, err
	}

	switch result.Outcome {
	case OutcomeConfirmed, OutcomeWaitlisted:
		s.Logger.LogRegistration("RESERVE", result.Registration.ID,
			fmt.Sprintf("%s for %s on event %d", result.Outcome, attendee.Email, event.ID))
		s.committed(ctx, event.ID)
		s.notifyRecorded(ctx, event, attendee, result.Registration)
	case OutcomeDuplicate:
		s.Logger.Info("REGISTRATION", fmt.Sprintf("Duplicate registration attempt by %s on event %d", attendee.Email, event.ID))
	case OutcomeRejected:
		s.Logger.Info("REGISTRATION", fmt.Sprintf("Registration on event %d rejected: %s", req.EventID, result.Reason))
	}
	return result, nil
}
