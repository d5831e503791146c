package registration

import (
	"context"
	"fmt"
	"time"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
	"ms-registration/internal/registration/db"
)

// CancelRegistration cancels a registration on behalf of an operator,
// leaving its payment status as it is.
func (s *Service) CancelRegistration(ctx context.Context, eventID, registrationID int64) (*CancellationResult, error) {
	return s.cancel(ctx, eventID, registrationID, nil, func(reg *models.Registration) string {
		return reg.PaymentStatus
	})
}

// CancelOwnRegistration cancels a registration held by the attendee with the
// given email. A paid registration is moved to refunded in the same
// transaction.
func (s *Service) CancelOwnRegistration(ctx context.Context, eventID, registrationID int64, email string) (*CancellationResult, error) {
	owner := func(ctx context.Context, tx *db.Tx, reg *models.Registration) error {
		attendee, err := tx.Attendee(ctx, reg.AttendeeID)
		if err != nil {
			return fmt.Errorf("load attendee %d: %w", reg.AttendeeID, err)
		}
		if attendee.Email != email {
			return ErrForbidden
		}
		return nil
	}
	return s.cancel(ctx, eventID, registrationID, owner, func(reg *models.Registration) string {
		if reg.PaymentStatus == models.PaymentPaid {
			return models.PaymentRefunded
		}
		return reg.PaymentStatus
	})
}

func (s *Service) cancel(
	ctx context.Context,
	eventID, registrationID int64,
	authorize func(ctx context.Context, tx *db.Tx, reg *models.Registration) error,
	payment func(reg *models.Registration) string,
) (*CancellationResult, error) {
	var (
		result *CancellationResult
		event  *models.Event
	)
	now := s.now()

	err := s.Store.RunInTx(ctx, func(ctx context.Context, tx *db.Tx) error {
		var err error
		event, err = tx.LockEvent(ctx, eventID)
		if err != nil {
			return eventLookupError(eventID, err)
		}
		reg, err := tx.LockRegistration(ctx, event.ID, registrationID)
		if err != nil {
			return registrationLookupError(registrationID, err)
		}
		if authorize != nil {
			if err := authorize(ctx, tx, reg); err != nil {
				return err
			}
		}
		result, err = s.cancelLocked(ctx, tx, event, reg, payment(reg), now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cancelled(ctx, event, result)
	return result, nil
}

// cancelLocked cancels reg, which the caller holds locked together with its
// event, and hands the freed seat to the head of the waitlist when reg was
// confirmed. An already cancelled registration is left untouched.
func (s *Service) cancelLocked(ctx context.Context, tx *db.Tx, event *models.Event, reg *models.Registration, paymentStatus string, now time.Time) (*CancellationResult, error) {
	result := &CancellationResult{Registration: reg, PriorStatus: reg.Status}

	if reg.Status == models.StatusCancelled {
		result.AlreadyCancelled = true
		return result, nil
	}

	result.Refunded = reg.PaymentStatus != models.PaymentRefunded && paymentStatus == models.PaymentRefunded
	reg.Status = models.StatusCancelled
	reg.WaitlistPosition = nil
	reg.PaymentStatus = paymentStatus
	reg.UpdatedAt = now
	if err := tx.UpdateRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("cancel registration %d: %w", reg.ID, err)
	}

	if result.PriorStatus != models.StatusConfirmed {
		return result, nil
	}

	waitlisted, err := tx.LockRegistrations(ctx, event.ID, models.StatusWaitlisted)
	if err != nil {
		return nil, fmt.Errorf("lock waitlist: %w", err)
	}
	next := ledger.NextInQueue(waitlisted)
	if next == nil {
		return result, nil
	}

	next.Status = models.StatusConfirmed
	next.WaitlistPosition = nil
	next.UpdatedAt = now
	if err := tx.UpdateRegistration(ctx, next); err != nil {
		return nil, fmt.Errorf("promote registration %d: %w", next.ID, err)
	}
	attendee, err := tx.Attendee(ctx, next.AttendeeID)
	if err != nil {
		return nil, fmt.Errorf("load promoted attendee: %w", err)
	}
	next.Attendee = attendee
	result.Promoted = next
	result.PromotedName = attendee.Name
	return result, nil
}

// cancelled runs the post-commit side effects of a cancellation.
func (s *Service) cancelled(ctx context.Context, event *models.Event, result *CancellationResult) {
	if result.AlreadyCancelled {
		s.Logger.Info("REGISTRATION", fmt.Sprintf("Registration %d already cancelled", result.Registration.ID))
		return
	}
	s.Logger.LogRegistration("CANCEL", result.Registration.ID, fmt.Sprintf("cancelled (was %s) on event %d", result.PriorStatus, event.ID))
	s.committed(ctx, event.ID)
	if result.Promoted != nil {
		s.Logger.LogRegistration("PROMOTE", result.Promoted.ID, fmt.Sprintf("%s promoted from the waitlist of event %d", result.Promoted.Attendee.Email, event.ID))
		s.notifyPromoted(ctx, event, result.Promoted)
	}
}
