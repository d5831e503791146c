package registration

import (
	"context"
	"fmt"
	"slices"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
	"ms-registration/internal/registration/db"
)

type StatusUpdate struct {
	EventID        int64
	RegistrationID int64
	Status         string
	PaymentStatus  string
}

// UpdateStatus applies an administrative status edit. A paid registration
// stays paid. Moving to cancelled runs the cancellation engine; a row that
// is already cancelled keeps its status and only its payment changes; moving onto
// the waitlist assigns a fresh trailing position; leaving it clears the
// position. Capacity is not re-checked.
func (s *Service) UpdateStatus(ctx context.Context, upd StatusUpdate) (*StatusUpdateResult, error) {
	if !slices.Contains(models.RegistrationStatuses, upd.Status) || !slices.Contains(models.PaymentStatuses, upd.PaymentStatus) {
		return nil, fmt.Errorf("%w: status=%q payment_status=%q", ErrInvalidStatus, upd.Status, upd.PaymentStatus)
	}

	var (
		result    *StatusUpdateResult
		event     *models.Event
		cancelRes *CancellationResult
	)
	now := s.now()

	err := s.Store.RunInTx(ctx, func(ctx context.Context, tx *db.Tx) error {
		var err error
		event, err = tx.LockEvent(ctx, upd.EventID)
		if err != nil {
			return eventLookupError(upd.EventID, err)
		}
		reg, err := tx.LockRegistration(ctx, event.ID, upd.RegistrationID)
		if err != nil {
			return registrationLookupError(upd.RegistrationID, err)
		}

		payment := upd.PaymentStatus
		if reg.PaymentStatus == models.PaymentPaid {
			payment = models.PaymentPaid
		}

		// Editing a row that is already cancelled only touches its payment.
		if upd.Status == models.StatusCancelled && reg.Status != models.StatusCancelled {
			cancelRes, err = s.cancelLocked(ctx, tx, event, reg, payment, now)
			if err != nil {
				return err
			}
			result = &StatusUpdateResult{
				Registration: cancelRes.Registration,
				PriorStatus:  cancelRes.PriorStatus,
				Promoted:     cancelRes.Promoted,
				PromotedName: cancelRes.PromotedName,
			}
			return nil
		}

		prior := reg.Status
		switch {
		case upd.Status == models.StatusWaitlisted && prior != models.StatusWaitlisted:
			waitlisted, err := tx.LockRegistrations(ctx, event.ID, models.StatusWaitlisted)
			if err != nil {
				return fmt.Errorf("lock waitlist: %w", err)
			}
			next := ledger.NextWaitlistPosition(event.WaitlistSequence, waitlisted)
			if err := tx.RecordWaitlistPosition(ctx, event, next); err != nil {
				return fmt.Errorf("record waitlist position: %w", err)
			}
			reg.WaitlistPosition = &next
		case upd.Status != models.StatusWaitlisted:
			reg.WaitlistPosition = nil
		}
		reg.Status = upd.Status
		reg.PaymentStatus = payment
		reg.UpdatedAt = now
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return fmt.Errorf("update registration %d: %w", reg.ID, err)
		}
		result = &StatusUpdateResult{Registration: reg, PriorStatus: prior}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelRes != nil {
		s.cancelled(ctx, event, cancelRes)
		return result, nil
	}
	s.Logger.LogRegistration("STATUS", result.Registration.ID,
		fmt.Sprintf("%s -> %s (payment %s)", result.PriorStatus, result.Registration.Status, result.Registration.PaymentStatus))
	s.committed(ctx, event.ID)
	return result, nil
}
