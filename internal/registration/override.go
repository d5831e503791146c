package registration

import (
	"context"
	"errors"
	"fmt"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
	"ms-registration/internal/registration/db"
)

type ForceAddRequest struct {
	EventID  int64
	Attendee models.AttendeeDetails
}

// ForceAdd confirms the attendee regardless of capacity. An existing
// registration in any status is turned into a confirmed override; otherwise
// a new one is created with payment pending. At most ledger.MaxAdminOverrides
// overrides may be active per event.
func (s *Service) ForceAdd(ctx context.Context, req ForceAddRequest) (*OverrideResult, error) {
	var result *OverrideResult
	now := s.now()

	err := s.Store.RunInTx(ctx, func(ctx context.Context, tx *db.Tx) error {
		event, err := tx.LockEvent(ctx, req.EventID)
		if err != nil {
			return eventLookupError(req.EventID, err)
		}

		overrides, err := tx.LockAdminOverrides(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("lock admin overrides: %w", err)
		}
		if ledger.AdminOverrideActiveCount(overrides) >= ledger.MaxAdminOverrides {
			result = &OverrideResult{Outcome: OutcomeRejected, Reason: ReasonOverrideLimit}
			return errRejected
		}

		attendee, _, err := tx.UpsertAttendee(ctx, req.Attendee, now)
		if err != nil {
			return fmt.Errorf("upsert attendee: %w", err)
		}

		existing, err := tx.LockRegistrationFor(ctx, event.ID, attendee.ID)
		if err != nil {
			return fmt.Errorf("lock existing registration: %w", err)
		}
		if existing != nil {
			prior := existing.Status
			existing.Status = models.StatusConfirmed
			existing.WaitlistPosition = nil
			existing.IsAdminOverride = true
			existing.UpdatedAt = now
			if err := tx.UpdateRegistration(ctx, existing); err != nil {
				return fmt.Errorf("update registration %d: %w", existing.ID, err)
			}
			existing.Attendee = attendee
			result = &OverrideResult{Outcome: OutcomeConfirmed, Registration: existing, Reactivated: true, PriorStatus: prior}
			return nil
		}

		reg := &models.Registration{
			EventID:         event.ID,
			AttendeeID:      attendee.ID,
			Status:          models.StatusConfirmed,
			PaymentStatus:   models.PaymentPending,
			IsAdminOverride: true,
			RegisteredAt:    now,
			UpdatedAt:       now,
		}
		if err := tx.InsertRegistration(ctx, reg); err != nil {
			if errors.Is(err, db.ErrUniqueViolation) {
				return ErrDuplicateRegistration
			}
			return fmt.Errorf("insert registration: %w", err)
		}
		reg.Attendee = attendee
		result = &OverrideResult{Outcome: OutcomeConfirmed, Registration: reg}
		return nil
	})
	if err != nil && !errors.Is(err, errRejected) {
		return nil, err
	}

	if result.Outcome == OutcomeRejected {
		s.Logger.LogSecurity("OVERRIDE_LIMIT", fmt.Sprintf("Override limit reached on event %d", req.EventID))
		return result, nil
	}
	s.Logger.LogRegistration("OVERRIDE", result.Registration.ID, fmt.Sprintf("%s force-confirmed on event %d", req.Attendee.Email, req.EventID))
	s.committed(ctx, req.EventID)
	return result, nil
}
