package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
)

// Availability summarizes seats and waitlist slots from an unlocked read.
// The figures are advisory; Reserve decides under lock.
func (s *Service) Availability(ctx context.Context, eventID int64) (*ledger.Availability, error) {
	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, eventID)
		if err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Availability cache read failed for event %d: %v", eventID, err))
		} else if cached != nil {
			return cached, nil
		}
	}

	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
		}
		return nil, err
	}
	rows, err := s.Store.EventRegistrations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("read registrations: %w", err)
	}
	summary := ledger.Summarize(*event, rows)

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, summary); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Availability cache write failed for event %d: %v", eventID, err))
		}
	}
	return &summary, nil
}

// ListRegistrations returns an event's registrations newest first.
func (s *Service) ListRegistrations(ctx context.Context, eventID int64, filter models.RegistrationFilter) ([]models.Registration, error) {
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
		}
		return nil, err
	}
	return s.Store.ListRegistrations(ctx, eventID, filter)
}

// MyRegistrations lists the registrations of the attendee with this email.
func (s *Service) MyRegistrations(ctx context.Context, email string) ([]models.Registration, error) {
	return s.Store.ListByAttendeeEmail(ctx, email)
}

// Registration loads one registration of the event with attendee and event attached.
func (s *Service) Registration(ctx context.Context, eventID, registrationID int64) (*models.Registration, error) {
	reg, err := s.Store.GetRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrRegistrationNotFound, registrationID)
		}
		return nil, err
	}
	if reg.EventID != eventID {
		return nil, fmt.Errorf("%w: %d", ErrRegistrationNotFound, registrationID)
	}
	return reg, nil
}

// OwnedConfirmedRegistration returns the registration only if it belongs to
// email and holds a confirmed seat, which is what a pass is issued for.
func (s *Service) OwnedConfirmedRegistration(ctx context.Context, eventID, registrationID int64, email string) (*models.Registration, error) {
	reg, err := s.Registration(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Attendee == nil || reg.Attendee.Email != email {
		return nil, ErrForbidden
	}
	if reg.Status != models.StatusConfirmed {
		return nil, ErrNotConfirmed
	}
	return reg, nil
}
