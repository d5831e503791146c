// Package registration allocates seats, runs the waitlist and applies
// cancellations, admin overrides and status edits. Every mutating operation
// is one transaction that takes row locks in the order event, registration,
// aggregate rows, promotion candidate.
package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-registration/internal/ledger"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/registration/db"
)

type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx *db.Tx) error) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	GetRegistration(ctx context.Context, id int64) (*models.Registration, error)
	ListRegistrations(ctx context.Context, eventID int64, filter models.RegistrationFilter) ([]models.Registration, error)
	ListByAttendeeEmail(ctx context.Context, email string) ([]models.Registration, error)
	EventRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error)
}

// Notifier hands messages off after commit. Implementations must not block
// on delivery; a returned error is logged and otherwise ignored.
type Notifier interface {
	RegistrationRecorded(ctx context.Context, n models.RegistrationNotification) error
	WaitlistPromoted(ctx context.Context, n models.PromotionNotification) error
}

// AvailabilityCache caches ledger summaries. Get returns nil on a miss.
type AvailabilityCache interface {
	Get(ctx context.Context, eventID int64) (*ledger.Availability, error)
	Set(ctx context.Context, a ledger.Availability) error
	Invalidate(ctx context.Context, eventID int64) error
}

type Service struct {
	Store    Store
	Notifier Notifier
	Cache    AvailabilityCache
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(store Store, notifier Notifier, cache AvailabilityCache, log *logger.Logger) *Service {
	return &Service{
		Store:    store,
		Notifier: notifier,
		Cache:    cache,
		Logger:   log,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	return s.Now().UTC()
}

func eventLookupError(eventID int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	return fmt.Errorf("lock event %d: %w", eventID, err)
}

func registrationLookupError(id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrRegistrationNotFound, id)
	}
	return fmt.Errorf("lock registration %d: %w", id, err)
}

// committed runs after a successful mutation of the event's registrations.
func (s *Service) committed(ctx context.Context, eventID int64) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, eventID); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Failed to invalidate availability for event %d: %v", eventID, err))
	}
}

func (s *Service) notifyRecorded(ctx context.Context, event *models.Event, attendee *models.Attendee, reg *models.Registration) {
	if s.Notifier == nil {
		return
	}
	n := models.RegistrationNotification{
		EventID:          event.ID,
		EventTitle:       event.Title,
		Email:            attendee.Email,
		Name:             attendee.Name,
		Status:           reg.Status,
		WaitlistPosition: reg.WaitlistPosition,
	}
	if err := s.Notifier.RegistrationRecorded(ctx, n); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to queue registration notice for %s (event %d): %v", attendee.Email, event.ID, err))
	}
}

func (s *Service) notifyPromoted(ctx context.Context, event *models.Event, promoted *models.Registration) {
	if s.Notifier == nil || promoted == nil || promoted.Attendee == nil {
		return
	}
	n := models.PromotionNotification{
		EventID:    event.ID,
		EventTitle: event.Title,
		Email:      promoted.Attendee.Email,
		Name:       promoted.Attendee.Name,
	}
	if err := s.Notifier.WaitlistPromoted(ctx, n); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to queue promotion notice for %s (event %d): %v", n.Email, event.ID, err))
	}
}
