// Package events manages the event lifecycle: creation, publishing,
// cancellation and completion.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrInvalidTransition = errors.New("invalid event status transition")
)

// transitions lists where each status may move. Cancelled and completed are final.
var transitions = map[string][]string{
	models.EventStatusDraft:     {models.EventStatusPublished, models.EventStatusCancelled},
	models.EventStatusPublished: {models.EventStatusDraft, models.EventStatusCancelled, models.EventStatusCompleted},
}

func canMove(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Store interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	ListOpenEvents(ctx context.Context, now time.Time) ([]models.Event, error)
	ListAllEvents(ctx context.Context) ([]models.Event, error)
	UpdateStatus(ctx context.Context, id int64, decide func(*models.Event) (string, error), now time.Time) (*models.Event, string, error)
	DeleteEvent(ctx context.Context, id int64) (bool, error)
	Registrants(ctx context.Context, eventID int64, statuses ...string) ([]models.Registrant, error)
}

type Notifier interface {
	EventCancelled(ctx context.Context, n models.EventCancelledNotification) error
}

type Service struct {
	Store    Store
	Notifier Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(store Store, notifier Notifier, log *logger.Logger) *Service {
	return &Service{Store: store, Notifier: notifier, Logger: log, Now: time.Now}
}

func (s *Service) now() time.Time {
	return s.Now().UTC()
}

func notFound(id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return err
}

// CreateEvent stores a new event. Events start as drafts unless the request says otherwise.
func (s *Service) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	now := s.now()
	status := req.Status
	if status == "" {
		status = models.EventStatusDraft
	}
	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt.UTC(),
		Capacity:    req.Capacity,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.Logger.Info("EVENT", fmt.Sprintf("created event %d %q (%s, capacity %d)", event.ID, event.Title, event.Status, event.Capacity))
	return event, nil
}

// GetEvent returns any event to admins and only published events to everyone else.
func (s *Service) GetEvent(ctx context.Context, id int64, admin bool) (*models.Event, error) {
	event, err := s.Store.GetEvent(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	if !admin && event.Status == models.EventStatusDraft {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return event, nil
}

// ListEvents returns every event for admins. The public listing hides drafts,
// past events and events without a free seat.
func (s *Service) ListEvents(ctx context.Context, admin bool) ([]models.Event, error) {
	if admin {
		return s.Store.ListAllEvents(ctx)
	}
	return s.Store.ListOpenEvents(ctx, s.now())
}

// ChangeStatus moves an event through its lifecycle. Setting the current
// status again is a no-op. Cancelling tells every confirmed and waitlisted
// attendee once the change is stored.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status string) (*models.Event, error) {
	event, prior, err := s.Store.UpdateStatus(ctx, id, func(e *models.Event) (string, error) {
		if e.Status == status {
			return status, nil
		}
		if !canMove(e.Status, status) {
			return "", fmt.Errorf("%w: %s to %s", ErrInvalidTransition, e.Status, status)
		}
		return status, nil
	}, s.now())
	if err != nil {
		return nil, notFound(id, err)
	}
	if prior == status {
		return event, nil
	}

	s.Logger.Info("EVENT", fmt.Sprintf("event %d moved from %s to %s", id, prior, status))
	if status == models.EventStatusCancelled {
		s.notifyCancelled(ctx, event)
	}
	return event, nil
}

func (s *Service) notifyCancelled(ctx context.Context, event *models.Event) {
	if s.Notifier == nil {
		return
	}
	registrants, err := s.Store.Registrants(ctx, event.ID, models.StatusConfirmed, models.StatusWaitlisted)
	if err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("event %d cancelled but registrants could not be loaded: %v", event.ID, err))
		return
	}
	for _, r := range registrants {
		err := s.Notifier.EventCancelled(ctx, models.EventCancelledNotification{
			EventID:            event.ID,
			EventTitle:         event.Title,
			Email:              r.Email,
			Name:               r.Name,
			RegistrationStatus: r.Status,
		})
		if err != nil {
			s.Logger.Error("NOTIFY", fmt.Sprintf("event %d cancellation notice for %s failed: %v", event.ID, r.Email, err))
		}
	}
}

func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	deleted, err := s.Store.DeleteEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	s.Logger.Info("EVENT", fmt.Sprintf("deleted event %d", id))
	return nil
}
