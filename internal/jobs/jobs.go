// Package jobs holds the scheduled maintenance tasks: closing out past
// events and sending day-before reminders.
package jobs

import (
	"context"
	"fmt"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

type EventStore interface {
	MarkCompleted(ctx context.Context, now time.Time) (int64, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error)
	Registrants(ctx context.Context, eventID int64, statuses ...string) ([]models.Registrant, error)
}

type ReminderNotifier interface {
	EventReminder(ctx context.Context, n models.ReminderNotification) error
}

// ReminderGuard deduplicates reminders across overlapping runs.
type ReminderGuard interface {
	Claim(ctx context.Context, eventID int64, email string) (bool, error)
	Release(ctx context.Context, eventID int64, email string) error
}

type Runner struct {
	Store    EventStore
	Notifier ReminderNotifier
	Guard    ReminderGuard // optional
	Config   config.JobsConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewRunner(store EventStore, notifier ReminderNotifier, guard ReminderGuard, cfg config.JobsConfig, log *logger.Logger) *Runner {
	return &Runner{
		Store:    store,
		Notifier: notifier,
		Guard:    guard,
		Config:   cfg,
		Logger:   log,
		Now:      time.Now,
	}
}

// MarkCompleted moves published events whose start time has passed to completed.
func (r *Runner) MarkCompleted(ctx context.Context) (int64, error) {
	n, err := r.Store.MarkCompleted(ctx, r.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark completed: %w", err)
	}
	r.Logger.LogJob("MARK_COMPLETED", fmt.Sprintf("Marked %d event(s) as completed", n))
	return n, nil
}

type ReminderReport struct {
	Events  int `json:"events"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SendReminders notifies confirmed registrants of published events starting
// inside the reminder window. Each attendee is reminded at most once per
// event while a guard is configured.
func (r *Runner) SendReminders(ctx context.Context) (ReminderReport, error) {
	var report ReminderReport
	now := r.Now().UTC()
	events, err := r.Store.ListStartingBetween(ctx, now.Add(r.Config.ReminderLeadMin), now.Add(r.Config.ReminderLeadMax))
	if err != nil {
		return report, fmt.Errorf("list upcoming events: %w", err)
	}
	report.Events = len(events)

	for _, event := range events {
		registrants, err := r.Store.Registrants(ctx, event.ID, models.StatusConfirmed)
		if err != nil {
			r.Logger.LogJob("SEND_REMINDERS", fmt.Sprintf("event %d: could not load registrants: %v", event.ID, err))
			report.Failed++
			continue
		}
		for _, reg := range registrants {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			r.remind(ctx, event, reg, &report)
		}
	}

	r.Logger.LogJob("SEND_REMINDERS", fmt.Sprintf("Sent %d reminder(s) for %d event(s), %d skipped, %d failed",
		report.Sent, report.Events, report.Skipped, report.Failed))
	return report, nil
}

func (r *Runner) remind(ctx context.Context, event models.Event, reg models.Registrant, report *ReminderReport) {
	if r.Guard != nil {
		first, err := r.Guard.Claim(ctx, event.ID, reg.Email)
		if err != nil {
			// Without the guard a reminder may go out twice, which beats never.
			r.Logger.Warn("JOB", fmt.Sprintf("reminder guard unavailable for event %d: %v", event.ID, err))
		} else if !first {
			report.Skipped++
			return
		}
	}

	err := r.Notifier.EventReminder(ctx, models.ReminderNotification{
		EventID:    event.ID,
		EventTitle: event.Title,
		Location:   event.Location,
		StartsAt:   event.StartsAt,
		Email:      reg.Email,
		Name:       reg.Name,
	})
	if err != nil {
		report.Failed++
		r.Logger.Error("JOB", fmt.Sprintf("reminder for %s (event %d) failed: %v", reg.Email, event.ID, err))
		if r.Guard != nil {
			if err := r.Guard.Release(ctx, event.ID, reg.Email); err != nil {
				r.Logger.Warn("JOB", fmt.Sprintf("could not release reminder guard: %v", err))
			}
		}
		return
	}
	report.Sent++
}

// Start runs both jobs on their intervals until ctx is cancelled. Each job
// also runs once immediately.
func (r *Runner) Start(ctx context.Context) {
	r.Logger.LogJob("SCHEDULER", fmt.Sprintf("Starting: mark-completed every %s, reminders every %s",
		r.Config.MarkCompletedInterval, r.Config.ReminderInterval))

	completeTicker := time.NewTicker(every(r.Config.MarkCompletedInterval, 24*time.Hour))
	defer completeTicker.Stop()
	remindTicker := time.NewTicker(every(r.Config.ReminderInterval, time.Hour))
	defer remindTicker.Stop()

	r.runMarkCompleted(ctx)
	r.runReminders(ctx)
	for {
		select {
		case <-ctx.Done():
			r.Logger.LogJob("SCHEDULER", "Stopped")
			return
		case <-completeTicker.C:
			r.runMarkCompleted(ctx)
		case <-remindTicker.C:
			r.runReminders(ctx)
		}
	}
}

// every keeps time.NewTicker from panicking on a zero or negative interval.
func every(interval, fallback time.Duration) time.Duration {
	if interval <= 0 {
		return fallback
	}
	return interval
}

func (r *Runner) runMarkCompleted(ctx context.Context) {
	if _, err := r.MarkCompleted(ctx); err != nil {
		r.Logger.Error("JOB", err.Error())
	}
}

func (r *Runner) runReminders(ctx context.Context) {
	if _, err := r.SendReminders(ctx); err != nil {
		r.Logger.Error("JOB", err.Error())
	}
}
