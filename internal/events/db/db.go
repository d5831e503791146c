package db

import (
	"context"
	"time"

	"ms-registration/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListOpenEvents returns published events that have not started and still
// have a free seat, soonest first.
func (d *DB) ListOpenEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	events := []models.Event{}
	err := d.Bun.NewSelect().
		Model(&events).
		Where("?TableAlias.status = ?", models.EventStatusPublished).
		Where("?TableAlias.starts_at > ?", now).
		Where("?TableAlias.capacity > (SELECT COUNT(*) FROM registrations AS r WHERE r.event_id = ?TableAlias.id AND r.status = ?)", models.StatusConfirmed).
		OrderExpr("?TableAlias.starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListAllEvents is the admin view: every event regardless of status, latest first.
func (d *DB) ListAllEvents(ctx context.Context) ([]models.Event, error) {
	events := []models.Event{}
	err := d.Bun.NewSelect().
		Model(&events).
		OrderExpr("starts_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// UpdateStatus locks the event row, lets decide pick the new status and
// writes it. It returns the status the event had before.
func (d *DB) UpdateStatus(ctx context.Context, id int64, decide func(*models.Event) (string, error), now time.Time) (*models.Event, string, error) {
	var (
		event models.Event
		prior string
	)
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&event).Where("id = ?", id)
		if d.Bun.Dialect().Name() != dialect.SQLite {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}
		prior = event.Status
		next, err := decide(&event)
		if err != nil {
			return err
		}
		event.Status = next
		event.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(&event).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return &event, prior, nil
}

func (d *DB) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkCompleted flips published events that already started to completed.
func (d *DB) MarkCompleted(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", models.EventStatusCompleted).
		Set("updated_at = ?", now).
		Where("status = ?", models.EventStatusPublished).
		Where("starts_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListStartingBetween returns published events with from <= starts_at <= to.
func (d *DB) ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	events := []models.Event{}
	err := d.Bun.NewSelect().
		Model(&events).
		Where("status = ?", models.EventStatusPublished).
		Where("starts_at >= ?", from).
		Where("starts_at <= ?", to).
		OrderExpr("starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Registrants lists the attendees of an event whose registration is in one of statuses.
func (d *DB) Registrants(ctx context.Context, eventID int64, statuses ...string) ([]models.Registrant, error) {
	out := []models.Registrant{}
	err := d.Bun.NewSelect().
		TableExpr("registrations AS r").
		Join("JOIN attendees AS a ON a.id = r.attendee_id").
		ColumnExpr("r.id AS registration_id").
		ColumnExpr("r.event_id").
		ColumnExpr("r.status").
		ColumnExpr("a.email").
		ColumnExpr("a.name").
		Where("r.event_id = ?", eventID).
		Where("r.status IN (?)", bun.In(statuses)).
		OrderExpr("r.id ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
