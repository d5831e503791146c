package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-registration/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// ErrUniqueViolation is returned when an insert hits the (event, attendee) unique index.
var ErrUniqueViolation = errors.New("unique constraint violation")

type DB struct {
	Bun       *bun.DB
	TxOptions *sql.TxOptions
}

// New wraps bunDB. isolation is a configured isolation level name; it is
// ignored on SQLite, which only knows serialized writers.
func New(bunDB *bun.DB, isolation string) *DB {
	d := &DB{Bun: bunDB}
	if bunDB.Dialect().Name() != dialect.SQLite {
		d.TxOptions = TxOptions(isolation)
	}
	return d
}

// TxOptions maps an isolation level name to transaction options. An empty
// or unknown name leaves the driver default in place.
//
// Read committed is the configured default. Every mutation locks its event
// row FOR UPDATE first, so writers on one event already run one at a time;
// serializable would add 40001 aborts that RunInTx does not retry.
func TxOptions(isolation string) *sql.TxOptions {
	switch strings.ToLower(strings.TrimSpace(isolation)) {
	case "read committed":
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	case "repeatable read":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case "serializable":
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	default:
		return nil
	}
}

// RunInTx runs fn inside one transaction. fn's error rolls everything back.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	lockRows := d.Bun.Dialect().Name() != dialect.SQLite
	return d.Bun.RunInTx(ctx, d.TxOptions, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Tx{tx: tx, lockRows: lockRows})
	})
}

// ---------------- READS ----------------

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

// GetRegistration loads a registration with its attendee and event.
func (d *DB) GetRegistration(ctx context.Context, id int64) (*models.Registration, error) {
	var reg models.Registration
	err := d.Bun.NewSelect().
		Model(&reg).
		Relation("Attendee").
		Relation("Event").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListRegistrations returns an event's registrations newest first, optionally
// narrowed by status and payment status.
func (d *DB) ListRegistrations(ctx context.Context, eventID int64, filter models.RegistrationFilter) ([]models.Registration, error) {
	regs := []models.Registration{}
	q := d.Bun.NewSelect().
		Model(&regs).
		Relation("Attendee").
		Where("?TableAlias.event_id = ?", eventID)
	if filter.Status != "" {
		q = q.Where("?TableAlias.status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		q = q.Where("?TableAlias.payment_status = ?", filter.PaymentStatus)
	}
	err := q.OrderExpr("?TableAlias.registered_at DESC").
		OrderExpr("?TableAlias.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// ListByAttendeeEmail returns every registration held by the attendee with
// the given email, newest first.
func (d *DB) ListByAttendeeEmail(ctx context.Context, email string) ([]models.Registration, error) {
	regs := []models.Registration{}
	err := d.Bun.NewSelect().
		Model(&regs).
		Relation("Attendee").
		Relation("Event").
		Where("attendee.email = ?", email).
		OrderExpr("?TableAlias.registered_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// EventRegistrations reads all of an event's rows without locking them.
func (d *DB) EventRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	regs := []models.Registration{}
	err := d.Bun.NewSelect().
		Model(&regs).
		Where("event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// ---------------- TRANSACTION ----------------

// Tx exposes the locking reads and writes the engines use. Every Lock*
// method takes row locks held until commit; on SQLite the single writer
// already excludes concurrent transactions, so no lock clause is emitted.
type Tx struct {
	tx       bun.Tx
	lockRows bool
}

func (t *Tx) forUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if t.lockRows {
		return q.For("UPDATE")
	}
	return q
}

// LockEvent locks the event row. It is always the first lock taken.
func (t *Tx) LockEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	var event models.Event
	err := t.forUpdate(t.tx.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpsertAttendee inserts the attendee or updates the row that owns the email.
// created reports which of the two happened.
func (t *Tx) UpsertAttendee(ctx context.Context, details models.AttendeeDetails, now time.Time) (*models.Attendee, bool, error) {
	var existing models.Attendee
	err := t.forUpdate(t.tx.NewSelect().
		Model(&existing).
		Where("email = ?", details.Email).
		Limit(1)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	created := errors.Is(err, sql.ErrNoRows)

	attendee := &models.Attendee{
		Email:     details.Email,
		Name:      details.Name,
		Phone:     details.Phone,
		Company:   details.Company,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = t.tx.NewInsert().
		Model(attendee).
		On("CONFLICT (email) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("phone = EXCLUDED.phone").
		Set("company = EXCLUDED.company").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	if !created {
		attendee.CreatedAt = existing.CreatedAt
	}
	return attendee, created, nil
}

func (t *Tx) Attendee(ctx context.Context, id int64) (*models.Attendee, error) {
	var attendee models.Attendee
	err := t.tx.NewSelect().
		Model(&attendee).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

// LockRegistrationFor locks the attendee's registration for the event in
// any status. It returns nil when none exists.
func (t *Tx) LockRegistrationFor(ctx context.Context, eventID, attendeeID int64) (*models.Registration, error) {
	var reg models.Registration
	err := t.forUpdate(t.tx.NewSelect().
		Model(&reg).
		Where("event_id = ?", eventID).
		Where("attendee_id = ?", attendeeID).
		Limit(1)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// LockRegistration locks one registration that must belong to eventID.
func (t *Tx) LockRegistration(ctx context.Context, eventID, id int64) (*models.Registration, error) {
	var reg models.Registration
	err := t.forUpdate(t.tx.NewSelect().
		Model(&reg).
		Where("id = ?", id).
		Where("event_id = ?", eventID).
		Limit(1)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// LockRegistrations locks every registration of the event in the given status.
// Rows come back in id order so lock acquisition order is stable.
func (t *Tx) LockRegistrations(ctx context.Context, eventID int64, status string) ([]models.Registration, error) {
	regs := []models.Registration{}
	err := t.forUpdate(t.tx.NewSelect().
		Model(&regs).
		Where("event_id = ?", eventID).
		Where("status = ?", status).
		Order("id ASC")).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// LockAdminOverrides locks the event's active admin override registrations.
func (t *Tx) LockAdminOverrides(ctx context.Context, eventID int64) ([]models.Registration, error) {
	regs := []models.Registration{}
	err := t.forUpdate(t.tx.NewSelect().
		Model(&regs).
		Where("event_id = ?", eventID).
		Where("status = ?", models.StatusConfirmed).
		Where("is_admin_override = ?", true).
		Order("id ASC")).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// RecordWaitlistPosition stores position as the event's highest issued
// waitlist position. The caller holds the event lock.
func (t *Tx) RecordWaitlistPosition(ctx context.Context, event *models.Event, position int64) error {
	event.WaitlistSequence = position
	_, err := t.tx.NewUpdate().
		Model(event).
		Column("waitlist_sequence").
		WherePK().
		Exec(ctx)
	return err
}

func (t *Tx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	_, err := t.tx.NewInsert().Model(reg).Exec(ctx)
	if isUniqueViolation(err) {
		return ErrUniqueViolation
	}
	return err
}

// UpdateRegistration writes the mutable columns of reg.
func (t *Tx) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	_, err := t.tx.NewUpdate().
		Model(reg).
		Column("status", "waitlist_position", "payment_status", "is_admin_override", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
