// Package database owns the relational schema: bun-driven table creation for
// SQLite and local runs, versioned SQL migrations for PostgreSQL, and seed data.
package database

import (
	"context"
	"fmt"

	"ms-registration/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema creates every table and index the service needs. It is
// idempotent. PostgreSQL deployments use the migrations package instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*models.Event)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*models.Attendee)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create attendees table: %w", err)
	}

	_, err := db.NewCreateTable().
		Model((*models.Registration)(nil)).
		IfNotExists().
		ForeignKey(`("event_id") REFERENCES "events" ("id") ON DELETE CASCADE`).
		ForeignKey(`("attendee_id") REFERENCES "attendees" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create registrations table: %w", err)
	}

	indexes := []struct {
		name    string
		model   any
		unique  bool
		columns []string
	}{
		{"registrations_event_attendee_unique", (*models.Registration)(nil), true, []string{"event_id", "attendee_id"}},
		{"registrations_event_status_idx", (*models.Registration)(nil), false, []string{"event_id", "status"}},
		{"events_status_starts_at_idx", (*models.Event)(nil), false, []string{"status", "starts_at"}},
	}
	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema removes all tables in reverse dependency order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	tables := []any{(*models.Registration)(nil), (*models.Attendee)(nil), (*models.Event)(nil)}
	for _, m := range tables {
		if _, err := db.NewDropTable().Model(m).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", m, err)
		}
	}
	return nil
}
