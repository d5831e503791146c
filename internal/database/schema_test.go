package database_test

import (
	"context"
	"testing"
	"time"

	"ms-registration/internal/database"
	"ms-registration/internal/database/dbtest"
	"ms-registration/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchemaIsIdempotent(t *testing.T) {
	db := dbtest.NewSQLite(t)

	assert.NoError(t, database.CreateSchema(context.Background(), db))
}

func TestUniqueEventAttendeeIndex(t *testing.T) {
	ctx := context.Background()
	db := dbtest.NewSQLite(t)
	now := time.Now().UTC()

	event := &models.Event{Title: "Expo", StartsAt: now.Add(time.Hour), Capacity: 1, Status: models.EventStatusPublished, CreatedAt: now, UpdatedAt: now}
	_, err := db.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	attendee := &models.Attendee{Email: "a@example.com", Name: "A", CreatedAt: now, UpdatedAt: now}
	_, err = db.NewInsert().Model(attendee).Exec(ctx)
	require.NoError(t, err)

	first := &models.Registration{EventID: event.ID, AttendeeID: attendee.ID, Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid, RegisteredAt: now, UpdatedAt: now}
	_, err = db.NewInsert().Model(first).Exec(ctx)
	require.NoError(t, err)

	second := &models.Registration{EventID: event.ID, AttendeeID: attendee.ID, Status: models.StatusCancelled, PaymentStatus: models.PaymentPending, RegisteredAt: now, UpdatedAt: now}
	_, err = db.NewInsert().Model(second).Exec(ctx)
	assert.Error(t, err)
}

func TestSeedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := dbtest.NewSQLite(t)
	now := time.Now().UTC()

	n, err := database.Seed(ctx, db, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = database.Seed(ctx, db, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDropSchema(t *testing.T) {
	ctx := context.Background()
	db := dbtest.NewSQLite(t)

	require.NoError(t, database.DropSchema(ctx, db))
	_, err := db.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	assert.Error(t, err)
}
