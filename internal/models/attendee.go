package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Attendee is keyed by email; every submission upserts the same row.
type Attendee struct {
	bun.BaseModel `bun:"table:attendees"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     string    `bun:"phone,nullzero" json:"phone,omitempty"`
	Company   string    `bun:"company,nullzero" json:"company,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type AttendeeDetails struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Company string `json:"company" validate:"omitempty,max=255"`
}
