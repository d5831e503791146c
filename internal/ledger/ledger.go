// Package ledger derives seat and waitlist figures from registration rows.
// Callers pass rows they have already locked inside their transaction, so
// every figure reflects state no concurrent writer can change before commit.
package ledger

import (
	"slices"

	"ms-registration/internal/models"
)

// MaxAdminOverrides caps active override registrations per event.
const MaxAdminOverrides = 5

// WaitlistCapacity is max(1, ceil(capacity * 0.25)).
func WaitlistCapacity(capacity int) int {
	if capacity <= 0 {
		return 1
	}
	return max(1, (capacity+3)/4)
}

func ConfirmedCount(rows []models.Registration) int {
	return count(rows, func(r models.Registration) bool {
		return r.Status == models.StatusConfirmed
	})
}

func WaitlistedCount(rows []models.Registration) int {
	return count(rows, func(r models.Registration) bool {
		return r.Status == models.StatusWaitlisted
	})
}

// AdminOverrideActiveCount counts confirmed registrations created or promoted by an admin.
func AdminOverrideActiveCount(rows []models.Registration) int {
	return count(rows, func(r models.Registration) bool {
		return r.Status == models.StatusConfirmed && r.IsAdminOverride
	})
}

// NextWaitlistPosition returns one past the highest position issued so far:
// the larger of the event's recorded sequence and any position still held by
// rows. Promoted and cancelled rows lose their position, so the sequence is
// what keeps positions from being reused once the queue drains.
func NextWaitlistPosition(lastIssued int64, rows []models.Registration) int64 {
	highest := lastIssued
	for _, r := range rows {
		if r.WaitlistPosition != nil && *r.WaitlistPosition > highest {
			highest = *r.WaitlistPosition
		}
	}
	return highest + 1
}

// CompareWaitlist orders waitlisted rows first-in first-out: position
// ascending with a missing position sorting last, then registration time,
// then id.
func CompareWaitlist(a, b models.Registration) int {
	switch {
	case a.WaitlistPosition == nil && b.WaitlistPosition != nil:
		return 1
	case a.WaitlistPosition != nil && b.WaitlistPosition == nil:
		return -1
	case a.WaitlistPosition != nil && b.WaitlistPosition != nil:
		if *a.WaitlistPosition != *b.WaitlistPosition {
			if *a.WaitlistPosition < *b.WaitlistPosition {
				return -1
			}
			return 1
		}
	}
	if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// NextInQueue returns the waitlisted row that should be promoted next, or nil.
func NextInQueue(rows []models.Registration) *models.Registration {
	queue := make([]models.Registration, 0, len(rows))
	for _, r := range rows {
		if r.Status == models.StatusWaitlisted {
			queue = append(queue, r)
		}
	}
	if len(queue) == 0 {
		return nil
	}
	next := slices.MinFunc(queue, CompareWaitlist)
	return &next
}

// SortWaitlist sorts rows in promotion order.
func SortWaitlist(rows []models.Registration) {
	slices.SortStableFunc(rows, CompareWaitlist)
}

// Availability is the public seat summary of one event.
type Availability struct {
	EventID           int64 `json:"event_id"`
	Capacity          int   `json:"capacity"`
	Confirmed         int   `json:"confirmed"`
	Waitlisted        int   `json:"waitlisted"`
	AdminOverrides    int   `json:"admin_overrides"`
	SeatsRemaining    int   `json:"seats_remaining"`
	WaitlistCapacity  int   `json:"waitlist_capacity"`
	WaitlistRemaining int   `json:"waitlist_remaining"`
	SoldOut           bool  `json:"sold_out"`
	WaitlistFull      bool  `json:"waitlist_full"`
}

func Summarize(event models.Event, rows []models.Registration) Availability {
	confirmed := ConfirmedCount(rows)
	waitlisted := WaitlistedCount(rows)
	waitlistCap := WaitlistCapacity(event.Capacity)

	a := Availability{
		EventID:           event.ID,
		Capacity:          event.Capacity,
		Confirmed:         confirmed,
		Waitlisted:        waitlisted,
		AdminOverrides:    AdminOverrideActiveCount(rows),
		SeatsRemaining:    max(0, event.Capacity-confirmed),
		WaitlistCapacity:  waitlistCap,
		WaitlistRemaining: max(0, waitlistCap-waitlisted),
	}
	a.SoldOut = a.SeatsRemaining == 0
	a.WaitlistFull = a.SoldOut && a.WaitlistRemaining == 0
	return a
}

func count(rows []models.Registration, keep func(models.Registration) bool) int {
	n := 0
	for _, r := range rows {
		if keep(r) {
			n++
		}
	}
	return n
}
