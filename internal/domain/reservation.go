package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending    ReservationStatus = "PENDING"
	ReservationStatusConfirmed  ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled  ReservationStatus = "CANCELLED"
	ReservationStatusWaitlisted ReservationStatus = "WAITLISTED"
)

// Active reports whether the reservation still counts against duplicate
// booking checks. CANCELLED is the only terminal status.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed || s == ReservationStatusWaitlisted
}

// CanTransitionTo encodes the one-directional status machine:
// PENDING -> CONFIRMED | WAITLISTED | CANCELLED,
// CONFIRMED -> CANCELLED, WAITLISTED -> CONFIRMED | CANCELLED.
func (s ReservationStatus) CanTransitionTo(to ReservationStatus) bool {
	switch s {
	case ReservationStatusPending:
		return to == ReservationStatusConfirmed || to == ReservationStatusWaitlisted || to == ReservationStatusCancelled
	case ReservationStatusConfirmed:
		return to == ReservationStatusCancelled
	case ReservationStatusWaitlisted:
		return to == ReservationStatusConfirmed || to == ReservationStatusCancelled
	default:
		return false
	}
}

// Reservation ties one requester to one slot. ID is a monotonically
// increasing sequence assigned at creation and used as the waitlist
// tie-break; Reference is the public handle returned to callers.
type Reservation struct {
	ID          int64
	SlotID      int64
	RequesterID string
	Reference   string
	Status      ReservationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
