package domain

import "time"

// Slot is a bookable time window on a facility. Occupancy counts CONFIRMED
// reservations only and never exceeds Capacity. Version is the optimistic
// concurrency token checked on every occupancy write.
type Slot struct {
	ID         int64
	FacilityID int64
	StartAt    time.Time
	EndAt      time.Time
	Capacity   int
	Occupancy  int
	Version    int64
	Retired    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
