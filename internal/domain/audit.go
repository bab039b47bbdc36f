package domain

import "time"

const (
	EntityTypeFacility    = "facility"
	EntityTypeSlot        = "slot"
	EntityTypeReservation = "reservation"
)

const (
	AuditActionCreate         = "create"
	AuditActionCancel         = "cancel"
	AuditActionPromote        = "promote"
	AuditActionRetire         = "retire"
	AuditActionAdjustCapacity = "adjust_capacity"
)

// AuditEntry is an immutable record of one state transition. Seq is assigned
// by the log at append time; History orders by (At, Seq) so ties on the
// timestamp resolve by insertion order.
type AuditEntry struct {
	Seq        int64
	EntityType string
	EntityID   int64
	Action     string
	Actor      string
	Before     string
	After      string
	At         time.Time
}
