package domain

import "errors"

// Error taxonomy returned by the engine and schedule service. Callers decide
// retry behaviour from the kind: ErrUnavailable is the only retryable one,
// the engine guarantees no partial mutation behind it.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateBooking = errors.New("requester already holds an active reservation for this slot")
	ErrSlotExpired      = errors.New("slot has already started")
	ErrOverlapConflict  = errors.New("slot overlaps an existing slot")
	ErrAlreadyCancelled = errors.New("reservation is already cancelled")
	ErrUnavailable      = errors.New("temporarily unavailable")
	ErrInvariant        = errors.New("invariant violation")
)
