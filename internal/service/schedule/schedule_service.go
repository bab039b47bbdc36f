package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/feelincoding/openmat/internal/clock"
	"github.com/feelincoding/openmat/internal/domain"
	"github.com/feelincoding/openmat/internal/repository"
)

// ScheduleUseCase covers the administrative side: facilities and the slot
// calendar. Slots are created before any reservation can reference them and
// are soft-retired, never deleted, once they have history.
type ScheduleUseCase interface {
	CreateFacility(ctx context.Context, input CreateFacilityInput) (*domain.Facility, error)
	AdjustFacilityCapacity(ctx context.Context, facilityID int64, capacity int, actorID string) (*domain.Facility, error)
	CreateSlot(ctx context.Context, input CreateSlotInput) (*domain.Slot, error)
	RetireSlot(ctx context.Context, slotID int64, actorID string) error
	ListUpcomingSlots(ctx context.Context, facilityID int64) ([]domain.Slot, error)
	RetireEndedSlots(ctx context.Context) ([]domain.Slot, error)
}

type Cache interface {
	GetUpcomingSlots(ctx context.Context, facilityID int64) ([]domain.Slot, error)
	SetUpcomingSlots(ctx context.Context, facilityID int64, slots []domain.Slot) error
	InvalidateUpcomingSlots(ctx context.Context, facilityID int64) error
}

type CreateFacilityInput struct {
	Name     string
	Capacity int
	ActorID  string
}

type CreateSlotInput struct {
	FacilityID int64
	StartAt    time.Time
	EndAt      time.Time
	// Capacity 0 inherits the facility capacity.
	Capacity int
	ActorID  string
}

type Service struct {
	slots repository.SlotStore
	audit repository.AuditLog
	cache Cache
	clock clock.Clock
}

type ServiceOption func(*Service)

func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

func NewService(slots repository.SlotStore, audit repository.AuditLog, cache Cache, opts ...ServiceOption) *Service {
	service := &Service{
		slots: slots,
		audit: audit,
		cache: cache,
		clock: clock.System(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *Service) CreateFacility(ctx context.Context, input CreateFacilityInput) (*domain.Facility, error) {
	if input.Name == "" {
		return nil, errors.New("facility name is required")
	}
	if input.Capacity <= 0 {
		return nil, errors.New("facility capacity must be positive")
	}

	f := &domain.Facility{Name: input.Name, Capacity: input.Capacity}
	if err := s.slots.CreateFacility(ctx, f); err != nil {
		return nil, storeErr(err)
	}
	if err := s.append(ctx, domain.EntityTypeFacility, f.ID, domain.AuditActionCreate, input.ActorID, "", strconv.Itoa(f.Capacity)); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) AdjustFacilityCapacity(ctx context.Context, facilityID int64, capacity int, actorID string) (*domain.Facility, error) {
	if capacity <= 0 {
		return nil, errors.New("facility capacity must be positive")
	}

	before, err := s.slots.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, storeErr(err)
	}

	updated, err := s.slots.UpdateFacilityCapacity(ctx, facilityID, capacity)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.append(ctx, domain.EntityTypeFacility, facilityID, domain.AuditActionAdjustCapacity, actorID, strconv.Itoa(before.Capacity), strconv.Itoa(capacity)); err != nil {
		if _, restoreErr := s.slots.UpdateFacilityCapacity(ctx, facilityID, before.Capacity); restoreErr != nil {
			log.Printf("ERROR: %v: failed to restore capacity of facility %d: %v", domain.ErrInvariant, facilityID, restoreErr)
		}
		return nil, err
	}
	return updated, nil
}

func (s *Service) CreateSlot(ctx context.Context, input CreateSlotInput) (*domain.Slot, error) {
	if !input.EndAt.After(input.StartAt) {
		return nil, errors.New("slot end must be after start")
	}
	if input.Capacity < 0 {
		return nil, errors.New("slot capacity must not be negative")
	}

	facility, err := s.slots.GetFacility(ctx, input.FacilityID)
	if err != nil {
		return nil, storeErr(err)
	}

	capacity := input.Capacity
	if capacity == 0 {
		capacity = facility.Capacity
	}

	// Fast-fail on a clash that already exists. The authoritative check runs
	// inside the store's create transaction; this read can go stale without
	// letting two concurrent creates both through.
	overlaps, err := s.slots.HasOverlap(ctx, input.FacilityID, input.StartAt, input.EndAt)
	if err != nil {
		return nil, storeErr(err)
	}
	if overlaps {
		return nil, domain.ErrOverlapConflict
	}

	slot := &domain.Slot{
		FacilityID: input.FacilityID,
		StartAt:    input.StartAt,
		EndAt:      input.EndAt,
		Capacity:   capacity,
	}
	if err := s.slots.CreateSlot(ctx, slot); err != nil {
		return nil, storeErr(err)
	}
	if err := s.append(ctx, domain.EntityTypeSlot, slot.ID, domain.AuditActionCreate, input.ActorID, "", "active"); err != nil {
		// The slot has no history yet, it never became bookable.
		if discardErr := s.slots.DiscardSlot(ctx, slot.ID); discardErr != nil {
			log.Printf("ERROR: %v: failed to discard uncommitted slot %d: %v", domain.ErrInvariant, slot.ID, discardErr)
		}
		return nil, err
	}

	s.invalidate(ctx, input.FacilityID)
	return slot, nil
}

func (s *Service) RetireSlot(ctx context.Context, slotID int64, actorID string) error {
	slot, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return storeErr(err)
	}
	if slot.Retired {
		return nil
	}

	if err := s.slots.RetireSlot(ctx, slotID); err != nil {
		return storeErr(err)
	}
	if err := s.append(ctx, domain.EntityTypeSlot, slotID, domain.AuditActionRetire, actorID, "active", "retired"); err != nil {
		if restoreErr := s.slots.ReactivateSlot(ctx, slotID); restoreErr != nil {
			log.Printf("ERROR: %v: failed to restore slot %d after audit failure: %v", domain.ErrInvariant, slotID, restoreErr)
		}
		return err
	}

	s.invalidate(ctx, slot.FacilityID)
	return nil
}

func (s *Service) ListUpcomingSlots(ctx context.Context, facilityID int64) ([]domain.Slot, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetUpcomingSlots(ctx, facilityID); err == nil && cached != nil {
			return cached, nil
		}
	}

	slots, err := s.slots.ListUpcoming(ctx, facilityID, s.clock.Now())
	if err != nil {
		return nil, storeErr(err)
	}
	if s.cache != nil {
		_ = s.cache.SetUpcomingSlots(ctx, facilityID, slots)
	}
	return slots, nil
}

func (s *Service) RetireEndedSlots(ctx context.Context) ([]domain.Slot, error) {
	ended, err := s.slots.RetireEndedBefore(ctx, s.clock.Now())
	if err != nil {
		return nil, storeErr(err)
	}
	retired := make([]domain.Slot, 0, len(ended))
	for _, slot := range ended {
		if err := s.append(ctx, domain.EntityTypeSlot, slot.ID, domain.AuditActionRetire, "system", "active", "retired"); err != nil {
			// A retire with no audit record must not stand. Un-retire and
			// leave the slot for the next sweep.
			if restoreErr := s.slots.ReactivateSlot(ctx, slot.ID); restoreErr != nil {
				log.Printf("ERROR: %v: failed to restore slot %d after audit failure: %v", domain.ErrInvariant, slot.ID, restoreErr)
			}
			log.Printf("WARNING: audit append for retired slot %d failed, deferred to next sweep: %v", slot.ID, err)
			continue
		}
		s.invalidate(ctx, slot.FacilityID)
		retired = append(retired, slot)
	}
	return retired, nil
}

func (s *Service) append(ctx context.Context, entityType string, entityID int64, action, actor, before, after string) error {
	entry := &domain.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Before:     before,
		After:      after,
		At:         s.clock.Now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("%w: audit append failed: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, facilityID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUpcomingSlots(ctx, facilityID); err != nil {
		log.Printf("WARNING: failed to invalidate schedule cache for facility %d: %v", facilityID, err)
	}
}

func storeErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrOverlapConflict) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

var _ ScheduleUseCase = (*Service)(nil)
