package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/feelincoding/openmat/internal/clock"
	"github.com/feelincoding/openmat/internal/domain"
	"github.com/feelincoding/openmat/internal/kafka"
	"github.com/feelincoding/openmat/internal/repository"
	"github.com/google/uuid"
)

// ReservationUseCase is the sole authority over reservation state and slot
// occupancy. All mutations for one slot run inside that slot's critical
// section: read, decide, write, audit commit as a unit, and no other caller
// observes an intermediate state.
type ReservationUseCase interface {
	RequestReservation(ctx context.Context, slotID int64, requesterID string) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, reference, actorID string) (*domain.Reservation, error)
	ListActiveReservations(ctx context.Context, slotID int64, limit, offset int) ([]domain.Reservation, error)
	GetSlotOccupancy(ctx context.Context, slotID int64) (occupancy, capacity int, err error)
	History(ctx context.Context, reference string, afterSeq int64, limit int) ([]domain.AuditEntry, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Service struct {
	slots              repository.SlotStore
	reservations       repository.ReservationRepository
	audit              repository.AuditLog
	producer           Producer
	clock              clock.Clock
	eventsTopic        string
	notificationsTopic string
	opTimeout          time.Duration
	locks              *slotLocks
}

type ServiceOption func(*Service)

func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

func WithNotificationsTopic(topic string) ServiceOption {
	return func(s *Service) {
		s.notificationsTopic = topic
	}
}

func NewService(
	slots repository.SlotStore,
	reservations repository.ReservationRepository,
	audit repository.AuditLog,
	producer Producer,
	eventsTopic string,
	opTimeout time.Duration,
	opts ...ServiceOption,
) *Service {
	service := &Service{
		slots:        slots,
		reservations: reservations,
		audit:        audit,
		producer:     producer,
		clock:        clock.System(),
		eventsTopic:  eventsTopic,
		opTimeout:    opTimeout,
		locks:        newSlotLocks(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// opContext bounds every store call with the operation timeout while
// detaching from the caller's cancellation: once the critical section is
// entered it commits or aborts as a whole, a client disconnect must not
// leave it half-applied.
func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.opTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// readContext bounds store calls on the read paths. Reads need no
// durability detachment, so the caller's cancellation stays in effect.
func (s *Service) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.opTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) RequestReservation(ctx context.Context, slotID int64, requesterID string) (*domain.Reservation, error) {
	if requesterID == "" {
		return nil, errors.New("requester id is required")
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	l := s.locks.acquire(slotID)
	defer s.locks.release(slotID, l)

	slot, err := s.slots.GetSlot(opCtx, slotID)
	if err != nil {
		return nil, storeErr(err)
	}
	if slot.Retired {
		return nil, domain.ErrNotFound
	}
	if !slot.StartAt.After(s.clock.Now()) {
		return nil, domain.ErrSlotExpired
	}

	taken, err := s.reservations.HasActiveBySlotAndRequester(opCtx, slotID, requesterID)
	if err != nil {
		return nil, storeErr(err)
	}
	if taken {
		return nil, domain.ErrDuplicateBooking
	}

	res := &domain.Reservation{
		SlotID:      slotID,
		RequesterID: requesterID,
		Reference:   uuid.NewString(),
	}

	if slot.Occupancy < slot.Capacity {
		res.Status = domain.ReservationStatusConfirmed

		version, err := s.slots.CompareAndSetOccupancy(opCtx, slotID, slot.Version, slot.Occupancy+1)
		if err != nil {
			return nil, storeErr(err)
		}
		if err := s.reservations.Create(opCtx, res); err != nil {
			s.restoreOccupancy(opCtx, slotID, version, slot.Occupancy)
			return nil, storeErr(err)
		}
		if err := s.appendAudit(opCtx, res, domain.AuditActionCreate, requesterID, ""); err != nil {
			s.discard(opCtx, res.ID)
			s.restoreOccupancy(opCtx, slotID, version, slot.Occupancy)
			return nil, err
		}
		s.publish(opCtx, kafka.EventReservationConfirmed, res)
		return res, nil
	}

	res.Status = domain.ReservationStatusWaitlisted
	if err := s.reservations.Create(opCtx, res); err != nil {
		return nil, storeErr(err)
	}
	if err := s.appendAudit(opCtx, res, domain.AuditActionCreate, requesterID, ""); err != nil {
		s.discard(opCtx, res.ID)
		return nil, err
	}
	s.publish(opCtx, kafka.EventReservationWaitlisted, res)
	return res, nil
}

func (s *Service) CancelReservation(ctx context.Context, reference, actorID string) (*domain.Reservation, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	handle, err := s.reservations.GetByReference(opCtx, reference)
	if err != nil {
		return nil, storeErr(err)
	}

	l := s.locks.acquire(handle.SlotID)
	defer s.locks.release(handle.SlotID, l)

	// Re-read under the slot lock: a concurrent cancel may have won the race.
	current, err := s.reservations.Get(opCtx, handle.ID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !current.Status.CanTransitionTo(domain.ReservationStatusCancelled) {
		return nil, domain.ErrAlreadyCancelled
	}

	updated, err := s.reservations.UpdateStatus(opCtx, current.ID, domain.ReservationStatusCancelled)
	if err != nil {
		return nil, storeErr(err)
	}

	if current.Status != domain.ReservationStatusConfirmed {
		if err := s.appendAudit(opCtx, updated, domain.AuditActionCancel, actorID, string(current.Status)); err != nil {
			s.restoreStatus(opCtx, current.ID, current.Status)
			return nil, err
		}
		s.publish(opCtx, kafka.EventReservationCancelled, updated)
		return updated, nil
	}

	// A confirmed cancellation frees capacity: hand the spot to the oldest
	// waitlisted reservation, or lower occupancy when the waitlist is empty.
	slot, err := s.slots.GetSlot(opCtx, current.SlotID)
	if err != nil {
		s.restoreStatus(opCtx, current.ID, current.Status)
		return nil, storeErr(err)
	}
	if slot.Occupancy <= 0 {
		s.restoreStatus(opCtx, current.ID, current.Status)
		return nil, fmt.Errorf("%w: slot %d occupancy %d with confirmed reservation %d", domain.ErrInvariant, slot.ID, slot.Occupancy, current.ID)
	}

	candidate, err := s.reservations.OldestWaitlisted(opCtx, current.SlotID)
	if err != nil {
		s.restoreStatus(opCtx, current.ID, current.Status)
		return nil, storeErr(err)
	}

	var promoted *domain.Reservation
	var casVersion int64
	if candidate != nil {
		// Promotion keeps the confirmed count unchanged, occupancy stays.
		promoted, err = s.reservations.UpdateStatus(opCtx, candidate.ID, domain.ReservationStatusConfirmed)
		if err != nil {
			s.restoreStatus(opCtx, current.ID, current.Status)
			return nil, storeErr(err)
		}
	} else {
		casVersion, err = s.slots.CompareAndSetOccupancy(opCtx, slot.ID, slot.Version, slot.Occupancy-1)
		if err != nil {
			s.restoreStatus(opCtx, current.ID, current.Status)
			return nil, storeErr(err)
		}
	}

	rollback := func() {
		if promoted != nil {
			s.restoreStatus(opCtx, promoted.ID, domain.ReservationStatusWaitlisted)
		} else {
			s.restoreOccupancy(opCtx, slot.ID, casVersion, slot.Occupancy)
		}
		s.restoreStatus(opCtx, current.ID, current.Status)
	}

	if err := s.appendAudit(opCtx, updated, domain.AuditActionCancel, actorID, string(current.Status)); err != nil {
		rollback()
		return nil, err
	}
	if promoted != nil {
		if err := s.appendAudit(opCtx, promoted, domain.AuditActionPromote, actorID, string(domain.ReservationStatusWaitlisted)); err != nil {
			rollback()
			return nil, err
		}
	}

	s.publish(opCtx, kafka.EventReservationCancelled, updated)
	if promoted != nil {
		s.publish(opCtx, kafka.EventReservationConfirmed, promoted)
	}
	return updated, nil
}

func (s *Service) ListActiveReservations(ctx context.Context, slotID int64, limit, offset int) ([]domain.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	opCtx, cancel := s.readContext(ctx)
	defer cancel()

	out, err := s.reservations.ListActiveBySlot(opCtx, slotID, limit, offset)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *Service) GetSlotOccupancy(ctx context.Context, slotID int64) (int, int, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	// Taken inside the slot section so the answer is always consistent with
	// the confirmed-reservation count, never a mid-operation value.
	l := s.locks.acquire(slotID)
	defer s.locks.release(slotID, l)

	slot, err := s.slots.GetSlot(opCtx, slotID)
	if err != nil {
		return 0, 0, storeErr(err)
	}
	return slot.Occupancy, slot.Capacity, nil
}

func (s *Service) History(ctx context.Context, reference string, afterSeq int64, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	opCtx, cancel := s.readContext(ctx)
	defer cancel()

	res, err := s.reservations.GetByReference(opCtx, reference)
	if err != nil {
		return nil, storeErr(err)
	}
	entries, err := s.audit.History(opCtx, domain.EntityTypeReservation, res.ID, afterSeq, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return entries, nil
}

func (s *Service) appendAudit(ctx context.Context, res *domain.Reservation, action, actor, before string) error {
	entry := &domain.AuditEntry{
		EntityType: domain.EntityTypeReservation,
		EntityID:   res.ID,
		Action:     action,
		Actor:      actor,
		Before:     before,
		After:      string(res.Status),
		At:         s.clock.Now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("%w: audit append failed: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, res *domain.Reservation) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.ReservationEvent{
		Type:        eventType,
		Reference:   res.Reference,
		SlotID:      res.SlotID,
		RequesterID: res.RequesterID,
		Status:      string(res.Status),
		At:          s.clock.Now(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, res.Reference, event); err != nil {
		log.Printf("WARNING: failed to publish %s for reservation %s: %v", eventType, res.Reference, err)
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, res.Reference, event); err != nil {
			log.Printf("WARNING: failed to publish %s notification for reservation %s: %v", eventType, res.Reference, err)
		}
	}
}

// restoreStatus and restoreOccupancy undo writes of an aborting critical
// section. They run while the slot lock is still held, so the intermediate
// state was never observable; a failure here is a real invariant breach.
func (s *Service) restoreStatus(ctx context.Context, id int64, status domain.ReservationStatus) {
	if _, err := s.reservations.UpdateStatus(ctx, id, status); err != nil {
		log.Printf("ERROR: %v: failed to restore reservation %d to %s: %v", domain.ErrInvariant, id, status, err)
	}
}

func (s *Service) restoreOccupancy(ctx context.Context, slotID, version int64, occupancy int) {
	if _, err := s.slots.CompareAndSetOccupancy(ctx, slotID, version, occupancy); err != nil {
		log.Printf("ERROR: %v: failed to restore occupancy %d on slot %d: %v", domain.ErrInvariant, occupancy, slotID, err)
	}
}

func (s *Service) discard(ctx context.Context, id int64) {
	if err := s.reservations.Discard(ctx, id); err != nil {
		log.Printf("ERROR: %v: failed to discard uncommitted reservation %d: %v", domain.ErrInvariant, id, err)
	}
}

func storeErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

var _ ReservationUseCase = (*Service)(nil)
