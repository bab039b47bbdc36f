package repository

import (
	"context"
	"errors"
	"time"

	"github.com/feelincoding/openmat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SlotStore is the durable record of facilities and slots. Occupancy writes
// go through CompareAndSetOccupancy, conditioned on the slot version, so two
// processes can never both apply a stale read.
type SlotStore interface {
	CreateFacility(ctx context.Context, f *domain.Facility) error
	GetFacility(ctx context.Context, id int64) (*domain.Facility, error)
	UpdateFacilityCapacity(ctx context.Context, id int64, capacity int) (*domain.Facility, error)

	// CreateSlot inserts the slot only if no active slot of the facility
	// overlaps its window; check and insert are atomic, so two concurrent
	// creates for overlapping windows can never both succeed. Returns
	// domain.ErrOverlapConflict on a clash.
	CreateSlot(ctx context.Context, s *domain.Slot) error
	GetSlot(ctx context.Context, id int64) (*domain.Slot, error)
	ListUpcoming(ctx context.Context, facilityID int64, after time.Time) ([]domain.Slot, error)
	HasOverlap(ctx context.Context, facilityID int64, start, end time.Time) (bool, error)
	CompareAndSetOccupancy(ctx context.Context, slotID, expectedVersion int64, occupancy int) (int64, error)
	RetireSlot(ctx context.Context, id int64) error
	// ReactivateSlot clears the retired flag. It compensates a retire whose
	// audit append failed; a retired slot is otherwise final.
	ReactivateSlot(ctx context.Context, id int64) error
	RetireEndedBefore(ctx context.Context, deadline time.Time) ([]domain.Slot, error)
	// DiscardSlot removes a slot that never became visible because its
	// creating operation aborted. Slots with any reservation history are
	// retired, never discarded.
	DiscardSlot(ctx context.Context, id int64) error
}

type PGSlotStore struct {
	db *pgxpool.Pool
}

func NewSlotStore(db *pgxpool.Pool) SlotStore {
	return &PGSlotStore{db: db}
}

func (r *PGSlotStore) CreateFacility(ctx context.Context, f *domain.Facility) error {
	return r.db.QueryRow(ctx, `INSERT INTO facilities (name, capacity) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		f.Name, f.Capacity).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

func (r *PGSlotStore) GetFacility(ctx context.Context, id int64) (*domain.Facility, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, capacity, created_at, updated_at FROM facilities WHERE id=$1`, id)
	var f domain.Facility
	if err := row.Scan(&f.ID, &f.Name, &f.Capacity, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *PGSlotStore) UpdateFacilityCapacity(ctx context.Context, id int64, capacity int) (*domain.Facility, error) {
	row := r.db.QueryRow(ctx, `UPDATE facilities SET capacity=$1, updated_at=now() WHERE id=$2 RETURNING id, name, capacity, created_at, updated_at`, capacity, id)
	var f domain.Facility
	if err := row.Scan(&f.ID, &f.Name, &f.Capacity, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *PGSlotStore) CreateSlot(ctx context.Context, s *domain.Slot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE cannot block on zero matching rows, so creators of one
	// facility serialize on an advisory lock instead.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, s.FacilityID); err != nil {
		return err
	}

	var overlaps bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM slots WHERE facility_id=$1 AND retired=false AND start_at < $3 AND end_at > $2
	)`, s.FacilityID, s.StartAt, s.EndAt).Scan(&overlaps); err != nil {
		return err
	}
	if overlaps {
		return domain.ErrOverlapConflict
	}

	if err := tx.QueryRow(ctx, `INSERT INTO slots (facility_id, start_at, end_at, capacity, occupancy, version, retired)
		VALUES ($1, $2, $3, $4, 0, 0, false)
		RETURNING id, occupancy, version, retired, created_at, updated_at`,
		s.FacilityID, s.StartAt, s.EndAt, s.Capacity).
		Scan(&s.ID, &s.Occupancy, &s.Version, &s.Retired, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGSlotStore) GetSlot(ctx context.Context, id int64) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `SELECT id, facility_id, start_at, end_at, capacity, occupancy, version, retired, created_at, updated_at FROM slots WHERE id=$1`, id)
	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *PGSlotStore) ListUpcoming(ctx context.Context, facilityID int64, after time.Time) ([]domain.Slot, error) {
	rows, err := r.db.Query(ctx, `SELECT id, facility_id, start_at, end_at, capacity, occupancy, version, retired, created_at, updated_at
		FROM slots WHERE facility_id=$1 AND retired=false AND start_at > $2 ORDER BY start_at`, facilityID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]domain.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

func (r *PGSlotStore) HasOverlap(ctx context.Context, facilityID int64, start, end time.Time) (bool, error) {
	var overlaps bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM slots WHERE facility_id=$1 AND retired=false AND start_at < $3 AND end_at > $2
	)`, facilityID, start, end).Scan(&overlaps)
	return overlaps, err
}

func (r *PGSlotStore) CompareAndSetOccupancy(ctx context.Context, slotID, expectedVersion int64, occupancy int) (int64, error) {
	var version int64
	err := r.db.QueryRow(ctx, `UPDATE slots SET occupancy=$1, version=version+1, updated_at=now()
		WHERE id=$2 AND version=$3 RETURNING version`, occupancy, slotID, expectedVersion).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Slot is gone or a concurrent writer advanced the version.
			return 0, domain.ErrUnavailable
		}
		return 0, err
	}
	return version, nil
}

func (r *PGSlotStore) RetireSlot(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE slots SET retired=true, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGSlotStore) ReactivateSlot(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE slots SET retired=false, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGSlotStore) RetireEndedBefore(ctx context.Context, deadline time.Time) ([]domain.Slot, error) {
	rows, err := r.db.Query(ctx, `UPDATE slots SET retired=true, updated_at=now()
		WHERE retired=false AND end_at <= $1
		RETURNING id, facility_id, start_at, end_at, capacity, occupancy, version, retired, created_at, updated_at`, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var retired []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		retired = append(retired, *s)
	}
	return retired, rows.Err()
}

func (r *PGSlotStore) DiscardSlot(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM slots WHERE id=$1 AND NOT EXISTS (SELECT 1 FROM reservations WHERE slot_id=$1)`, id)
	return err
}

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var s domain.Slot
	if err := row.Scan(&s.ID, &s.FacilityID, &s.StartAt, &s.EndAt, &s.Capacity, &s.Occupancy, &s.Version, &s.Retired, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

var _ SlotStore = (*PGSlotStore)(nil)
