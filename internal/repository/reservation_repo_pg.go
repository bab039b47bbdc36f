package repository

import (
	"context"
	"errors"

	"github.com/feelincoding/openmat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	Get(ctx context.Context, id int64) (*domain.Reservation, error)
	GetByReference(ctx context.Context, reference string) (*domain.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ReservationStatus) (*domain.Reservation, error)
	ListActiveBySlot(ctx context.Context, slotID int64, limit, offset int) ([]domain.Reservation, error)
	HasActiveBySlotAndRequester(ctx context.Context, slotID int64, requesterID string) (bool, error)
	// OldestWaitlisted returns the promotion candidate: earliest created_at,
	// ties broken by id. Returns (nil, nil) when the waitlist is empty.
	OldestWaitlisted(ctx context.Context, slotID int64) (*domain.Reservation, error)
	// Discard removes a reservation whose creating operation aborted before
	// commit. Committed reservations are never deleted.
	Discard(ctx context.Context, id int64) error
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

func (r *PGReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	return r.db.QueryRow(ctx, `INSERT INTO reservations (slot_id, requester_id, reference, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		res.SlotID, res.RequesterID, res.Reference, res.Status).
		Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
}

func (r *PGReservationRepository) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT id, slot_id, requester_id, reference, status, created_at, updated_at FROM reservations WHERE id=$1`, id)
	return scanReservation(row)
}

func (r *PGReservationRepository) GetByReference(ctx context.Context, reference string) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT id, slot_id, requester_id, reference, status, created_at, updated_at FROM reservations WHERE reference=$1`, reference)
	return scanReservation(row)
}

func (r *PGReservationRepository) UpdateStatus(ctx context.Context, id int64, status domain.ReservationStatus) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `UPDATE reservations SET status=$1, updated_at=now() WHERE id=$2 RETURNING id, slot_id, requester_id, reference, status, created_at, updated_at`, status, id)
	return scanReservation(row)
}

func (r *PGReservationRepository) ListActiveBySlot(ctx context.Context, slotID int64, limit, offset int) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT id, slot_id, requester_id, reference, status, created_at, updated_at
		FROM reservations WHERE slot_id=$1 AND status <> $2 ORDER BY created_at, id LIMIT $3 OFFSET $4`,
		slotID, domain.ReservationStatusCancelled, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *PGReservationRepository) HasActiveBySlotAndRequester(ctx context.Context, slotID int64, requesterID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM reservations WHERE slot_id=$1 AND requester_id=$2 AND status <> $3
	)`, slotID, requesterID, domain.ReservationStatusCancelled).Scan(&exists)
	return exists, err
}

func (r *PGReservationRepository) OldestWaitlisted(ctx context.Context, slotID int64) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT id, slot_id, requester_id, reference, status, created_at, updated_at
		FROM reservations WHERE slot_id=$1 AND status=$2 ORDER BY created_at, id LIMIT 1`,
		slotID, domain.ReservationStatusWaitlisted)
	res, err := scanReservation(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return res, err
}

func (r *PGReservationRepository) Discard(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	return err
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := row.Scan(&res.ID, &res.SlotID, &res.RequesterID, &res.Reference, &res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
