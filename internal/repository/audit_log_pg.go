package repository

import (
	"context"

	"github.com/feelincoding/openmat/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is the append-only history of state transitions. Append is part
// of the originating operation: callers treat its failure as a failure of
// the whole operation, never as best-effort.
type AuditLog interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
	// History pages oldest-first through an entity's trail. Passing the Seq
	// of the last entry seen as afterSeq restarts the walk from there.
	History(ctx context.Context, entityType string, entityID, afterSeq int64, limit int) ([]domain.AuditEntry, error)
}

type PGAuditLog struct {
	db *pgxpool.Pool
}

func NewAuditLog(db *pgxpool.Pool) AuditLog {
	return &PGAuditLog{db: db}
}

func (r *PGAuditLog) Append(ctx context.Context, e *domain.AuditEntry) error {
	return r.db.QueryRow(ctx, `INSERT INTO audit_entries (entity_type, entity_id, action, actor, before_status, after_status, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`,
		e.EntityType, e.EntityID, e.Action, e.Actor, e.Before, e.After, e.At).
		Scan(&e.Seq)
}

func (r *PGAuditLog) History(ctx context.Context, entityType string, entityID, afterSeq int64, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT seq, entity_type, entity_id, action, actor, before_status, after_status, at
		FROM audit_entries WHERE entity_type=$1 AND entity_id=$2 AND seq > $3 ORDER BY at, seq LIMIT $4`,
		entityType, entityID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.Seq, &e.EntityType, &e.EntityID, &e.Action, &e.Actor, &e.Before, &e.After, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ AuditLog = (*PGAuditLog)(nil)
