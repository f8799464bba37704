package approvals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const approvalColumns = `id, entity_type, entity_id, status, requested_by, requested_at, reviewed_by, reviewed_at, comments`

// Repository reads approvals outside any transaction. The mutating
// operations live in the Tx helpers below so entity handlers can keep
// their side effects atomic with the decision.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id int64) (Approval, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id)
	return ScanApproval(row)
}

// List returns approvals filtered by status when status is non-empty,
// newest first.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]Approval, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE ($1 = '' OR status = $1)
		ORDER BY requested_at DESC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		a, err := ScanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertPendingTx creates a PENDING approval inside the caller's
// transaction.
func InsertPendingTx(ctx context.Context, tx pgx.Tx, entityType EntityType, entityID, requestedBy int64) (Approval, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO approvals (entity_type, entity_id, status, requested_by, requested_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING `+approvalColumns,
		entityType, entityID, StatusPending, requestedBy)
	return ScanApproval(row)
}

// GetForUpdateTx locks and returns an approval row inside the caller's
// transaction.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Approval, error) {
	row := tx.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1 FOR UPDATE`, id)
	return ScanApproval(row)
}

// SetDecisionTx records the review outcome inside the caller's
// transaction.
func SetDecisionTx(ctx context.Context, tx pgx.Tx, id int64, status string, reviewedBy int64, comments string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE approvals
		SET status = $2, reviewed_by = $3, reviewed_at = $4, comments = $5
		WHERE id = $1`,
		id, status, reviewedBy, at, comments)
	return err
}

// ScanApproval maps a row onto an Approval, translating no-rows into
// ErrNotFound.
func ScanApproval(row pgx.Row) (Approval, error) {
	var a Approval
	err := row.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Status,
		&a.RequestedBy, &a.RequestedAt, &a.ReviewedBy, &a.ReviewedAt, &a.Comments)
	if errors.Is(err, pgx.ErrNoRows) {
		return Approval{}, ErrNotFound
	}
	if err != nil {
		return Approval{}, fmt.Errorf("scan approval: %w", err)
	}
	return a, nil
}
