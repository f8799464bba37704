package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/db"
)

// Repository persists reconciliations.
type Repository interface {
	Save(ctx context.Context, in SaveInput) (Reconciliation, error)
	Get(ctx context.Context, periodID, locationID int64) (Reconciliation, error)
	ListForPeriod(ctx context.Context, periodID int64) ([]Reconciliation, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const reconciliationColumns = `id, period_id, location_id, opening_value, receipts,
	transfers_in, transfers_out, issues, adjustments, back_charges, credits,
	condemnations, actual_closing, completed_by, updated_at`

// Save locks the guarding period_locations row, refuses CLOSED
// locations and upserts in the same transaction, so a concurrent close
// cannot slip between the check and the write.
func (r *pgRepository) Save(ctx context.Context, in SaveInput) (Reconciliation, error) {
	var rec Reconciliation
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
			SELECT status FROM period_locations
			WHERE period_id = $1 AND location_id = $2
			FOR UPDATE`,
			in.PeriodID, in.LocationID,
		).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("period location status: %w", err)
		}
		if status == "CLOSED" {
			return ErrLocationClosed
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO reconciliations (
				period_id, location_id, opening_value, receipts, transfers_in,
				transfers_out, issues, adjustments, back_charges, credits,
				condemnations, actual_closing, completed_by, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
			ON CONFLICT (period_id, location_id) DO UPDATE SET
				opening_value = EXCLUDED.opening_value,
				receipts = EXCLUDED.receipts,
				transfers_in = EXCLUDED.transfers_in,
				transfers_out = EXCLUDED.transfers_out,
				issues = EXCLUDED.issues,
				adjustments = EXCLUDED.adjustments,
				back_charges = EXCLUDED.back_charges,
				credits = EXCLUDED.credits,
				condemnations = EXCLUDED.condemnations,
				actual_closing = EXCLUDED.actual_closing,
				completed_by = EXCLUDED.completed_by,
				updated_at = now()
			RETURNING `+reconciliationColumns,
			in.PeriodID, in.LocationID, in.OpeningValue, in.Receipts, in.TransfersIn,
			in.TransfersOut, in.Issues, in.Adjustments, in.BackCharges, in.Credits,
			in.Condemnations, in.ActualClosing, in.ActorID,
		)
		rec, err = scanReconciliation(row)
		return err
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return rec, nil
}

func (r *pgRepository) Get(ctx context.Context, periodID, locationID int64) (Reconciliation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reconciliationColumns+`
		FROM reconciliations
		WHERE period_id = $1 AND location_id = $2`,
		periodID, locationID,
	)
	rec, err := scanReconciliation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reconciliation{}, ErrNotFound
	}
	return rec, err
}

func (r *pgRepository) ListForPeriod(ctx context.Context, periodID int64) ([]Reconciliation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reconciliationColumns+`
		FROM reconciliations
		WHERE period_id = $1
		ORDER BY location_id`,
		periodID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	defer rows.Close()

	var out []Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanReconciliation(row pgx.Row) (Reconciliation, error) {
	var rec Reconciliation
	err := row.Scan(
		&rec.ID, &rec.PeriodID, &rec.LocationID, &rec.OpeningValue, &rec.Receipts,
		&rec.TransfersIn, &rec.TransfersOut, &rec.Issues, &rec.Adjustments,
		&rec.BackCharges, &rec.Credits, &rec.Condemnations, &rec.ActualClosing,
		&rec.CompletedBy, &rec.UpdatedAt,
	)
	if err != nil {
		return Reconciliation{}, err
	}
	return rec, nil
}
