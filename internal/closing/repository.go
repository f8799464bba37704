package closing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/approvals"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/db"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/reconciliation"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
)

// TxRepository spans the tables a close transaction touches: the
// period, its location rows, the approval and the snapshot sources.
// Keeping them behind one transaction boundary is what makes the close
// all-or-nothing.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, id int64) (periods.Period, error)
	ListLocationsForUpdate(ctx context.Context, periodID int64) ([]periods.PeriodLocation, error)
	SetPeriodStatus(ctx context.Context, id int64, status string, approvalID *int64, closedAt *time.Time) error
	InsertPendingApproval(ctx context.Context, periodID, requestedBy int64) (approvals.Approval, error)
	GetApprovalForUpdate(ctx context.Context, id int64) (approvals.Approval, error)
	SetApprovalDecision(ctx context.Context, id int64, status string, reviewedBy int64, comments string, at time.Time) error
	StockOnHand(ctx context.Context, locationIDs []int64) ([]stock.OnHandRow, error)
	Reconciliations(ctx context.Context, periodID int64) ([]reconciliation.Reconciliation, error)
	CloseLocation(ctx context.Context, periodID, locationID int64, closingValue decimal.Decimal, snapshot []byte, at time.Time) error
}

// Repository persists close transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("closing: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ReadState loads the period and its locations without locking, for
// previews.
func (r *Repository) ReadState(ctx context.Context, periodID int64) (periods.Period, []periods.PeriodLocation, error) {
	var p periods.Period
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, status, approval_id, created_by, created_at, closed_at
		FROM periods WHERE id = $1`, periodID,
	).Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status,
		&p.ApprovalID, &p.CreatedBy, &p.CreatedAt, &p.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, nil, periods.ErrNotFound
	}
	if err != nil {
		return periods.Period{}, nil, fmt.Errorf("read period: %w", err)
	}

	locations, err := scanLocations(r.pool.Query(ctx, periodLocationsQuery, periodID))
	if err != nil {
		return periods.Period{}, nil, err
	}
	return p, locations, nil
}

// PreviewSources batch-fetches the snapshot inputs outside any
// transaction.
func (r *Repository) PreviewSources(ctx context.Context, periodID int64, locationIDs []int64) ([]stock.OnHandRow, []reconciliation.Reconciliation, error) {
	stockRows, err := queryOnHand(ctx, r.pool, locationIDs)
	if err != nil {
		return nil, nil, err
	}
	recs, err := queryReconciliations(ctx, r.pool, periodID)
	if err != nil {
		return nil, nil, err
	}
	return stockRows, recs, nil
}

const periodLocationsQuery = `
	SELECT pl.id, pl.period_id, pl.location_id, l.name, pl.status, pl.ready_at,
	       pl.ready_by, pl.closed_at, pl.opening_value, pl.closing_value
	FROM period_locations pl
	JOIN locations l ON l.id = pl.location_id
	WHERE pl.period_id = $1
	ORDER BY pl.location_id`

func (t *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (periods.Period, error) {
	var p periods.Period
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, status, approval_id, created_by, created_at, closed_at
		FROM periods WHERE id = $1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status,
		&p.ApprovalID, &p.CreatedBy, &p.CreatedAt, &p.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, periods.ErrNotFound
	}
	if err != nil {
		return periods.Period{}, fmt.Errorf("period for update: %w", err)
	}
	return p, nil
}

func (t *txRepository) ListLocationsForUpdate(ctx context.Context, periodID int64) ([]periods.PeriodLocation, error) {
	return scanLocations(t.tx.Query(ctx, periodLocationsQuery+` FOR UPDATE OF pl`, periodID))
}

func (t *txRepository) SetPeriodStatus(ctx context.Context, id int64, status string, approvalID *int64, closedAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE periods SET status = $2, approval_id = $3, closed_at = $4 WHERE id = $1`,
		id, status, approvalID, closedAt)
	return err
}

func (t *txRepository) InsertPendingApproval(ctx context.Context, periodID, requestedBy int64) (approvals.Approval, error) {
	return approvals.InsertPendingTx(ctx, t.tx, approvals.EntityPeriodClose, periodID, requestedBy)
}

func (t *txRepository) GetApprovalForUpdate(ctx context.Context, id int64) (approvals.Approval, error) {
	return approvals.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txRepository) SetApprovalDecision(ctx context.Context, id int64, status string, reviewedBy int64, comments string, at time.Time) error {
	return approvals.SetDecisionTx(ctx, t.tx, id, status, reviewedBy, comments, at)
}

func (t *txRepository) StockOnHand(ctx context.Context, locationIDs []int64) ([]stock.OnHandRow, error) {
	return queryOnHand(ctx, t.tx, locationIDs)
}

func (t *txRepository) Reconciliations(ctx context.Context, periodID int64) ([]reconciliation.Reconciliation, error) {
	return queryReconciliations(ctx, t.tx, periodID)
}

func (t *txRepository) CloseLocation(ctx context.Context, periodID, locationID int64, closingValue decimal.Decimal, snapshot []byte, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE period_locations
		SET status = $3, closing_value = $4, snapshot = $5, closed_at = $6
		WHERE period_id = $1 AND location_id = $2`,
		periodID, locationID, periods.LocationClosed, closingValue, snapshot, at)
	if err != nil {
		return fmt.Errorf("close location %d: %w", locationID, err)
	}
	if tag.RowsAffected() == 0 {
		return periods.ErrLocationNotInPeriod
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryOnHand(ctx context.Context, q querier, locationIDs []int64) ([]stock.OnHandRow, error) {
	if len(locationIDs) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `
		SELECT sl.location_id, sl.item_id, i.code, i.name, i.unit, sl.quantity, sl.unit_cost
		FROM stock_levels sl
		JOIN items i ON i.id = sl.item_id
		WHERE sl.location_id = ANY($1) AND sl.quantity > 0
		ORDER BY sl.location_id, sl.item_id`, locationIDs)
	if err != nil {
		return nil, fmt.Errorf("stock on hand: %w", err)
	}
	defer rows.Close()

	var out []stock.OnHandRow
	for rows.Next() {
		var r stock.OnHandRow
		if err := rows.Scan(&r.LocationID, &r.ItemID, &r.ItemCode, &r.ItemName, &r.Unit, &r.Quantity, &r.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryReconciliations(ctx context.Context, q querier, periodID int64) ([]reconciliation.Reconciliation, error) {
	rows, err := q.Query(ctx, `
		SELECT id, period_id, location_id, opening_value, receipts, transfers_in,
		       transfers_out, issues, adjustments, back_charges, credits,
		       condemnations, actual_closing, completed_by, updated_at
		FROM reconciliations
		WHERE period_id = $1`, periodID)
	if err != nil {
		return nil, fmt.Errorf("reconciliations: %w", err)
	}
	defer rows.Close()

	var out []reconciliation.Reconciliation
	for rows.Next() {
		var rec reconciliation.Reconciliation
		if err := rows.Scan(&rec.ID, &rec.PeriodID, &rec.LocationID, &rec.OpeningValue,
			&rec.Receipts, &rec.TransfersIn, &rec.TransfersOut, &rec.Issues,
			&rec.Adjustments, &rec.BackCharges, &rec.Credits, &rec.Condemnations,
			&rec.ActualClosing, &rec.CompletedBy, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanLocations(rows pgx.Rows, err error) ([]periods.PeriodLocation, error) {
	if err != nil {
		return nil, fmt.Errorf("period locations: %w", err)
	}
	defer rows.Close()

	var out []periods.PeriodLocation
	for rows.Next() {
		var pl periods.PeriodLocation
		if err := rows.Scan(&pl.ID, &pl.PeriodID, &pl.LocationID, &pl.LocationName, &pl.Status,
			&pl.ReadyAt, &pl.ReadyBy, &pl.ClosedAt, &pl.OpeningValue, &pl.ClosingValue); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}
