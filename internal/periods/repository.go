package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/db"
)

// TxRepository exposes the transactional operations the service
// composes into lifecycle transitions.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, id int64) (Period, error)
	GetLocationForUpdate(ctx context.Context, periodID, locationID int64) (PeriodLocation, error)
	SetPeriodStatus(ctx context.Context, id int64, status string) error
	SetLocationReady(ctx context.Context, periodID, locationID, readyBy int64, at time.Time) error
	ClearLocationReady(ctx context.Context, periodID, locationID int64) error
	HasReconciliation(ctx context.Context, periodID, locationID int64) (bool, error)
	CountOpenPeriods(ctx context.Context) (int, error)
	CountOverlapping(ctx context.Context, start, end time.Time) (int, error)
	InsertPeriod(ctx context.Context, p Period) (int64, error)
	InsertLocations(ctx context.Context, periodID int64, openings map[int64]decimal.NullDecimal) (int, error)
	ActiveLocationIDs(ctx context.Context) ([]int64, error)
	SourceClosings(ctx context.Context, periodID int64) (map[int64]decimal.NullDecimal, error)
	CopyPrices(ctx context.Context, sourceID, targetID, setBy int64) (int, error)
	UpsertPrice(ctx context.Context, price ItemPrice) error
}

// Repository persists periods in PostgreSQL.
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
		return errors.New("periods: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const periodColumns = `id, name, start_date, end_date, status, approval_id, created_by, created_at, closed_at`

func (r *Repository) GetPeriod(ctx context.Context, id int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1`, id)
	return scanPeriod(row)
}

func (r *Repository) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ListLocations(ctx context.Context, periodID int64) ([]PeriodLocation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pl.id, pl.period_id, pl.location_id, l.name, pl.status, pl.ready_at,
		       pl.ready_by, pl.closed_at, pl.opening_value, pl.closing_value
		FROM period_locations pl
		JOIN locations l ON l.id = pl.location_id
		WHERE pl.period_id = $1
		ORDER BY pl.location_id`, periodID)
	if err != nil {
		return nil, fmt.Errorf("list period locations: %w", err)
	}
	defer rows.Close()

	var out []PeriodLocation
	for rows.Next() {
		var pl PeriodLocation
		if err := rows.Scan(&pl.ID, &pl.PeriodID, &pl.LocationID, &pl.LocationName, &pl.Status,
			&pl.ReadyAt, &pl.ReadyBy, &pl.ClosedAt, &pl.OpeningValue, &pl.ClosingValue); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// OpenPeriodCovering finds the OPEN period whose date range contains
// the given date.
func (r *Repository) OpenPeriodCovering(ctx context.Context, date time.Time) (Period, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+periodColumns+` FROM periods
		WHERE status = $1 AND start_date <= $2 AND end_date >= $2`,
		PeriodOpen, date)
	p, err := scanPeriod(row)
	if errors.Is(err, ErrNotFound) {
		return Period{}, ErrNoOpenPeriod
	}
	return p, err
}

func (t *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1 FOR UPDATE`, id)
	return scanPeriod(row)
}

func (t *txRepository) GetLocationForUpdate(ctx context.Context, periodID, locationID int64) (PeriodLocation, error) {
	var pl PeriodLocation
	err := t.tx.QueryRow(ctx, `
		SELECT id, period_id, location_id, status, ready_at, ready_by, closed_at,
		       opening_value, closing_value
		FROM period_locations
		WHERE period_id = $1 AND location_id = $2
		FOR UPDATE`, periodID, locationID,
	).Scan(&pl.ID, &pl.PeriodID, &pl.LocationID, &pl.Status,
		&pl.ReadyAt, &pl.ReadyBy, &pl.ClosedAt, &pl.OpeningValue, &pl.ClosingValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return PeriodLocation{}, ErrLocationNotInPeriod
	}
	if err != nil {
		return PeriodLocation{}, fmt.Errorf("period location for update: %w", err)
	}
	return pl, nil
}

func (t *txRepository) SetPeriodStatus(ctx context.Context, id int64, status string) error {
	_, err := t.tx.Exec(ctx, `UPDATE periods SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (t *txRepository) SetLocationReady(ctx context.Context, periodID, locationID, readyBy int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE period_locations
		SET status = $3, ready_at = $4, ready_by = $5
		WHERE period_id = $1 AND location_id = $2`,
		periodID, locationID, LocationReady, at, readyBy)
	return err
}

func (t *txRepository) ClearLocationReady(ctx context.Context, periodID, locationID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE period_locations
		SET status = $3, ready_at = NULL, ready_by = NULL
		WHERE period_id = $1 AND location_id = $2`,
		periodID, locationID, LocationOpen)
	return err
}

func (t *txRepository) HasReconciliation(ctx context.Context, periodID, locationID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reconciliations WHERE period_id = $1 AND location_id = $2)`,
		periodID, locationID).Scan(&exists)
	return exists, err
}

func (t *txRepository) CountOpenPeriods(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT count(*) FROM periods WHERE status = $1`, PeriodOpen).Scan(&n)
	return n, err
}

// CountOverlapping counts periods whose date range intersects [start, end].
func (t *txRepository) CountOverlapping(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM periods
		WHERE start_date <= $2 AND end_date >= $1`,
		start, end).Scan(&n)
	return n, err
}

func (t *txRepository) InsertPeriod(ctx context.Context, p Period) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO periods (name, start_date, end_date, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id`,
		p.Name, p.StartDate, p.EndDate, p.Status, p.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert period: %w", err)
	}
	return id, nil
}

func (t *txRepository) InsertLocations(ctx context.Context, periodID int64, openings map[int64]decimal.NullDecimal) (int, error) {
	count := 0
	for locationID, opening := range openings {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO period_locations (period_id, location_id, status, opening_value)
			VALUES ($1, $2, $3, $4)`,
			periodID, locationID, LocationOpen, opening)
		if err != nil {
			return count, fmt.Errorf("insert period location: %w", err)
		}
		count++
	}
	return count, nil
}

func (t *txRepository) ActiveLocationIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM locations WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("active locations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SourceClosings maps location_id to the closing value recorded when
// the source period was closed. Only locations still active carry over.
func (t *txRepository) SourceClosings(ctx context.Context, periodID int64) (map[int64]decimal.NullDecimal, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT pl.location_id, pl.closing_value
		FROM period_locations pl
		JOIN locations l ON l.id = pl.location_id
		WHERE pl.period_id = $1 AND l.active`, periodID)
	if err != nil {
		return nil, fmt.Errorf("source closings: %w", err)
	}
	defer rows.Close()

	out := map[int64]decimal.NullDecimal{}
	for rows.Next() {
		var locationID int64
		var closing decimal.NullDecimal
		if err := rows.Scan(&locationID, &closing); err != nil {
			return nil, err
		}
		out[locationID] = closing
	}
	return out, rows.Err()
}

func (t *txRepository) CopyPrices(ctx context.Context, sourceID, targetID, setBy int64) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO period_item_prices (period_id, item_id, unit_price, set_by, updated_at)
		SELECT $2, p.item_id, p.unit_price, $3, now()
		FROM period_item_prices p
		JOIN items i ON i.id = p.item_id AND i.active
		WHERE p.period_id = $1
		ON CONFLICT (period_id, item_id) DO UPDATE SET
			unit_price = EXCLUDED.unit_price,
			set_by = EXCLUDED.set_by,
			updated_at = now()`,
		sourceID, targetID, setBy)
	if err != nil {
		return 0, fmt.Errorf("copy prices: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *txRepository) UpsertPrice(ctx context.Context, price ItemPrice) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO period_item_prices (period_id, item_id, unit_price, set_by, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (period_id, item_id) DO UPDATE SET
			unit_price = EXCLUDED.unit_price,
			set_by = EXCLUDED.set_by,
			updated_at = now()`,
		price.PeriodID, price.ItemID, price.UnitPrice, price.SetBy)
	return err
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status,
		&p.ApprovalID, &p.CreatedBy, &p.CreatedAt, &p.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrNotFound
	}
	if err != nil {
		return Period{}, fmt.Errorf("scan period: %w", err)
	}
	return p, nil
}
