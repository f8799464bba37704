package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/db"
)

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetLevelForUpdate(ctx context.Context, locationID, itemID int64) (Level, error)
	UpsertLevel(ctx context.Context, level Level) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListOnHand returns positive stock levels for the given locations in a
// single batched query, joined with item master data.
func (r *Repository) ListOnHand(ctx context.Context, locationIDs []int64) ([]OnHandRow, error) {
	if r == nil {
		return nil, errors.New("stock: repository not initialised")
	}
	if len(locationIDs) == 0 {
		return []OnHandRow{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT sl.location_id, sl.item_id, i.code, i.name, i.unit, sl.quantity, sl.unit_cost
FROM stock_levels sl
JOIN items i ON i.id = sl.item_id
WHERE sl.location_id = ANY($1) AND sl.quantity > 0
ORDER BY sl.location_id, i.code`, locationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	onHand := []OnHandRow{}
	for rows.Next() {
		var row OnHandRow
		if err := rows.Scan(&row.LocationID, &row.ItemID, &row.ItemCode, &row.ItemName, &row.Unit, &row.Quantity, &row.UnitCost); err != nil {
			return nil, err
		}
		onHand = append(onHand, row)
	}
	return onHand, rows.Err()
}

// ListMovements returns recent movements for a location, newest first.
func (r *Repository) ListMovements(ctx context.Context, locationID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, kind, location_id, item_id, quantity, unit_cost, posted_by, posted_at, note
FROM stock_movements
WHERE location_id = $1
ORDER BY posted_at DESC, id DESC
LIMIT $2`, locationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Kind, &m.LocationID, &m.ItemID, &m.Quantity, &m.UnitCost, &m.PostedBy, &m.PostedAt, &m.Note); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetLevelForUpdate(ctx context.Context, locationID, itemID int64) (Level, error) {
	var level Level
	err := r.tx.QueryRow(ctx, `SELECT location_id, item_id, quantity, unit_cost, updated_at
FROM stock_levels WHERE location_id=$1 AND item_id=$2 FOR UPDATE`, locationID, itemID).
		Scan(&level.LocationID, &level.ItemID, &level.Quantity, &level.UnitCost, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{LocationID: locationID, ItemID: itemID}, ErrLevelNotFound
		}
		return Level{}, err
	}
	return level, nil
}

func (r *txRepository) UpsertLevel(ctx context.Context, level Level) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_levels (location_id, item_id, quantity, unit_cost, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (location_id, item_id)
DO UPDATE SET quantity = EXCLUDED.quantity, unit_cost = EXCLUDED.unit_cost, updated_at = NOW()`,
		level.LocationID, level.ItemID, level.Quantity, level.UnitCost)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (kind, location_id, item_id, quantity, unit_cost, posted_by, posted_at, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		string(m.Kind), m.LocationID, m.ItemID, m.Quantity, m.UnitCost, m.PostedBy, m.PostedAt, m.Note).Scan(&id)
	return id, err
}
