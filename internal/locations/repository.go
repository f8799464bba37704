package locations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines location data access.
type Repository interface {
	ListActive(ctx context.Context) ([]Location, error)
	List(ctx context.Context) ([]Location, error)
	Get(ctx context.Context, id int64) (Location, error)
	Insert(ctx context.Context, in CreateInput) (Location, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const locationColumns = `id, code, name, kind, active, created_at`

func (r *pgRepository) ListActive(ctx context.Context) ([]Location, error) {
	return r.query(ctx, `SELECT `+locationColumns+` FROM locations WHERE active ORDER BY code`)
}

func (r *pgRepository) List(ctx context.Context) ([]Location, error) {
	return r.query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY code`)
}

func (r *pgRepository) query(ctx context.Context, sql string, args ...any) ([]Location, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Code, &loc.Name, &loc.Kind, &loc.Active, &loc.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, loc)
	}
	return list, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id=$1`, id).
		Scan(&loc.ID, &loc.Code, &loc.Name, &loc.Kind, &loc.Active, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *pgRepository) Insert(ctx context.Context, in CreateInput) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (code, name, kind, active, created_at)
VALUES ($1, $2, $3, TRUE, NOW())
RETURNING `+locationColumns, in.Code, in.Name, string(in.Kind)).
		Scan(&loc.ID, &loc.Code, &loc.Name, &loc.Kind, &loc.Active, &loc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Location{}, ErrDuplicateCode
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *pgRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
