package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadinessReminder handles the cron sweep over the open period: it
// logs which locations have not yet marked themselves ready so
// operators can chase them before month end.
type ReadinessReminder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewReadinessReminder(pool *pgxpool.Pool, logger *slog.Logger) *ReadinessReminder {
	return &ReadinessReminder{pool: pool, logger: logger}
}

// Handle runs one sweep.
func (r *ReadinessReminder) Handle(ctx context.Context, _ *asynq.Task) error {
	var periodID int64
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM periods WHERE status = 'OPEN'`).Scan(&periodID, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.code
		FROM period_locations pl
		JOIN locations l ON l.id = pl.location_id
		WHERE pl.period_id = $1 AND pl.status = 'OPEN'
		ORDER BY l.code`, periodID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var pending []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return err
		}
		pending = append(pending, code)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(pending) == 0 {
		r.logger.Info("all locations ready", slog.Int64("period_id", periodID), slog.String("period", name))
		return nil
	}
	r.logger.Warn("locations pending readiness",
		slog.Int64("period_id", periodID),
		slog.String("period", name),
		slog.Any("locations", pending),
	)
	return nil
}
