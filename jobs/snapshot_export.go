package jobs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/closing"
)

// SnapshotExporter handles TaskSnapshotExport tasks: it flattens a
// closed period's location snapshots into one CSV file per period.
type SnapshotExporter struct {
	pool   *pgxpool.Pool
	dir    string
	logger *slog.Logger
}

func NewSnapshotExporter(pool *pgxpool.Pool, dir string, logger *slog.Logger) *SnapshotExporter {
	return &SnapshotExporter{pool: pool, dir: dir, logger: logger}
}

// Handle exports all snapshots for the payload's period.
func (e *SnapshotExporter) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SnapshotExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := e.pool.Query(ctx, `
		SELECT l.code, pl.snapshot
		FROM period_locations pl
		JOIN locations l ON l.id = pl.location_id
		WHERE pl.period_id = $1 AND pl.snapshot IS NOT NULL
		ORDER BY l.code`, payload.PeriodID)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("export dir: %w", err)
	}
	path := filepath.Join(e.dir, fmt.Sprintf("period_%d_snapshots.csv", payload.PeriodID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"location", "item_code", "item_name", "unit", "quantity", "unit_cost", "value"}); err != nil {
		return err
	}

	lines := 0
	for rows.Next() {
		var code string
		var raw []byte
		if err := rows.Scan(&code, &raw); err != nil {
			return err
		}
		var snapshot closing.Snapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return fmt.Errorf("decode snapshot for %s: %w", code, err)
		}
		for _, item := range snapshot.Items {
			if err := w.Write([]string{
				code, item.Code, item.Name, item.Unit,
				item.Quantity.String(), item.UnitCost.String(), item.Value.String(),
			}); err != nil {
				return err
			}
			lines++
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	e.logger.Info("snapshots exported",
		slog.Int64("period_id", payload.PeriodID),
		slog.String("path", path),
		slog.Int("lines", lines),
	)
	return nil
}
