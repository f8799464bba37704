package reconciliation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

// AuditPort records reconciliation submissions.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

type Service struct {
	logger *slog.Logger
	repo   Repository
	audit  AuditPort
}

func NewService(logger *slog.Logger, repo Repository, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

// Save upserts a location's reconciliation for a period. Rewrites are
// allowed any number of times until the location is closed; the
// repository holds the location row lock across the CLOSED check and
// the write so a concurrent close cannot interleave.
func (s *Service) Save(ctx context.Context, in SaveInput) (Reconciliation, error) {
	if err := in.Validate(); err != nil {
		return Reconciliation{}, err
	}

	rec, err := s.repo.Save(ctx, in)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("save reconciliation: %w", err)
	}

	if s.audit == nil {
		return rec, nil
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  in.ActorID,
		Action:   "reconciliation:save",
		Entity:   "reconciliation",
		EntityID: fmt.Sprintf("%d", rec.ID),
		Meta: map[string]any{
			"period_id":      rec.PeriodID,
			"location_id":    rec.LocationID,
			"actual_closing": rec.ActualClosing.String(),
		},
	}); err != nil {
		s.logger.Warn("audit reconciliation save", slog.Any("error", err))
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, periodID, locationID int64) (Reconciliation, error) {
	return s.repo.Get(ctx, periodID, locationID)
}

func (s *Service) ListForPeriod(ctx context.Context, periodID int64) ([]Reconciliation, error) {
	return s.repo.ListForPeriod(ctx, periodID)
}
