package closing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/approvals"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/reconciliation"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ReadState(ctx context.Context, periodID int64) (periods.Period, []periods.PeriodLocation, error)
	PreviewSources(ctx context.Context, periodID int64, locationIDs []int64) ([]stock.OnHandRow, []reconciliation.Reconciliation, error)
}

// Locker fast-fails concurrent close operations on the same period.
type Locker interface {
	Acquire(ctx context.Context, periodID int64) error
	Release(ctx context.Context, periodID int64)
}

// AuditPort records close lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier enqueues the post-close background work. Failures are
// logged, never propagated: the close itself has already committed.
type Notifier interface {
	PeriodClosed(ctx context.Context, periodID int64, totalValue string) error
	ExportSnapshots(ctx context.Context, periodID int64) error
}

// Service runs the period close workflow: the close request, the
// approve orchestration and the reject path. It implements
// approvals.EntityHandler for PERIOD_CLOSE.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	locker   Locker
	audit    AuditPort
	notifier Notifier
	now      func() time.Time
	preview  singleflight.Group
}

func NewService(logger *slog.Logger, repo RepositoryPort, locker Locker, audit AuditPort, notifier Notifier) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		locker:   locker,
		audit:    audit,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Request moves an OPEN period to PENDING_CLOSE behind a new PENDING
// approval. Every location must be READY; otherwise nothing changes and
// the offending locations are reported.
func (s *Service) Request(ctx context.Context, periodID int64, actor shared.Actor) (approvals.Approval, error) {
	if err := s.acquire(ctx, periodID); err != nil {
		return approvals.Approval{}, err
	}
	defer s.release(ctx, periodID)

	var approval approvals.Approval
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != periods.PeriodOpen {
			return ErrPeriodNotOpen
		}

		locations, err := tx.ListLocationsForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if notReady := blockingLocations(locations); len(notReady) > 0 {
			return &NotReadyError{Locations: notReady}
		}

		approval, err = tx.InsertPendingApproval(ctx, periodID, actor.ID)
		if err != nil {
			return err
		}
		return tx.SetPeriodStatus(ctx, periodID, periods.PeriodPendingClose, &approval.ID, nil)
	})
	if err != nil {
		return approvals.Approval{}, err
	}

	s.record(ctx, actor.ID, "period_close:request", periodID, map[string]any{"approval_id": approval.ID})
	return approval, nil
}

// Approve executes the close. One transaction locks the approval and
// the period, re-verifies readiness, snapshots every location and
// flips the period to CLOSED. Any error rolls the whole transaction
// back and leaves the approval PENDING.
func (s *Service) Approve(ctx context.Context, approval approvals.Approval, actor shared.Actor, comments string) (any, error) {
	periodID := approval.EntityID
	if err := s.acquire(ctx, periodID); err != nil {
		return nil, err
	}
	defer s.release(ctx, periodID)

	closedAt := s.now().UTC()
	var summary Summary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetApprovalForUpdate(ctx, approval.ID)
		if err != nil {
			return err
		}
		if locked.Status != approvals.StatusPending {
			return approvals.ErrAlreadyProcessed
		}

		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != periods.PeriodPendingClose {
			return ErrPeriodNotPendingClose
		}

		locations, err := tx.ListLocationsForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if notReady := blockingLocations(locations); len(notReady) > 0 {
			return &NotReadyError{Locations: notReady}
		}

		var toClose []int64
		for _, loc := range locations {
			if loc.Status != periods.LocationClosed {
				toClose = append(toClose, loc.LocationID)
			}
		}
		stockRows, err := tx.StockOnHand(ctx, toClose)
		if err != nil {
			return err
		}
		recs, err := tx.Reconciliations(ctx, periodID)
		if err != nil {
			return err
		}
		snapshots := BuildSnapshots(toClose, stockRows, recs, closedAt)

		total := decimal.Zero
		for _, locationID := range toClose {
			snapshot := snapshots[locationID]
			snapshot.SnapshotID = snapshotID(periodID, locationID)
			data, err := json.Marshal(snapshot)
			if err != nil {
				return fmt.Errorf("closing: encode snapshot for location %d: %w", locationID, err)
			}
			if err := tx.CloseLocation(ctx, periodID, locationID, snapshot.TotalValue, data, closedAt); err != nil {
				return err
			}
			total = total.Add(snapshot.TotalValue)
		}

		if err := tx.SetPeriodStatus(ctx, periodID, periods.PeriodClosed, p.ApprovalID, &closedAt); err != nil {
			return err
		}
		if err := tx.SetApprovalDecision(ctx, approval.ID, approvals.StatusApproved, actor.ID, comments, closedAt); err != nil {
			return err
		}

		summary = Summary{
			PeriodID:          periodID,
			TotalLocations:    len(toClose),
			TotalClosingValue: total,
			ClosedAt:          closedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor.ID, "period_close:approve", periodID, map[string]any{
		"approval_id": approval.ID,
		"locations":   summary.TotalLocations,
		"total_value": summary.TotalClosingValue.String(),
	})
	s.notify(ctx, periodID, summary)
	return summary, nil
}

// Reject returns a PENDING_CLOSE period to OPEN. Location readiness is
// kept so the close can be re-requested after the concern is addressed.
func (s *Service) Reject(ctx context.Context, approval approvals.Approval, actor shared.Actor, comments string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetApprovalForUpdate(ctx, approval.ID)
		if err != nil {
			return err
		}
		if locked.Status != approvals.StatusPending {
			return approvals.ErrAlreadyProcessed
		}

		p, err := tx.GetPeriodForUpdate(ctx, approval.EntityID)
		if err != nil {
			return err
		}
		if p.Status != periods.PeriodPendingClose {
			return ErrPeriodNotPendingClose
		}

		if err := tx.SetApprovalDecision(ctx, approval.ID, approvals.StatusRejected, actor.ID, comments, s.now().UTC()); err != nil {
			return err
		}
		return tx.SetPeriodStatus(ctx, approval.EntityID, periods.PeriodOpen, nil, nil)
	})
	if err != nil {
		return err
	}

	s.record(ctx, actor.ID, "period_close:reject", approval.EntityID, map[string]any{
		"approval_id": approval.ID,
		"comments":    comments,
	})
	return nil
}

// Preview computes the snapshots a close would produce right now,
// without writing anything. Concurrent previews of the same period
// share one computation.
func (s *Service) Preview(ctx context.Context, periodID int64) (Preview, error) {
	result, err, _ := s.preview.Do(strconv.FormatInt(periodID, 10), func() (any, error) {
		return s.buildPreview(ctx, periodID)
	})
	if err != nil {
		return Preview{}, err
	}
	return result.(Preview), nil
}

func (s *Service) buildPreview(ctx context.Context, periodID int64) (Preview, error) {
	p, locations, err := s.repo.ReadState(ctx, periodID)
	if err != nil {
		return Preview{}, err
	}
	if p.Status != periods.PeriodOpen && p.Status != periods.PeriodPendingClose {
		return Preview{}, ErrPeriodNotOpen
	}

	var locationIDs []int64
	for _, loc := range locations {
		if loc.Status != periods.LocationClosed {
			locationIDs = append(locationIDs, loc.LocationID)
		}
	}
	stockRows, recs, err := s.repo.PreviewSources(ctx, periodID, locationIDs)
	if err != nil {
		return Preview{}, err
	}
	snapshots := BuildSnapshots(locationIDs, stockRows, recs, s.now().UTC())

	preview := Preview{
		PeriodID:     periodID,
		PeriodStatus: p.Status,
		AllReady:     len(blockingLocations(locations)) == 0,
	}
	for _, loc := range locations {
		lp := LocationPreview{LocationID: loc.LocationID, Status: loc.Status}
		if snapshot, ok := snapshots[loc.LocationID]; ok {
			snapshot.SnapshotID = snapshotID(periodID, loc.LocationID)
			lp.Snapshot = &snapshot
			preview.TotalValue = preview.TotalValue.Add(snapshot.TotalValue)
		}
		preview.Locations = append(preview.Locations, lp)
	}
	return preview, nil
}

// blockingLocations returns the locations that would block a close.
// Already-CLOSED locations do not block.
func blockingLocations(locations []periods.PeriodLocation) []NotReadyLocation {
	var out []NotReadyLocation
	for _, loc := range locations {
		if loc.Status != periods.LocationReady && loc.Status != periods.LocationClosed {
			out = append(out, NotReadyLocation{LocationID: loc.LocationID, Name: loc.LocationName, Status: loc.Status})
		}
	}
	return out
}

func (s *Service) acquire(ctx context.Context, periodID int64) error {
	if s.locker == nil {
		return nil
	}
	if err := s.locker.Acquire(ctx, periodID); err != nil {
		if errors.Is(err, shared.ErrPeriodLocked) {
			return ErrPeriodLocked
		}
		return err
	}
	return nil
}

func (s *Service) release(ctx context.Context, periodID int64) {
	if s.locker != nil {
		s.locker.Release(ctx, periodID)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, periodID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "period",
		EntityID: strconv.FormatInt(periodID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit period close", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, periodID int64, summary Summary) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PeriodClosed(ctx, periodID, summary.TotalClosingValue.String()); err != nil {
		s.logger.Warn("enqueue close notification", slog.Int64("period_id", periodID), slog.Any("error", err))
	}
	if err := s.notifier.ExportSnapshots(ctx, periodID); err != nil {
		s.logger.Warn("enqueue snapshot export", slog.Int64("period_id", periodID), slog.Any("error", err))
	}
}
