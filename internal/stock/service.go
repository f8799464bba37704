package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListOnHand(ctx context.Context, locationIDs []int64) ([]OnHandRow, error)
	ListMovements(ctx context.Context, locationID int64, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PostingGate rejects movements dated outside the open accounting period.
// Implemented by the periods service.
type PostingGate interface {
	EnsureOpenForPosting(ctx context.Context, date time.Time) error
}

// Service coordinates stock movement posting and on-hand queries.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  AuditPort
	gate   PostingGate
	now    func() time.Time
}

// NewService builds Service. audit and gate may be nil in tests.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, gate PostingGate) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, gate: gate, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OnHand returns positive stock levels for the given locations.
func (s *Service) OnHand(ctx context.Context, locationIDs []int64) ([]OnHandRow, error) {
	return s.repo.ListOnHand(ctx, locationIDs)
}

// Movements lists recent movements for a location.
func (s *Service) Movements(ctx context.Context, locationID int64, limit int) ([]Movement, error) {
	if locationID <= 0 {
		return nil, errors.New("stock: location required")
	}
	return s.repo.ListMovements(ctx, locationID, limit)
}

// PostDelivery receives goods into a location, updating the
// weighted-average cost.
func (s *Service) PostDelivery(ctx context.Context, in DeliveryInput) (Level, error) {
	if in.LocationID == 0 || in.ItemID == 0 {
		return Level{}, errors.New("stock: location and item required")
	}
	if in.Quantity.Sign() <= 0 {
		return Level{}, ErrInvalidQuantity
	}
	if in.UnitCost.Sign() < 0 {
		return Level{}, ErrInvalidUnitCost
	}
	level, _, err := s.post(ctx, movement{
		Kind:       MovementDelivery,
		LocationID: in.LocationID,
		ItemID:     in.ItemID,
		QtyChange:  in.Quantity,
		UnitCost:   in.UnitCost,
		Note:       in.Note,
		ActorID:    in.ActorID,
	})
	return level, err
}

// PostIssue consumes goods out of a location at its current average cost.
func (s *Service) PostIssue(ctx context.Context, in IssueInput) (Level, error) {
	if in.LocationID == 0 || in.ItemID == 0 {
		return Level{}, errors.New("stock: location and item required")
	}
	if in.Quantity.Sign() <= 0 {
		return Level{}, ErrInvalidQuantity
	}
	level, _, err := s.post(ctx, movement{
		Kind:       MovementIssue,
		LocationID: in.LocationID,
		ItemID:     in.ItemID,
		QtyChange:  in.Quantity.Neg(),
		Note:       in.Note,
		ActorID:    in.ActorID,
	})
	return level, err
}

// PostAdjustment corrects a balance up or down.
func (s *Service) PostAdjustment(ctx context.Context, in AdjustmentInput) (Level, error) {
	if in.LocationID == 0 || in.ItemID == 0 {
		return Level{}, errors.New("stock: location and item required")
	}
	if in.Quantity.IsZero() {
		return Level{}, ErrInvalidQuantity
	}
	if in.Quantity.Sign() > 0 && in.UnitCost.Sign() < 0 {
		return Level{}, ErrInvalidUnitCost
	}
	level, _, err := s.post(ctx, movement{
		Kind:       MovementAdjustment,
		LocationID: in.LocationID,
		ItemID:     in.ItemID,
		QtyChange:  in.Quantity,
		UnitCost:   in.UnitCost,
		Note:       in.Note,
		ActorID:    in.ActorID,
	})
	return level, err
}

// PostTransfer moves stock between locations as OUT at the source's
// average cost followed by IN at that same cost. Both legs commit in
// one transaction; a failed inbound leg rolls the deduction back.
func (s *Service) PostTransfer(ctx context.Context, in TransferInput) (Level, Level, error) {
	if in.FromLocationID == 0 || in.ToLocationID == 0 || in.ItemID == 0 {
		return Level{}, Level{}, errors.New("stock: locations and item required")
	}
	if in.FromLocationID == in.ToLocationID {
		return Level{}, Level{}, errors.New("stock: source and destination must differ")
	}
	if in.Quantity.Sign() <= 0 {
		return Level{}, Level{}, ErrInvalidQuantity
	}

	now := s.now().UTC()
	if s.gate != nil {
		if err := s.gate.EnsureOpenForPosting(ctx, now); err != nil {
			return Level{}, Level{}, err
		}
	}

	outMove := movement{
		Kind:       MovementTransferOut,
		LocationID: in.FromLocationID,
		ItemID:     in.ItemID,
		QtyChange:  in.Quantity.Neg(),
		Note:       fmt.Sprintf("transfer to %d: %s", in.ToLocationID, in.Note),
		ActorID:    in.ActorID,
	}
	inMove := movement{
		Kind:       MovementTransferIn,
		LocationID: in.ToLocationID,
		ItemID:     in.ItemID,
		QtyChange:  in.Quantity,
		Note:       fmt.Sprintf("transfer from %d: %s", in.FromLocationID, in.Note),
		ActorID:    in.ActorID,
	}

	var out, inLevel Level
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var movedCost decimal.Decimal
		var err error
		out, movedCost, err = applyMovement(ctx, tx, outMove, now)
		if err != nil {
			return err
		}
		// The inbound leg is valued at the cost the outbound leg carried out.
		inMove.UnitCost = movedCost
		inLevel, _, err = applyMovement(ctx, tx, inMove, now)
		return err
	})
	if err != nil {
		return Level{}, Level{}, err
	}

	s.record(ctx, outMove)
	s.record(ctx, inMove)
	return out, inLevel, nil
}

type movement struct {
	Kind       MovementKind
	LocationID int64
	ItemID     int64
	QtyChange  decimal.Decimal
	UnitCost   decimal.Decimal
	Note       string
	ActorID    int64
}

func (s *Service) post(ctx context.Context, m movement) (Level, decimal.Decimal, error) {
	now := s.now().UTC()
	if s.gate != nil {
		if err := s.gate.EnsureOpenForPosting(ctx, now); err != nil {
			return Level{}, decimal.Zero, err
		}
	}
	var result Level
	var movedCost decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, movedCost, err = applyMovement(ctx, tx, m, now)
		return err
	})
	if err != nil {
		return Level{}, decimal.Zero, err
	}
	s.record(ctx, m)
	return result, movedCost, nil
}

// applyMovement records one movement and updates its level inside the
// caller's transaction. It returns the new level and the unit cost the
// movement itself carried.
func applyMovement(ctx context.Context, tx TxRepository, m movement, now time.Time) (Level, decimal.Decimal, error) {
	level, err := tx.GetLevelForUpdate(ctx, m.LocationID, m.ItemID)
	if err != nil && !errors.Is(err, ErrLevelNotFound) {
		return Level{}, decimal.Zero, err
	}
	newQty := level.Quantity.Add(m.QtyChange)
	if newQty.Sign() < 0 {
		return Level{}, decimal.Zero, ErrNegativeStock
	}
	unitCost := m.UnitCost
	newAvg := level.UnitCost
	if m.QtyChange.Sign() > 0 {
		// Inbound re-averages: (held×avg + in×cost) / new quantity.
		if newQty.Sign() > 0 {
			total := level.Quantity.Mul(level.UnitCost).Add(m.QtyChange.Mul(unitCost))
			newAvg = total.DivRound(newQty, avgCostScale)
		}
	} else {
		// Outbound leaves at the running average; an emptied balance
		// resets the average so stale costs never leak forward.
		unitCost = level.UnitCost
		if newQty.IsZero() {
			newAvg = decimal.Zero
		}
	}
	if _, err := tx.InsertMovement(ctx, Movement{
		Kind:       m.Kind,
		LocationID: m.LocationID,
		ItemID:     m.ItemID,
		Quantity:   m.QtyChange.Abs(),
		UnitCost:   unitCost,
		PostedBy:   m.ActorID,
		PostedAt:   now,
		Note:       m.Note,
	}); err != nil {
		return Level{}, decimal.Zero, err
	}
	level.LocationID = m.LocationID
	level.ItemID = m.ItemID
	level.Quantity = newQty
	level.UnitCost = newAvg
	level.UpdatedAt = now
	if err := tx.UpsertLevel(ctx, level); err != nil {
		return Level{}, decimal.Zero, err
	}
	return level, unitCost, nil
}

func (s *Service) record(ctx context.Context, m movement) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  m.ActorID,
		Action:   fmt.Sprintf("stock:%s", m.Kind),
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d:%d", m.LocationID, m.ItemID),
		Meta: map[string]any{
			"location_id": m.LocationID,
			"item_id":     m.ItemID,
			"qty":         m.QtyChange.String(),
			"note":        m.Note,
		},
	}); err != nil {
		s.logger.Warn("audit stock movement", slog.String("kind", string(m.Kind)), slog.Any("error", err))
	}
}
