package periods

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPeriod(ctx context.Context, id int64) (Period, error)
	ListPeriods(ctx context.Context) ([]Period, error)
	ListLocations(ctx context.Context, periodID int64) ([]PeriodLocation, error)
	OpenPeriodCovering(ctx context.Context, date time.Time) (Period, error)
}

// AuditPort records lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives period lifecycle, readiness tracking and roll-forward.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  AuditPort
	now    func() time.Time
}

func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.GetPeriod(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.ListPeriods(ctx)
}

// Create opens a DRAFT period and fans out one tracking row per active
// location. The date range must not intersect any existing period.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if in.Name == "" {
		in.Name = derivePeriodName(in.StartDate)
	}
	if in.EndDate.Before(in.StartDate) {
		return Period{}, ErrInvalidDateRange
	}

	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		overlapping, err := tx.CountOverlapping(ctx, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrPeriodOverlap
		}

		created = Period{
			Name:      in.Name,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Status:    PeriodDraft,
			CreatedBy: in.ActorID,
		}
		id, err := tx.InsertPeriod(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		locationIDs, err := tx.ActiveLocationIDs(ctx)
		if err != nil {
			return err
		}
		openings := make(map[int64]decimal.NullDecimal, len(locationIDs))
		for _, locID := range locationIDs {
			openings[locID] = decimal.NullDecimal{}
		}
		_, err = tx.InsertLocations(ctx, id, openings)
		return err
	})
	if err != nil {
		return Period{}, err
	}

	s.record(ctx, in.ActorID, "period:create", created.ID, map[string]any{
		"name":       created.Name,
		"start_date": created.StartDate.Format("2006-01-02"),
		"end_date":   created.EndDate.Format("2006-01-02"),
	})
	return created, nil
}

// Open transitions a DRAFT period to OPEN. Only one period may be open
// at a time.
func (s *Service) Open(ctx context.Context, id, actorID int64) (Period, error) {
	var opened Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != PeriodDraft {
			return ErrPeriodNotDraft
		}
		open, err := tx.CountOpenPeriods(ctx)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrAnotherPeriodOpen
		}
		if err := tx.SetPeriodStatus(ctx, id, PeriodOpen); err != nil {
			return err
		}
		p.Status = PeriodOpen
		opened = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}

	s.record(ctx, actorID, "period:open", id, map[string]any{"name": opened.Name})
	return opened, nil
}

// MarkReady flags a location as reconciled and ready for close. The
// location must have a saved reconciliation. Marking an already-READY
// location succeeds without any change.
func (s *Service) MarkReady(ctx context.Context, periodID, locationID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodOpen {
			return ErrPeriodNotOpen
		}
		loc, err := tx.GetLocationForUpdate(ctx, periodID, locationID)
		if err != nil {
			return err
		}
		switch loc.Status {
		case LocationClosed:
			return ErrLocationClosed
		case LocationReady:
			return nil
		}
		saved, err := tx.HasReconciliation(ctx, periodID, locationID)
		if err != nil {
			return err
		}
		if !saved {
			return ErrReconciliationMissing
		}
		return tx.SetLocationReady(ctx, periodID, locationID, actorID, s.now())
	})
	if err != nil {
		return err
	}

	s.record(ctx, actorID, "period:location_ready", periodID, map[string]any{"location_id": locationID})
	return nil
}

// UnmarkReady reverts a READY location to OPEN, e.g. to correct a
// reconciliation before the close is requested.
func (s *Service) UnmarkReady(ctx context.Context, periodID, locationID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodOpen {
			return ErrPeriodNotOpen
		}
		loc, err := tx.GetLocationForUpdate(ctx, periodID, locationID)
		if err != nil {
			return err
		}
		switch loc.Status {
		case LocationClosed:
			return ErrLocationClosed
		case LocationOpen:
			return ErrNotReady
		}
		return tx.ClearLocationReady(ctx, periodID, locationID)
	})
	if err != nil {
		return err
	}

	s.record(ctx, actorID, "period:location_unready", periodID, map[string]any{"location_id": locationID})
	return nil
}

// Readiness reports the close readiness of every location in a period.
func (s *Service) Readiness(ctx context.Context, periodID int64) (Readiness, error) {
	p, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return Readiness{}, err
	}
	locations, err := s.repo.ListLocations(ctx, periodID)
	if err != nil {
		return Readiness{}, err
	}
	return Readiness{
		PeriodID:  p.ID,
		Status:    p.Status,
		Locations: locations,
		AllReady:  computeAllReady(locations),
	}, nil
}

// RollForward derives the successor of a CLOSED period: the new DRAFT
// period starts the day after the source ends, each active location
// carries its closing value forward as the opening value, and item
// prices are optionally copied across.
func (s *Service) RollForward(ctx context.Context, sourceID int64, in RollForwardInput) (RollForwardResult, error) {
	var result RollForwardResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		source, err := tx.GetPeriodForUpdate(ctx, sourceID)
		if err != nil {
			return err
		}
		if source.Status != PeriodClosed {
			return ErrSourceNotClosed
		}

		start, end, err := rollForwardRange(source.EndDate, in.EndDate)
		if err != nil {
			return err
		}
		overlapping, err := tx.CountOverlapping(ctx, start, end)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrPeriodOverlap
		}

		name := in.Name
		if name == "" {
			name = derivePeriodName(start)
		}
		next := Period{
			Name:      name,
			StartDate: start,
			EndDate:   end,
			Status:    PeriodDraft,
			CreatedBy: in.ActorID,
		}
		id, err := tx.InsertPeriod(ctx, next)
		if err != nil {
			return err
		}
		next.ID = id

		// Every currently-active location gets a tracking row. Closing
		// values from the source period carry over as opening values;
		// locations activated since then start with no opening value.
		openings, err := tx.SourceClosings(ctx, sourceID)
		if err != nil {
			return err
		}
		activeIDs, err := tx.ActiveLocationIDs(ctx)
		if err != nil {
			return err
		}
		for _, locID := range activeIDs {
			if _, ok := openings[locID]; !ok {
				openings[locID] = decimal.NullDecimal{}
			}
		}
		locations, err := tx.InsertLocations(ctx, id, openings)
		if err != nil {
			return err
		}

		carried := 0
		total := decimal.Zero
		for _, opening := range openings {
			if opening.Valid {
				carried++
				total = total.Add(opening.Decimal)
			}
		}

		copied := 0
		if in.CopyPrices {
			copied, err = tx.CopyPrices(ctx, sourceID, id, in.ActorID)
			if err != nil {
				return err
			}
		}

		result = RollForwardResult{
			Period:            next,
			Locations:         locations,
			LocationsCarried:  carried,
			TotalOpeningValue: total,
			PricesCopied:      copied,
		}
		return nil
	})
	if err != nil {
		return RollForwardResult{}, err
	}

	s.record(ctx, in.ActorID, "period:rollforward", result.Period.ID, map[string]any{
		"source_period_id":    sourceID,
		"locations":           result.Locations,
		"locations_carried":   result.LocationsCarried,
		"total_opening_value": result.TotalOpeningValue.String(),
		"prices_copied":       result.PricesCopied,
	})
	return result, nil
}

// SetItemPrice upserts a period-scoped unit price. Prices are frozen
// once the period leaves DRAFT.
func (s *Service) SetItemPrice(ctx context.Context, periodID, itemID int64, price decimal.Decimal, actorID int64) error {
	if price.IsNegative() {
		return errors.New("periods: price must not be negative")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodDraft {
			return ErrPricesLocked
		}
		return tx.UpsertPrice(ctx, ItemPrice{PeriodID: periodID, ItemID: itemID, UnitPrice: price, SetBy: actorID})
	})
	if err != nil {
		return err
	}

	s.record(ctx, actorID, "period:price_set", periodID, map[string]any{"item_id": itemID, "price": price.String()})
	return nil
}

// EnsureOpenForPosting gates stock movements: the posting date must
// fall inside the OPEN period.
func (s *Service) EnsureOpenForPosting(ctx context.Context, date time.Time) error {
	_, err := s.repo.OpenPeriodCovering(ctx, date)
	return err
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "period",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit period action", slog.String("action", action), slog.Any("error", err))
	}
}
