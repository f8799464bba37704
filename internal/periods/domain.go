package periods

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Period lifecycle statuses. A period is created DRAFT, opened for
// posting, parked PENDING_CLOSE while an approval is outstanding and
// finally CLOSED. CLOSED is terminal.
const (
	PeriodDraft        = "DRAFT"
	PeriodOpen         = "OPEN"
	PeriodPendingClose = "PENDING_CLOSE"
	PeriodClosed       = "CLOSED"
)

// Per-location statuses within a period.
const (
	LocationOpen   = "OPEN"
	LocationReady  = "READY"
	LocationClosed = "CLOSED"
)

var (
	ErrNotFound              = errors.New("periods: period not found")
	ErrLocationNotInPeriod   = errors.New("periods: location not part of period")
	ErrPeriodNotDraft        = errors.New("periods: period is not in draft")
	ErrPeriodNotOpen         = errors.New("periods: period is not open")
	ErrAnotherPeriodOpen     = errors.New("periods: another period is already open")
	ErrNoOpenPeriod          = errors.New("periods: no open period covers the posting date")
	ErrReconciliationMissing = errors.New("periods: reconciliation not completed for location")
	ErrLocationClosed        = errors.New("periods: location already closed for period")
	ErrNotReady              = errors.New("periods: location is not marked ready")
	ErrSourceNotClosed       = errors.New("periods: source period is not closed")
	ErrPeriodOverlap         = errors.New("periods: date range overlaps an existing period")
	ErrInvalidDateRange      = errors.New("periods: end date must not precede start date")
	ErrPricesLocked          = errors.New("periods: prices are locked once the period leaves draft")
)

// Period is one accounting month (or an arbitrary date range).
type Period struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	Status     string     `json:"status"`
	ApprovalID *int64     `json:"approval_id,omitempty"`
	CreatedBy  int64      `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// PeriodLocation tracks one location's progress through a period.
type PeriodLocation struct {
	ID           int64               `json:"id"`
	PeriodID     int64               `json:"period_id"`
	LocationID   int64               `json:"location_id"`
	LocationName string              `json:"location_name"`
	Status       string              `json:"status"`
	ReadyAt      *time.Time          `json:"ready_at,omitempty"`
	ReadyBy      *int64              `json:"ready_by,omitempty"`
	ClosedAt     *time.Time          `json:"closed_at,omitempty"`
	OpeningValue decimal.NullDecimal `json:"opening_value"`
	ClosingValue decimal.NullDecimal `json:"closing_value"`
	Snapshot     []byte              `json:"-"`
}

// ItemPrice is a period-scoped unit price used for issue valuation.
type ItemPrice struct {
	PeriodID  int64           `json:"period_id"`
	ItemID    int64           `json:"item_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	SetBy     int64           `json:"set_by"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Readiness reports per-location status for a period. AllReady is true
// only when the period has at least one location and every location is
// READY or already CLOSED.
type Readiness struct {
	PeriodID  int64            `json:"period_id"`
	Status    string           `json:"status"`
	Locations []PeriodLocation `json:"locations"`
	AllReady  bool             `json:"all_ready"`
}

// CreateInput carries a manual period creation request.
type CreateInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

// RollForwardInput tunes the successor period derived from a closed one.
type RollForwardInput struct {
	Name       string // empty: derived from the start month
	EndDate    time.Time
	CopyPrices bool
	ActorID    int64
}

// RollForwardResult summarises what a roll-forward produced.
type RollForwardResult struct {
	Period            Period          `json:"period"`
	Locations         int             `json:"locations"`
	LocationsCarried  int             `json:"locations_carried"`
	TotalOpeningValue decimal.Decimal `json:"total_opening_value"`
	PricesCopied      int             `json:"prices_copied"`
}

// rollForwardRange derives the successor period's date range. The new
// period starts the day after the source ends; an unset end defaults to
// the last day of the start's calendar month.
func rollForwardRange(sourceEnd, requestedEnd time.Time) (time.Time, time.Time, error) {
	start := sourceEnd.AddDate(0, 0, 1)
	end := requestedEnd
	if end.IsZero() {
		end = monthEnd(start)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return start, end, nil
}

// monthEnd returns the last day of t's calendar month.
func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}

// derivePeriodName names a period after its start month, e.g. "March 2026".
func derivePeriodName(start time.Time) string {
	return start.Format("January 2006")
}

func computeAllReady(locations []PeriodLocation) bool {
	if len(locations) == 0 {
		return false
	}
	for _, loc := range locations {
		if loc.Status != LocationReady && loc.Status != LocationClosed {
			return false
		}
	}
	return true
}
