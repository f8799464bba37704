package reconciliation

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("reconciliation: not found")
	ErrLocationClosed = errors.New("reconciliation: location already closed for period")
	ErrNegativeValue  = errors.New("reconciliation: monetary fields must not be negative")
)

// Reconciliation is a location's monthly stock account for one period.
// All fields are monetary values in the ledger currency.
type Reconciliation struct {
	ID            int64           `json:"id"`
	PeriodID      int64           `json:"period_id"`
	LocationID    int64           `json:"location_id"`
	OpeningValue  decimal.Decimal `json:"opening_value"`
	Receipts      decimal.Decimal `json:"receipts"`
	TransfersIn   decimal.Decimal `json:"transfers_in"`
	TransfersOut  decimal.Decimal `json:"transfers_out"`
	Issues        decimal.Decimal `json:"issues"`
	Adjustments   decimal.Decimal `json:"adjustments"`
	BackCharges   decimal.Decimal `json:"back_charges"`
	Credits       decimal.Decimal `json:"credits"`
	Condemnations decimal.Decimal `json:"condemnations"`
	ActualClosing decimal.Decimal `json:"actual_closing"`
	CompletedBy   int64           `json:"completed_by"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CalculatedClosing derives the expected closing value from the
// period's movements. Adjustments and credits add, the rest of the
// outflow columns subtract.
func (r Reconciliation) CalculatedClosing() decimal.Decimal {
	return r.OpeningValue.
		Add(r.Receipts).
		Add(r.TransfersIn).
		Sub(r.TransfersOut).
		Sub(r.Issues).
		Add(r.Adjustments).
		Sub(r.BackCharges).
		Add(r.Credits).
		Sub(r.Condemnations)
}

// Variance is the gap between the counted closing value and the
// calculated one. Positive means the count found more than the books.
func (r Reconciliation) Variance() decimal.Decimal {
	return r.ActualClosing.Sub(r.CalculatedClosing())
}

// SaveInput carries a reconciliation submission.
type SaveInput struct {
	PeriodID      int64
	LocationID    int64
	OpeningValue  decimal.Decimal
	Receipts      decimal.Decimal
	TransfersIn   decimal.Decimal
	TransfersOut  decimal.Decimal
	Issues        decimal.Decimal
	Adjustments   decimal.Decimal
	BackCharges   decimal.Decimal
	Credits       decimal.Decimal
	Condemnations decimal.Decimal
	ActualClosing decimal.Decimal
	ActorID       int64
}

// Validate rejects negative flow columns. Adjustments may be signed,
// the remaining columns are magnitudes.
func (in SaveInput) Validate() error {
	for _, v := range []decimal.Decimal{
		in.OpeningValue, in.Receipts, in.TransfersIn, in.TransfersOut,
		in.Issues, in.BackCharges, in.Credits, in.Condemnations, in.ActualClosing,
	} {
		if v.IsNegative() {
			return ErrNegativeValue
		}
	}
	return nil
}
