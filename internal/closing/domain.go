package closing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// snapshotID derives a stable identifier for a location's close
// snapshot, so a retried close produces the same reference.
func snapshotID(periodID, locationID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("SNAP:%d:%d", periodID, locationID)))
}

// snapshotSchemaVersion is bumped whenever the snapshot JSON layout
// changes so historical snapshots stay readable.
const snapshotSchemaVersion = 1

var (
	ErrPeriodNotOpen         = errors.New("closing: period is not open")
	ErrPeriodNotPendingClose = errors.New("closing: period is not pending close")
	ErrPeriodLocked          = errors.New("closing: another close operation is in progress")
)

// Snapshot is the immutable record of one location's stock position at
// the moment a period closed. It is stored as JSONB on the
// period_locations row and never rewritten.
type Snapshot struct {
	SnapshotID     uuid.UUID               `json:"snapshot_id"`
	SchemaVersion  int                     `json:"schema_version"`
	TakenAt        time.Time               `json:"taken_at"`
	Items          []SnapshotItem          `json:"items"`
	TotalValue     decimal.Decimal         `json:"total_value"`
	Reconciliation *SnapshotReconciliation `json:"reconciliation"`
}

// SnapshotItem is one stock line frozen at close time.
type SnapshotItem struct {
	ItemID   int64           `json:"item_id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Value    decimal.Decimal `json:"value"`
}

// SnapshotReconciliation embeds the location's reconciliation figures
// with the derived calculated closing and variance.
type SnapshotReconciliation struct {
	OpeningValue      decimal.Decimal `json:"opening_value"`
	Receipts          decimal.Decimal `json:"receipts"`
	TransfersIn       decimal.Decimal `json:"transfers_in"`
	TransfersOut      decimal.Decimal `json:"transfers_out"`
	Issues            decimal.Decimal `json:"issues"`
	Adjustments       decimal.Decimal `json:"adjustments"`
	BackCharges       decimal.Decimal `json:"back_charges"`
	Credits           decimal.Decimal `json:"credits"`
	Condemnations     decimal.Decimal `json:"condemnations"`
	ActualClosing     decimal.Decimal `json:"actual_closing"`
	CalculatedClosing decimal.Decimal `json:"calculated_closing"`
	Variance          decimal.Decimal `json:"variance"`
}

// Summary is returned once a close completes.
type Summary struct {
	PeriodID          int64           `json:"period_id"`
	TotalLocations    int             `json:"total_locations"`
	TotalClosingValue decimal.Decimal `json:"total_closing_value"`
	ClosedAt          time.Time       `json:"closed_at"`
}

// Preview is the dry-run result of a close: what each location's
// snapshot would contain if the close executed now. Nothing is written.
type Preview struct {
	PeriodID     int64             `json:"period_id"`
	PeriodStatus string            `json:"period_status"`
	AllReady     bool              `json:"all_ready"`
	Locations    []LocationPreview `json:"locations"`
	TotalValue   decimal.Decimal   `json:"total_value"`
}

// LocationPreview pairs a location's readiness with its would-be snapshot.
type LocationPreview struct {
	LocationID int64     `json:"location_id"`
	Status     string    `json:"status"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
}

// NotReadyLocation identifies a location blocking a close.
type NotReadyLocation struct {
	LocationID int64  `json:"location_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

// NotReadyError reports the locations that are not READY when a close
// is requested or executed.
type NotReadyError struct {
	Locations []NotReadyLocation
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("closing: %d locations not ready", len(e.Locations))
}
