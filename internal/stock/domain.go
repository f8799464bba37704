package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates stock movement types.
type MovementKind string

const (
	MovementDelivery    MovementKind = "DELIVERY"
	MovementIssue       MovementKind = "ISSUE"
	MovementTransferIn  MovementKind = "TRANSFER_IN"
	MovementTransferOut MovementKind = "TRANSFER_OUT"
	MovementAdjustment  MovementKind = "ADJUSTMENT"
)

// Movement is a posted stock movement row.
type Movement struct {
	ID         int64           `json:"id"`
	Kind       MovementKind    `json:"kind"`
	LocationID int64           `json:"location_id"`
	ItemID     int64           `json:"item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	PostedBy   int64           `json:"posted_by"`
	PostedAt   time.Time       `json:"posted_at"`
	Note       string          `json:"note,omitempty"`
}

// Level is the running balance per (location, item) carrying the
// weighted-average unit cost.
type Level struct {
	LocationID int64           `json:"location_id"`
	ItemID     int64           `json:"item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OnHandRow is a stock level joined with item master data, as consumed by
// the period close snapshot builder. Only rows with quantity > 0 qualify.
type OnHandRow struct {
	LocationID int64           `json:"location_id"`
	ItemID     int64           `json:"item_id"`
	ItemCode   string          `json:"item_code"`
	ItemName   string          `json:"item_name"`
	Unit       string          `json:"unit"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// DeliveryInput posts goods received into a location.
type DeliveryInput struct {
	LocationID int64
	ItemID     int64
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	Note       string
	ActorID    int64
}

// IssueInput posts goods consumed out of a location.
type IssueInput struct {
	LocationID int64
	ItemID     int64
	Quantity   decimal.Decimal
	Note       string
	ActorID    int64
}

// TransferInput moves stock between two locations at the source's
// weighted-average cost.
type TransferInput struct {
	FromLocationID int64
	ToLocationID   int64
	ItemID         int64
	Quantity       decimal.Decimal
	Note           string
	ActorID        int64
}

// AdjustmentInput corrects a balance up or down.
type AdjustmentInput struct {
	LocationID int64
	ItemID     int64
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	Note       string
	ActorID    int64
}

// ErrInvalidQuantity indicates a zero or wrongly-signed quantity.
var ErrInvalidQuantity = errors.New("stock: invalid quantity")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("stock: invalid unit cost")

// ErrNegativeStock indicates the movement would drive the balance below zero.
var ErrNegativeStock = errors.New("stock: insufficient stock on hand")

// ErrLevelNotFound indicates a missing balance row.
var ErrLevelNotFound = errors.New("stock: level not found")

// avgCostScale bounds the stored precision of weighted-average unit costs.
const avgCostScale = 4
