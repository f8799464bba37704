package closing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/reconciliation"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
)

// valueScale rounds monetary snapshot values to cents.
const valueScale = 2

// BuildSnapshots computes one snapshot per location from batched stock
// rows and reconciliations. Pure: no I/O, no clock reads; every
// snapshot carries the same takenAt so a closed period reads as a
// single instant. Locations without stock still get an empty snapshot
// so the close record is complete.
func BuildSnapshots(locationIDs []int64, stockRows []stock.OnHandRow, recs []reconciliation.Reconciliation, takenAt time.Time) map[int64]Snapshot {
	itemsByLocation := map[int64][]SnapshotItem{}
	for _, row := range stockRows {
		itemsByLocation[row.LocationID] = append(itemsByLocation[row.LocationID], SnapshotItem{
			ItemID:   row.ItemID,
			Code:     row.ItemCode,
			Name:     row.ItemName,
			Unit:     row.Unit,
			Quantity: row.Quantity,
			UnitCost: row.UnitCost,
			Value:    row.Quantity.Mul(row.UnitCost).Round(valueScale),
		})
	}

	recByLocation := map[int64]reconciliation.Reconciliation{}
	for _, rec := range recs {
		recByLocation[rec.LocationID] = rec
	}

	out := make(map[int64]Snapshot, len(locationIDs))
	for _, locationID := range locationIDs {
		items := itemsByLocation[locationID]
		sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })

		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.Value)
		}

		snapshot := Snapshot{
			SchemaVersion: snapshotSchemaVersion,
			TakenAt:       takenAt,
			Items:         items,
			TotalValue:    total,
		}
		if rec, ok := recByLocation[locationID]; ok {
			snapshot.Reconciliation = &SnapshotReconciliation{
				OpeningValue:      rec.OpeningValue,
				Receipts:          rec.Receipts,
				TransfersIn:       rec.TransfersIn,
				TransfersOut:      rec.TransfersOut,
				Issues:            rec.Issues,
				Adjustments:       rec.Adjustments,
				BackCharges:       rec.BackCharges,
				Credits:           rec.Credits,
				Condemnations:     rec.Condemnations,
				ActualClosing:     rec.ActualClosing,
				CalculatedClosing: rec.CalculatedClosing(),
				Variance:          rec.Variance(),
			}
		}
		out[locationID] = snapshot
	}
	return out
}
