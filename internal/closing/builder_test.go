package closing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/reconciliation"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildSnapshotsValuesAndTotals(t *testing.T) {
	takenAt := time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)
	rows := []stock.OnHandRow{
		{LocationID: 1, ItemID: 10, ItemCode: "RICE-5KG", ItemName: "Rice 5kg", Unit: "bag", Quantity: dec("10"), UnitCost: dec("2.50")},
		{LocationID: 1, ItemID: 11, ItemCode: "OIL-1L", ItemName: "Cooking oil 1l", Unit: "btl", Quantity: dec("13"), UnitCost: dec("2.50")},
	}

	snapshots := BuildSnapshots([]int64{1}, rows, nil, takenAt)
	snapshot := snapshots[1]

	require.Len(t, snapshot.Items, 2)
	assert.True(t, snapshot.Items[0].Value.Equal(dec("25.00")))
	assert.True(t, snapshot.Items[1].Value.Equal(dec("32.50")))
	assert.True(t, snapshot.TotalValue.Equal(dec("57.50")))
	assert.Equal(t, 1, snapshot.SchemaVersion)
	assert.Equal(t, takenAt, snapshot.TakenAt)
	assert.Nil(t, snapshot.Reconciliation)
}

func TestBuildSnapshotsRoundsLineValues(t *testing.T) {
	rows := []stock.OnHandRow{
		{LocationID: 1, ItemID: 10, Quantity: dec("3"), UnitCost: dec("0.3333")},
	}
	snapshots := BuildSnapshots([]int64{1}, rows, nil, time.Now())
	assert.True(t, snapshots[1].Items[0].Value.Equal(dec("1.00")), "0.9999 rounds to 1.00")
}

func TestBuildSnapshotsReconciliationSection(t *testing.T) {
	recs := []reconciliation.Reconciliation{{
		LocationID:    1,
		OpeningValue:  dec("1000"),
		Receipts:      dec("500"),
		TransfersIn:   dec("100"),
		TransfersOut:  dec("50"),
		Issues:        dec("400"),
		Adjustments:   dec("-25"),
		BackCharges:   dec("10"),
		Credits:       dec("5"),
		Condemnations: dec("20"),
		ActualClosing: dec("1095"),
	}}

	snapshots := BuildSnapshots([]int64{1, 2}, nil, recs, time.Now())

	rec := snapshots[1].Reconciliation
	require.NotNil(t, rec)
	assert.True(t, rec.CalculatedClosing.Equal(dec("1100")))
	assert.True(t, rec.Variance.Equal(dec("-5")))

	// No reconciliation saved for location 2: the section stays null.
	assert.Nil(t, snapshots[2].Reconciliation)
	assert.True(t, snapshots[2].TotalValue.IsZero())
}

func TestBuildSnapshotsSharedTimestamp(t *testing.T) {
	takenAt := time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)
	snapshots := BuildSnapshots([]int64{1, 2, 3}, nil, nil, takenAt)
	for id, snapshot := range snapshots {
		assert.Equal(t, takenAt, snapshot.TakenAt, "location %d", id)
	}
}
