package reconciliation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

type memoryRepo struct {
	recs     map[[2]int64]Reconciliation
	statuses map[[2]int64]string
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		recs:     map[[2]int64]Reconciliation{},
		statuses: map[[2]int64]string{},
	}
}

func (m *memoryRepo) Save(_ context.Context, in SaveInput) (Reconciliation, error) {
	key := [2]int64{in.PeriodID, in.LocationID}
	status, ok := m.statuses[key]
	if !ok {
		return Reconciliation{}, ErrNotFound
	}
	if status == "CLOSED" {
		return Reconciliation{}, ErrLocationClosed
	}
	rec, ok := m.recs[key]
	if !ok {
		m.nextID++
		rec = Reconciliation{ID: m.nextID, PeriodID: in.PeriodID, LocationID: in.LocationID}
	}
	rec.OpeningValue = in.OpeningValue
	rec.Receipts = in.Receipts
	rec.TransfersIn = in.TransfersIn
	rec.TransfersOut = in.TransfersOut
	rec.Issues = in.Issues
	rec.Adjustments = in.Adjustments
	rec.BackCharges = in.BackCharges
	rec.Credits = in.Credits
	rec.Condemnations = in.Condemnations
	rec.ActualClosing = in.ActualClosing
	rec.CompletedBy = in.ActorID
	m.recs[key] = rec
	return rec, nil
}

func (m *memoryRepo) Get(_ context.Context, periodID, locationID int64) (Reconciliation, error) {
	rec, ok := m.recs[[2]int64{periodID, locationID}]
	if !ok {
		return Reconciliation{}, ErrNotFound
	}
	return rec, nil
}

func (m *memoryRepo) ListForPeriod(_ context.Context, periodID int64) ([]Reconciliation, error) {
	var out []Reconciliation
	for key, rec := range m.recs {
		if key[0] == periodID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, shared.AuditLog) error { return nil }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCalculatedClosingAndVariance(t *testing.T) {
	rec := Reconciliation{
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
	}
	assert.True(t, rec.CalculatedClosing().Equal(dec("1100")),
		"calculated closing %s", rec.CalculatedClosing())
	assert.True(t, rec.Variance().Equal(dec("-5")), "variance %s", rec.Variance())
}

func TestSaveRewritesUntilClosed(t *testing.T) {
	repo := newMemoryRepo()
	repo.statuses[[2]int64{1, 7}] = "OPEN"
	svc := NewService(testLogger(), repo, noopAudit{})

	in := SaveInput{PeriodID: 1, LocationID: 7, OpeningValue: dec("100"), ActualClosing: dec("90"), ActorID: 3}
	first, err := svc.Save(context.Background(), in)
	require.NoError(t, err)

	in.ActualClosing = dec("95")
	second, err := svc.Save(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.ActualClosing.Equal(dec("95")))

	repo.statuses[[2]int64{1, 7}] = "CLOSED"
	_, err = svc.Save(context.Background(), in)
	assert.ErrorIs(t, err, ErrLocationClosed)
}

func TestSaveClosedLocationLeavesRecordUntouched(t *testing.T) {
	repo := newMemoryRepo()
	repo.statuses[[2]int64{1, 7}] = "OPEN"
	svc := NewService(testLogger(), repo, noopAudit{})

	in := SaveInput{PeriodID: 1, LocationID: 7, OpeningValue: dec("100"), ActualClosing: dec("90"), ActorID: 3}
	saved, err := svc.Save(context.Background(), in)
	require.NoError(t, err)

	// A close that lands before the rewrite makes the record immutable.
	repo.statuses[[2]int64{1, 7}] = "CLOSED"
	in.ActualClosing = dec("50")
	_, err = svc.Save(context.Background(), in)
	require.ErrorIs(t, err, ErrLocationClosed)

	kept, err := svc.Get(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.True(t, kept.ActualClosing.Equal(saved.ActualClosing))
}

func TestSaveRejectsNegativeMagnitudes(t *testing.T) {
	repo := newMemoryRepo()
	repo.statuses[[2]int64{1, 7}] = "OPEN"
	svc := NewService(testLogger(), repo, noopAudit{})

	_, err := svc.Save(context.Background(), SaveInput{
		PeriodID: 1, LocationID: 7, Receipts: dec("-1"),
	})
	assert.ErrorIs(t, err, ErrNegativeValue)

	// Adjustments are signed and may be negative.
	_, err = svc.Save(context.Background(), SaveInput{
		PeriodID: 1, LocationID: 7, Adjustments: dec("-1"),
	})
	assert.NoError(t, err)
}
