package closing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/approvals"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/reconciliation"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
)

// memoryRepo implements RepositoryPort and TxRepository over in-memory
// state, emulating transaction rollback by restoring a snapshot of the
// state when the callback errors.
type memoryRepo struct {
	period    periods.Period
	locations map[int64]*periods.PeriodLocation
	approvals map[int64]*approvals.Approval
	stockRows []stock.OnHandRow
	recs      []reconciliation.Reconciliation
	nextID    int64

	failCloseLocation int64 // location ID whose close write fails
}

func newMemoryRepo(p periods.Period) *memoryRepo {
	return &memoryRepo{
		period:    p,
		locations: map[int64]*periods.PeriodLocation{},
		approvals: map[int64]*approvals.Approval{},
	}
}

func (m *memoryRepo) addLocation(id int64, status string) {
	m.locations[id] = &periods.PeriodLocation{
		PeriodID:     m.period.ID,
		LocationID:   id,
		LocationName: fmt.Sprintf("Store %d", id),
		Status:       status,
	}
}

func (m *memoryRepo) snapshotState() (periods.Period, map[int64]periods.PeriodLocation, map[int64]approvals.Approval) {
	locs := map[int64]periods.PeriodLocation{}
	for id, loc := range m.locations {
		locs[id] = *loc
	}
	apps := map[int64]approvals.Approval{}
	for id, a := range m.approvals {
		apps[id] = *a
	}
	return m.period, locs, apps
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	period, locs, apps := m.snapshotState()
	if err := fn(ctx, m); err != nil {
		m.period = period
		m.locations = map[int64]*periods.PeriodLocation{}
		for id := range locs {
			loc := locs[id]
			m.locations[id] = &loc
		}
		m.approvals = map[int64]*approvals.Approval{}
		for id := range apps {
			a := apps[id]
			m.approvals[id] = &a
		}
		return err
	}
	return nil
}

func (m *memoryRepo) ReadState(_ context.Context, periodID int64) (periods.Period, []periods.PeriodLocation, error) {
	if periodID != m.period.ID {
		return periods.Period{}, nil, periods.ErrNotFound
	}
	var locs []periods.PeriodLocation
	for _, loc := range m.locations {
		locs = append(locs, *loc)
	}
	return m.period, locs, nil
}

func (m *memoryRepo) PreviewSources(_ context.Context, _ int64, _ []int64) ([]stock.OnHandRow, []reconciliation.Reconciliation, error) {
	return m.stockRows, m.recs, nil
}

func (m *memoryRepo) GetPeriodForUpdate(_ context.Context, id int64) (periods.Period, error) {
	if id != m.period.ID {
		return periods.Period{}, periods.ErrNotFound
	}
	return m.period, nil
}

func (m *memoryRepo) ListLocationsForUpdate(_ context.Context, _ int64) ([]periods.PeriodLocation, error) {
	var locs []periods.PeriodLocation
	for _, loc := range m.locations {
		locs = append(locs, *loc)
	}
	return locs, nil
}

func (m *memoryRepo) SetPeriodStatus(_ context.Context, _ int64, status string, approvalID *int64, closedAt *time.Time) error {
	m.period.Status = status
	m.period.ApprovalID = approvalID
	m.period.ClosedAt = closedAt
	return nil
}

func (m *memoryRepo) InsertPendingApproval(_ context.Context, periodID, requestedBy int64) (approvals.Approval, error) {
	m.nextID++
	a := approvals.Approval{
		ID:          m.nextID,
		EntityType:  approvals.EntityPeriodClose,
		EntityID:    periodID,
		Status:      approvals.StatusPending,
		RequestedBy: requestedBy,
	}
	m.approvals[a.ID] = &a
	return a, nil
}

func (m *memoryRepo) GetApprovalForUpdate(_ context.Context, id int64) (approvals.Approval, error) {
	a, ok := m.approvals[id]
	if !ok {
		return approvals.Approval{}, approvals.ErrNotFound
	}
	return *a, nil
}

func (m *memoryRepo) SetApprovalDecision(_ context.Context, id int64, status string, reviewedBy int64, comments string, at time.Time) error {
	a := m.approvals[id]
	a.Status = status
	a.ReviewedBy = &reviewedBy
	a.ReviewedAt = &at
	a.Comments = comments
	return nil
}

func (m *memoryRepo) StockOnHand(_ context.Context, _ []int64) ([]stock.OnHandRow, error) {
	return m.stockRows, nil
}

func (m *memoryRepo) Reconciliations(_ context.Context, _ int64) ([]reconciliation.Reconciliation, error) {
	return m.recs, nil
}

func (m *memoryRepo) CloseLocation(_ context.Context, _ int64, locationID int64, closingValue decimal.Decimal, snapshot []byte, at time.Time) error {
	if locationID == m.failCloseLocation {
		return errors.New("disk full")
	}
	loc := m.locations[locationID]
	loc.Status = periods.LocationClosed
	loc.ClosingValue = decimal.NewNullDecimal(closingValue)
	loc.Snapshot = snapshot
	loc.ClosedAt = &at
	return nil
}

func testService(repo *memoryRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, nil, nil, nil)
}

func pendingClosePeriod() periods.Period {
	return periods.Period{ID: 1, Name: "March 2026", Status: periods.PeriodPendingClose}
}

func admin() shared.Actor { return shared.Actor{ID: 5, Role: shared.RoleAdmin} }

func TestRequestRequiresAllReady(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	repo.addLocation(1, periods.LocationReady)
	repo.addLocation(2, periods.LocationOpen)
	svc := testService(repo)

	_, err := svc.Request(context.Background(), 1, admin())
	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, []NotReadyLocation{{LocationID: 2, Name: "Store 2", Status: periods.LocationOpen}}, notReady.Locations)
	assert.Equal(t, periods.PeriodOpen, repo.period.Status, "nothing changed")
	assert.Empty(t, repo.approvals)
}

func TestRequestCreatesPendingApproval(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	repo.addLocation(1, periods.LocationReady)
	svc := testService(repo)

	approval, err := svc.Request(context.Background(), 1, admin())
	require.NoError(t, err)
	assert.Equal(t, approvals.StatusPending, approval.Status)
	assert.Equal(t, periods.PeriodPendingClose, repo.period.Status)
	require.NotNil(t, repo.period.ApprovalID)
	assert.Equal(t, approval.ID, *repo.period.ApprovalID)

	_, err = svc.Request(context.Background(), 1, admin())
	assert.ErrorIs(t, err, ErrPeriodNotOpen, "second request rejected")
}

func TestApproveClosesEverything(t *testing.T) {
	repo := newMemoryRepo(pendingClosePeriod())
	repo.addLocation(1, periods.LocationReady)
	repo.addLocation(2, periods.LocationReady)
	repo.stockRows = []stock.OnHandRow{
		{LocationID: 1, ItemID: 10, Quantity: dec("10"), UnitCost: dec("2.50")},
		{LocationID: 2, ItemID: 10, Quantity: dec("4"), UnitCost: dec("1.25")},
	}
	approval, _ := repo.InsertPendingApproval(context.Background(), 1, 9)
	svc := testService(repo)
	closedAt := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return closedAt })

	result, err := svc.Approve(context.Background(), approval, admin(), "looks right")
	require.NoError(t, err)

	summary, ok := result.(Summary)
	require.True(t, ok)
	assert.Equal(t, 2, summary.TotalLocations)
	assert.True(t, summary.TotalClosingValue.Equal(dec("30.00")), "got %s", summary.TotalClosingValue)

	assert.Equal(t, periods.PeriodClosed, repo.period.Status)
	require.NotNil(t, repo.period.ClosedAt)
	for id, loc := range repo.locations {
		assert.Equal(t, periods.LocationClosed, loc.Status, "location %d", id)
		assert.NotEmpty(t, loc.Snapshot, "location %d snapshot persisted", id)
		require.NotNil(t, loc.ClosedAt)
		assert.Equal(t, closedAt, *loc.ClosedAt, "shared close instant")
	}
	assert.Equal(t, approvals.StatusApproved, repo.approvals[approval.ID].Status)
}

func TestApproveRollsBackOnFailure(t *testing.T) {
	repo := newMemoryRepo(pendingClosePeriod())
	repo.addLocation(1, periods.LocationReady)
	repo.addLocation(2, periods.LocationReady)
	repo.failCloseLocation = 2
	approval, _ := repo.InsertPendingApproval(context.Background(), 1, 9)
	svc := testService(repo)

	_, err := svc.Approve(context.Background(), approval, admin(), "")
	require.Error(t, err)

	// The failing write rolled everything back: no partial snapshots,
	// the period stays PENDING_CLOSE and the approval stays PENDING.
	assert.Equal(t, periods.PeriodPendingClose, repo.period.Status)
	assert.Equal(t, approvals.StatusPending, repo.approvals[approval.ID].Status)
	for id, loc := range repo.locations {
		assert.Equal(t, periods.LocationReady, loc.Status, "location %d", id)
		assert.Empty(t, loc.Snapshot, "location %d", id)
	}
}

func TestApproveRechecksReadiness(t *testing.T) {
	repo := newMemoryRepo(pendingClosePeriod())
	repo.addLocation(1, periods.LocationOpen)
	approval, _ := repo.InsertPendingApproval(context.Background(), 1, 9)
	svc := testService(repo)

	_, err := svc.Approve(context.Background(), approval, admin(), "")
	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, approvals.StatusPending, repo.approvals[approval.ID].Status)
}

func TestApproveTwice(t *testing.T) {
	repo := newMemoryRepo(pendingClosePeriod())
	repo.addLocation(1, periods.LocationReady)
	approval, _ := repo.InsertPendingApproval(context.Background(), 1, 9)
	svc := testService(repo)

	_, err := svc.Approve(context.Background(), approval, admin(), "")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), approval, admin(), "")
	assert.ErrorIs(t, err, approvals.ErrAlreadyProcessed)
}

func TestRejectRevertsToOpen(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	repo.addLocation(1, periods.LocationReady)
	svc := testService(repo)

	approval, err := svc.Request(context.Background(), 1, admin())
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), approval, admin(), "variance too high"))
	assert.Equal(t, periods.PeriodOpen, repo.period.Status)
	assert.Nil(t, repo.period.ApprovalID, "approval reference cleared")
	assert.Equal(t, approvals.StatusRejected, repo.approvals[approval.ID].Status)
	assert.Equal(t, "variance too high", repo.approvals[approval.ID].Comments)
	assert.Equal(t, periods.LocationReady, repo.locations[1].Status, "readiness kept")

	assert.ErrorIs(t, svc.Reject(context.Background(), approval, admin(), ""), approvals.ErrAlreadyProcessed)
}

func TestPreviewWritesNothing(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	repo.addLocation(1, periods.LocationOpen)
	repo.stockRows = []stock.OnHandRow{
		{LocationID: 1, ItemID: 10, Quantity: dec("10"), UnitCost: dec("2.50")},
		{LocationID: 1, ItemID: 11, Quantity: dec("13"), UnitCost: dec("2.50")},
	}
	svc := testService(repo)

	preview, err := svc.Preview(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, preview.AllReady)
	assert.True(t, preview.TotalValue.Equal(dec("57.50")))
	require.Len(t, preview.Locations, 1)
	require.NotNil(t, preview.Locations[0].Snapshot)

	// Purity: repository state is untouched.
	assert.Equal(t, periods.PeriodOpen, repo.period.Status)
	assert.Equal(t, periods.LocationOpen, repo.locations[1].Status)
	assert.Empty(t, repo.locations[1].Snapshot)
	assert.Empty(t, repo.approvals)
}

func TestPreviewRequiresActivePeriod(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodClosed})
	svc := testService(repo)

	_, err := svc.Preview(context.Background(), 1)
	assert.ErrorIs(t, err, ErrPeriodNotOpen)
}
