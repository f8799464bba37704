package stock

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	levels    map[string]Level
	movements []Movement
	nextID    int64

	failUpsertLocation int64 // location ID whose level write fails
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{levels: make(map[string]Level)}
}

func key(locationID, itemID int64) string {
	return fmt.Sprintf("%d:%d", locationID, itemID)
}

// WithTx emulates rollback by restoring the state snapshot when the
// callback errors.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	levels := make(map[string]Level, len(r.levels))
	for k, level := range r.levels {
		levels[k] = level
	}
	movements := make([]Movement, len(r.movements))
	copy(movements, r.movements)

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.levels = levels
		r.movements = movements
		return err
	}
	return nil
}

func (r *memoryRepo) ListOnHand(ctx context.Context, locationIDs []int64) ([]OnHandRow, error) {
	var rows []OnHandRow
	for _, level := range r.levels {
		for _, id := range locationIDs {
			if level.LocationID == id && level.Quantity.Sign() > 0 {
				rows = append(rows, OnHandRow{
					LocationID: level.LocationID,
					ItemID:     level.ItemID,
					Quantity:   level.Quantity,
					UnitCost:   level.UnitCost,
				})
			}
		}
	}
	return rows, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, locationID int64, limit int) ([]Movement, error) {
	result := make([]Movement, len(r.movements))
	copy(result, r.movements)
	return result, nil
}

func (tx *memoryTx) GetLevelForUpdate(ctx context.Context, locationID, itemID int64) (Level, error) {
	if level, ok := tx.repo.levels[key(locationID, itemID)]; ok {
		return level, nil
	}
	return Level{LocationID: locationID, ItemID: itemID}, ErrLevelNotFound
}

func (tx *memoryTx) UpsertLevel(ctx context.Context, level Level) error {
	if tx.repo.failUpsertLocation != 0 && level.LocationID == tx.repo.failUpsertLocation {
		return fmt.Errorf("stock: level write refused for location %d", level.LocationID)
	}
	tx.repo.levels[key(level.LocationID, level.ItemID)] = level
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWeightedAverageCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(), repo, nil, nil)
	ctx := context.Background()

	level, err := svc.PostDelivery(ctx, DeliveryInput{LocationID: 1, ItemID: 1, Quantity: dec("10"), UnitCost: dec("100000"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, level.Quantity.Equal(dec("10")))
	require.True(t, level.UnitCost.Equal(dec("100000")))

	level, err = svc.PostDelivery(ctx, DeliveryInput{LocationID: 1, ItemID: 1, Quantity: dec("5"), UnitCost: dec("120000"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, level.Quantity.Equal(dec("15")))
	require.True(t, level.UnitCost.Equal(dec("106666.6667")), "got %s", level.UnitCost)

	// Issues leave at the running average without changing it.
	level, err = svc.PostIssue(ctx, IssueInput{LocationID: 1, ItemID: 1, Quantity: dec("8"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, level.Quantity.Equal(dec("7")))
	require.True(t, level.UnitCost.Equal(dec("106666.6667")))
}

func TestTransferCarriesSourceCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(), repo, nil, nil)
	ctx := context.Background()

	_, err := svc.PostDelivery(ctx, DeliveryInput{LocationID: 1, ItemID: 1, Quantity: dec("20"), UnitCost: dec("50000"), ActorID: 9})
	require.NoError(t, err)

	out, in, err := svc.PostTransfer(ctx, TransferInput{FromLocationID: 1, ToLocationID: 2, ItemID: 1, Quantity: dec("5"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, out.Quantity.Equal(dec("15")))
	require.True(t, in.Quantity.Equal(dec("5")))
	require.True(t, in.UnitCost.Equal(dec("50000")))

	_, _, err = svc.PostTransfer(ctx, TransferInput{FromLocationID: 1, ToLocationID: 2, ItemID: 1, Quantity: dec("50"), ActorID: 9})
	require.ErrorIs(t, err, ErrNegativeStock)
}

func TestTransferFailedInboundLegRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(), repo, nil, nil)
	ctx := context.Background()

	_, err := svc.PostDelivery(ctx, DeliveryInput{LocationID: 1, ItemID: 1, Quantity: dec("8"), UnitCost: dec("10"), ActorID: 9})
	require.NoError(t, err)
	posted := len(repo.movements)

	repo.failUpsertLocation = 2
	_, _, err = svc.PostTransfer(ctx, TransferInput{FromLocationID: 1, ToLocationID: 2, ItemID: 1, Quantity: dec("5"), ActorID: 9})
	require.Error(t, err)

	// The outbound deduction must not survive a failed inbound leg.
	require.True(t, repo.levels[key(1, 1)].Quantity.Equal(dec("8")),
		"source level after failed transfer: %s", repo.levels[key(1, 1)].Quantity)
	_, exists := repo.levels[key(2, 1)]
	require.False(t, exists)
	require.Len(t, repo.movements, posted, "no transfer movements recorded")
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(), repo, nil, nil)

	_, err := svc.PostIssue(context.Background(), IssueInput{LocationID: 1, ItemID: 1, Quantity: dec("1"), ActorID: 9})
	require.ErrorIs(t, err, ErrNegativeStock)
}

func TestEmptiedBalanceResetsAverage(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(), repo, nil, nil)
	ctx := context.Background()

	_, err := svc.PostDelivery(ctx, DeliveryInput{LocationID: 3, ItemID: 4, Quantity: dec("2"), UnitCost: dec("9.99"), ActorID: 9})
	require.NoError(t, err)

	level, err := svc.PostIssue(ctx, IssueInput{LocationID: 3, ItemID: 4, Quantity: dec("2"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, level.Quantity.IsZero())
	require.True(t, level.UnitCost.IsZero())
}
