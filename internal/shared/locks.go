package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrPeriodLocked indicates another close operation currently holds the
// period lock. Callers must not retry automatically.
var ErrPeriodLocked = errors.New("shared: period close already in progress")

// PeriodLockKey builds redis keys for period close critical sections.
func PeriodLockKey(periodID int64) string {
	return fmt.Sprintf("periods:%d:close:lock", periodID)
}

// PeriodLocker serialises close request/approve operations across
// processes. The database row locks remain the source of truth; this is
// a fast-fail gate so a second operator gets an immediate answer instead
// of queueing behind a long transaction.
type PeriodLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPeriodLocker constructs a PeriodLocker. ttl bounds how long a crashed
// holder can keep the period locked.
func NewPeriodLocker(client *redis.Client, ttl time.Duration) *PeriodLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PeriodLocker{client: client, ttl: ttl}
}

// Acquire takes the period lock or fails with ErrPeriodLocked.
func (l *PeriodLocker) Acquire(ctx context.Context, periodID int64) error {
	if l == nil || l.client == nil {
		return errors.New("shared: period locker not initialised")
	}
	ok, err := l.client.SetNX(ctx, PeriodLockKey(periodID), "1", l.ttl).Result()
	if err != nil {
		return fmt.Errorf("shared: acquire period lock: %w", err)
	}
	if !ok {
		return ErrPeriodLocked
	}
	return nil
}

// Release frees the period lock. Safe to call after a failed Acquire.
func (l *PeriodLocker) Release(ctx context.Context, periodID int64) {
	if l == nil || l.client == nil {
		return
	}
	_ = l.client.Del(ctx, PeriodLockKey(periodID)).Err()
}
