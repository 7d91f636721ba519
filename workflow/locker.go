package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/infra"
)

const (
	accountLockTTL   = 30 * time.Second
	lockRetryWait    = 50 * time.Millisecond
	lockRetryTimeout = 2 * time.Second
)

// RedisAccountLocker serializes mutating job operations per account through
// a redis SetNX lock. A short retry window absorbs lock handoff between two
// quick requests; a held lock past the window surfaces as ErrConflict.
type RedisAccountLocker struct {
	redis *infra.RedisClient
}

func NewRedisAccountLocker(redis *infra.RedisClient) *RedisAccountLocker {
	return &RedisAccountLocker{redis: redis}
}

func (l *RedisAccountLocker) LockAccount(ctx context.Context, accountID uuid.UUID) (func(), error) {
	key := "deletion:lock:" + accountID.String()
	deadline := time.Now().Add(lockRetryTimeout)

	for {
		ok, release, err := l.redis.AcquireLock(ctx, key, accountLockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("account %s is locked by another deletion operation: %w", accountID, ErrConflict)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
}
