package sheetstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/smart-support/internal/store"
)

// Locker serializes the read-tail / allocate / append critical section
// across whatever concurrency domain the deployment has.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// localLocker serializes goroutines within one process. Sufficient for
// a single-instance deployment.
type localLocker struct {
	mu sync.Mutex
}

// NewLocalLocker returns a process-local Locker.
func NewLocalLocker() Locker {
	return &localLocker{}
}

func (l *localLocker) Lock(context.Context) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

const (
	leaseRetryInterval = 100 * time.Millisecond
	leaseAcquireBudget = 10 * time.Second
)

// releaseScript deletes the lease only when it is still ours.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// redisLocker is a SETNX lease with a TTL. Independent service
// instances appending to the same sheet contend on the same key; a
// crashed holder's lease expires on its own.
type redisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker builds a cross-process Locker on the given key.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{client: client, key: key, ttl: ttl}
}

func (l *redisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(leaseAcquireBudget)
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, store.Unavailable("acquire sheet lease", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, store.Unavailable("acquire sheet lease", context.DeadlineExceeded)
		}
		select {
		case <-ctx.Done():
			return nil, store.Unavailable("acquire sheet lease", ctx.Err())
		case <-time.After(leaseRetryInterval):
		}
	}
}
