package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/storepulse/reconciler/internal/config"
)

const keyPrefix = "reconciler:lock:"

// Redis leases keys through redislock so passes stay exclusive across
// replicas sharing one Redis.
type Redis struct {
	rdb    *redis.Client
	locker *redislock.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies it with a PING.
func NewRedis(ctx context.Context, addr, password string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("lock: redis ping %s: %w", addr, err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{rdb: rdb, locker: redislock.New(rdb), ttl: ttl}, nil
}

// Acquire obtains the lease and refreshes it every ttl/2 until the returned
// release func is called, so long passes keep exclusivity.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	lease, err := r.locker.Obtain(ctx, keyPrefix+key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("lock: obtain %s: %w", key, err)
	}

	log := config.Logger("lock").WithField("key", key)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rctx, cancel := context.WithTimeout(context.Background(), r.ttl/2)
				err := lease.Refresh(rctx, r.ttl, nil)
				cancel()
				if errors.Is(err, redislock.ErrNotObtained) {
					log.Warn("redis lock lost before release")
					return
				}
				if err != nil {
					log.Warn("failed to refresh redis lock: " + err.Error())
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := lease.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				log.Warn("failed to release redis lock: " + err.Error())
			}
		})
	}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
