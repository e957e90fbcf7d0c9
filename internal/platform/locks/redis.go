package locks

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"

	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// Deletes the key only when it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Redis struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	poll   time.Duration
}

// NewRedisClient dials addr and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "lock:"
	}
	return &Redis{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: prefix,
		poll:   50 * time.Millisecond,
	}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	fullKey := r.prefix + key
	token := ksuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		ok, err := r.rdb.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func() {
				relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(relCtx, r.rdb, []string{fullKey}, token).Err(); err != nil && err != goredis.Nil {
					r.log.Warn("redis lock release failed", "key", fullKey, "error", err)
				}
			}, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		t := time.NewTimer(r.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
