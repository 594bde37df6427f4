package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// releaseScript deletes the key only if it still carries our token, so a holder
// whose lease expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only while the key still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds leases as Redis keys with a TTL, shared by every process
// pointing at the same Redis. A live holder renews its lease every renewEvery,
// so long training runs stay exclusive; a crashed holder's lease expires after ttl.
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	renewEvery time.Duration
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a RedisLocker and verifies the connection
func NewRedisLocker(ctx context.Context, addr, password string, ttl time.Duration) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisLocker{
		client:     client,
		prefix:     "fintel:lease",
		ttl:        ttl,
		renewEvery: ttl / 3,
	}, nil
}

// Close closes the Redis connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func (l *RedisLocker) wrapKey(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (Release, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.wrapKey(key), token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return l.release(key, token), nil
}

// Acquire polls with exponential backoff until the lease is free or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0

	var release Release
	err := backoff.Retry(func() error {
		r, err := l.TryAcquire(ctx, key)
		if errors.Is(err, ErrHeld) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		release = r
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return release, nil
}

func (l *RedisLocker) release(key, token string) Release {
	stop := make(chan struct{})
	if l.renewEvery > 0 {
		go l.keepAlive(key, token, stop)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// The holder's context may already be cancelled; release on a fresh one.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{l.wrapKey(key)}, token).Err(); err != nil {
				log.WithError(err).WithField("lease", key).Warn("failed to release lease")
			}
		})
	}
}

// keepAlive renews the lease until stop is closed or the token no longer owns the key.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.renewEvery)
		renewed, err := renewScript.Run(ctx, l.client, []string{l.wrapKey(key)}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			log.WithError(err).WithField("lease", key).Warn("failed to renew lease")
			continue
		}
		if renewed == 0 {
			log.WithField("lease", key).Error("lease lost before release")
			return
		}
	}
}
