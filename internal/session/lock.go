package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when a channel lock could not be taken before ctx ended.
var ErrLockTimeout = errors.New("channel lock timeout")

// Locker serializes command handling per channel.
type Locker interface {
	Lock(ctx context.Context, channel string) (func(), error)
}

// LocalLocker is an in-process Locker. Slots are created on demand and dropped once
// nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

func (l *LocalLocker) Lock(ctx context.Context, channel string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[channel]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[channel] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(channel, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(channel, slot)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, channel, ctx.Err())
	}
}

func (l *LocalLocker) release(channel string, slot *lockSlot) {
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, channel)
	}
	l.mu.Unlock()
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis.
// The lease bounds how long a crashed holder can block a channel; a live holder
// extends it every lease/3 until unlock.
type RedisLocker struct {
	rdb    *redis.Client
	lease  time.Duration
	renew  time.Duration
	poll   time.Duration
	logger *zap.Logger
}

type RedisLockerOption func(*RedisLocker)

func WithLockLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewRedisLocker(rdb *redis.Client, lease time.Duration, opts ...RedisLockerOption) *RedisLocker {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	l := &RedisLocker{rdb: rdb, lease: lease, renew: lease / 3, poll: 25 * time.Millisecond, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) key(channel string) string {
	return "puzzle:lock:" + strings.TrimSpace(channel)
}

func (l *RedisLocker) Lock(ctx context.Context, channel string) (func(), error) {
	key := l.key(channel)
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, channel, ctx.Err())
			}
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, channel, ctx.Err())
		case <-t.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(channel, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := unlockScript.Run(rctx, l.rdb, []string{key}, token).Int64()
			switch {
			case err != nil:
				l.logger.Warn("puzzle_unlock_failed", zap.String("channel", channel), zap.Error(err))
			case n == 0:
				l.logger.Warn("puzzle_lock_lost", zap.String("channel", channel), zap.String("stage", "unlock"))
			}
		})
	}, nil
}

// keepAlive extends the lease while the holder works. It stops on unlock or once the
// key no longer carries our token.
func (l *RedisLocker) keepAlive(channel, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if l.renew <= 0 {
		return
	}
	ticker := time.NewTicker(l.renew)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		rctx, cancel := context.WithTimeout(context.Background(), l.renew)
		n, err := renewScript.Run(rctx, l.rdb, []string{key}, token, l.lease.Milliseconds()).Int64()
		cancel()
		if err != nil {
			l.logger.Warn("puzzle_lock_renew_failed", zap.String("channel", channel), zap.Error(err))
			continue
		}
		if n == 0 {
			l.logger.Warn("puzzle_lock_lost", zap.String("channel", channel), zap.String("stage", "renew"))
			return
		}
	}
}
