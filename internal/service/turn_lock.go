package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TurnLocker serializa turnos del mismo hilo. Hilos distintos no se bloquean.
type TurnLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type keyedMutex struct {
	ch   chan struct{}
	refs int
}

type memoryTurnLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

func NewMemoryTurnLocker() TurnLocker {
	return &memoryTurnLocker{locks: make(map[string]*keyedMutex)}
}

func (l *memoryTurnLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	km, ok := l.locks[key]
	if !ok {
		km = &keyedMutex{ch: make(chan struct{}, 1)}
		l.locks[key] = km
	}
	km.refs++
	l.mu.Unlock()

	select {
	case km.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, km)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-km.ch
			l.release(key, km)
		})
	}, nil
}

func (l *memoryTurnLocker) release(key string, km *keyedMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	km.refs--
	if km.refs == 0 {
		delete(l.locks, key)
	}
}

const redisUnlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type redisLockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisTurnLocker usa SET NX PX para serializar turnos entre replicas.
// Si Redis falla cae al lock en memoria del proceso.
type redisTurnLocker struct {
	client   redisLockClient
	ttl      time.Duration
	poll     time.Duration
	prefix   string
	fallback TurnLocker
	logger   *zap.Logger
}

func NewRedisTurnLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) TurnLocker {
	if client == nil {
		return NewMemoryTurnLocker()
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisTurnLocker{
		client:   client,
		ttl:      ttl,
		poll:     100 * time.Millisecond,
		prefix:   "chat:turn:",
		fallback: NewMemoryTurnLocker(),
		logger:   logger,
	}
}

func (l *redisTurnLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + strings.TrimSpace(key)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Warn("redis turn lock failed, using local lock", zap.String("key", key), zap.Error(err))
			return l.fallback.Lock(ctx, key)
		}
		if ok {
			break
		}

		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			if err := l.client.Eval(ctx, redisUnlockScript, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("redis turn unlock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
