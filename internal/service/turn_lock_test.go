package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestMemoryTurnLocker_SerializesSameKey(t *testing.T) {
	l := NewMemoryTurnLocker()
	unlock, err := l.Lock(context.Background(), "u1:s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), "u1:s1")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second lock never acquired")
	}
}

func TestMemoryTurnLocker_DistinctKeysDoNotBlock(t *testing.T) {
	l := NewMemoryTurnLocker()
	unlock, err := l.Lock(context.Background(), "u1:s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	other, err := l.Lock(ctx, "u1:s2")
	if err != nil {
		t.Fatalf("expected distinct key to lock immediately, got %v", err)
	}
	other()
}

func TestMemoryTurnLocker_ContextCancelled(t *testing.T) {
	l := NewMemoryTurnLocker().(*memoryTurnLocker)
	unlock, _ := l.Lock(context.Background(), "k")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	unlock() // idempotente
	l.mu.Lock()
	n := len(l.locks)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected lock table cleaned up, got %d entries", n)
	}
}

type mockRedisLockClient struct {
	mu        sync.Mutex
	held      map[string]string
	setErr    error
	evalCalls int
}

func (m *mockRedisLockClient) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	if _, ok := m.held[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	m.held[key] = value.(string)
	cmd.SetVal(true)
	return cmd
}

func (m *mockRedisLockClient) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evalCalls++
	cmd := redis.NewCmd(ctx)
	if m.held[keys[0]] == args[0].(string) {
		delete(m.held, keys[0])
		cmd.SetVal(int64(1))
		return cmd
	}
	cmd.SetVal(int64(0))
	return cmd
}

func newTestRedisLocker(client *mockRedisLockClient) *redisTurnLocker {
	return &redisTurnLocker{
		client:   client,
		ttl:      time.Minute,
		poll:     5 * time.Millisecond,
		prefix:   "chat:turn:",
		fallback: NewMemoryTurnLocker(),
		logger:   zap.NewNop(),
	}
}

func TestRedisTurnLocker_LockAndUnlock(t *testing.T) {
	client := &mockRedisLockClient{held: map[string]string{}}
	l := newTestRedisLocker(client)

	unlock, err := l.Lock(context.Background(), " u1:s1 ")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, ok := client.held["chat:turn:u1:s1"]; !ok {
		t.Fatalf("expected redis key to be held, got %+v", client.held)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "u1:s1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected contention timeout, got %v", err)
	}

	unlock()
	if len(client.held) != 0 || client.evalCalls != 1 {
		t.Fatalf("expected key released via script, held=%+v evals=%d", client.held, client.evalCalls)
	}
}

func TestRedisTurnLocker_FallsBackOnRedisError(t *testing.T) {
	client := &mockRedisLockClient{held: map[string]string{}, setErr: errors.New("redis down")}
	l := newTestRedisLocker(client)

	unlock, err := l.Lock(context.Background(), "u1:s1")
	if err != nil {
		t.Fatalf("expected fallback lock, got %v", err)
	}
	unlock()
	if client.evalCalls != 0 {
		t.Fatalf("fallback unlock should not touch redis")
	}
}
