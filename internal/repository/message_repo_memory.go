package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"flyer-agent/internal/domain"
)

type memoryThread struct {
	mu       sync.Mutex
	messages []domain.Message
	stamp    int64
}

// MemoryMessageRepository guarda hilos en memoria. Cada hilo tiene su propio
// lock, asi que appends sobre hilos distintos no se bloquean entre si.
type MemoryMessageRepository struct {
	mu      sync.RWMutex
	threads map[domain.ThreadID]*memoryThread
	byUser  map[string]map[string]domain.ThreadID
	clock   atomic.Int64
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		threads: make(map[domain.ThreadID]*memoryThread),
		byUser:  make(map[string]map[string]domain.ThreadID),
	}
}

func (r *MemoryMessageRepository) thread(thread domain.ThreadID, create bool) (*memoryThread, error) {
	r.mu.RLock()
	t, ok := r.threads[thread]
	r.mu.RUnlock()
	if ok || !create {
		return t, nil
	}

	userID, sessionID, err := splitThread(thread)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.threads[thread]; ok {
		return t, nil
	}
	t = &memoryThread{}
	r.threads[thread] = t
	sessions, ok := r.byUser[userID]
	if !ok {
		sessions = make(map[string]domain.ThreadID)
		r.byUser[userID] = sessions
	}
	sessions[sessionID] = thread
	return t, nil
}

func (r *MemoryMessageRepository) Append(_ context.Context, thread domain.ThreadID, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := validateMessages(msgs); err != nil {
		return err
	}
	t, err := r.thread(thread, true)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
	t.stamp = r.clock.Add(1)
	return nil
}

func (r *MemoryMessageRepository) Load(_ context.Context, thread domain.ThreadID) ([]domain.Message, error) {
	t, err := r.thread(thread, false)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return []domain.Message{}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out, nil
}

func (r *MemoryMessageRepository) ListThreadIDs(_ context.Context, userID string) ([]domain.ThreadID, error) {
	type entry struct {
		id    domain.ThreadID
		stamp int64
	}

	r.mu.RLock()
	entries := make([]entry, 0, len(r.byUser[userID]))
	threads := make([]*memoryThread, 0, len(r.byUser[userID]))
	for _, id := range r.byUser[userID] {
		entries = append(entries, entry{id: id})
		threads = append(threads, r.threads[id])
	}
	r.mu.RUnlock()

	for i, t := range threads {
		t.mu.Lock()
		entries[i].stamp = t.stamp
		t.mu.Unlock()
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].stamp != entries[j].stamp {
			return entries[i].stamp > entries[j].stamp
		}
		return entries[i].id < entries[j].id
	})

	ids := make([]domain.ThreadID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (r *MemoryMessageRepository) Ping(context.Context) error {
	return nil
}
