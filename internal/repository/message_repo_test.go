package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"flyer-agent/internal/db"
	"flyer-agent/internal/domain"
)

func newSqliteRepo(t *testing.T) *SqliteMessageRepository {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	repo := NewSqliteMessageRepository(conn)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	repo.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func repoFactories() map[string]func(t *testing.T) MessageRepository {
	return map[string]func(t *testing.T) MessageRepository{
		"memory": func(*testing.T) MessageRepository { return NewMemoryMessageRepository() },
		"sqlite": func(t *testing.T) MessageRepository { return newSqliteRepo(t) },
	}
}

func mustThread(t *testing.T, userID, sessionID string) domain.ThreadID {
	t.Helper()
	id, err := domain.ResolveThread(userID, sessionID)
	if err != nil {
		t.Fatalf("resolve thread: %v", err)
	}
	return id
}

func msg(id string, role domain.Role, text string) domain.Message {
	return domain.Message{ID: id, Role: role, Content: domain.PlainContent(text), CreatedAt: time.Now().UTC()}
}

func TestMessageRepository_AppendAndLoadPreservesOrder(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			thread := mustThread(t, "u1", "s1")

			if err := repo.Append(ctx, thread, msg("m1", domain.RoleUser, "Design a pizza flyer"), msg("m2", domain.RoleAssistant, "listo")); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := repo.Append(ctx, thread, msg("m3", domain.RoleUser, "mas rojo")); err != nil {
				t.Fatalf("append: %v", err)
			}

			got, err := repo.Load(ctx, thread)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			want := []string{"m1", "m2", "m3"}
			if len(got) != len(want) {
				t.Fatalf("expected %d messages, got %d", len(want), len(got))
			}
			for i, id := range want {
				if got[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
			if got[0].Role != domain.RoleUser || got[0].Text() != "Design a pizza flyer" {
				t.Fatalf("unexpected first message %+v", got[0])
			}
		})
	}
}

func TestMessageRepository_StructuredContentRoundTrip(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			thread := mustThread(t, "u1", "s1")

			reply := domain.Message{
				ID:      "m1",
				Role:    domain.RoleAssistant,
				Content: domain.PartsContent(domain.Part{Type: "text", Text: "a"}, domain.Part{Type: "text", Text: "b"}),
			}
			if err := repo.Append(ctx, thread, reply); err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err := repo.Load(ctx, thread)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(got) != 1 || !got[0].Content.IsStructured() || got[0].Text() != "ab" {
				t.Fatalf("unexpected structured roundtrip: %+v", got)
			}
		})
	}
}

func TestMessageRepository_UnknownThreadIsEmpty(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			got, err := repo.Load(context.Background(), mustThread(t, "nobody", "none"))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil slice, got %+v", got)
			}

			ids, err := repo.ListThreadIDs(context.Background(), "nobody")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(ids) != 0 {
				t.Fatalf("expected no threads, got %v", ids)
			}
		})
	}
}

func TestMessageRepository_ListThreadIDsIsolatesUsers(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			// "u1" es prefijo de "u10": el indice secundario no debe mezclarlos.
			for _, pair := range [][2]string{{"u1", "a"}, {"u10", "b"}, {"u1", "c"}} {
				thread := mustThread(t, pair[0], pair[1])
				if err := repo.Append(ctx, thread, msg(pair[0]+pair[1], domain.RoleUser, "hola")); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			ids, err := repo.ListThreadIDs(ctx, "u1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(ids) != 2 {
				t.Fatalf("expected 2 threads for u1, got %v", ids)
			}
			// el mas reciente primero
			if ids[0] != "u1:c" || ids[1] != "u1:a" {
				t.Fatalf("unexpected order %v", ids)
			}
		})
	}
}

func TestMessageRepository_MalformedThreadRejected(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			err := repo.Append(context.Background(), domain.ThreadID("no-separator"), msg("m1", domain.RoleUser, "x"))
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestMessageRepository_UnknownRoleRejectsWholeBatch(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			thread := mustThread(t, "u1", "s1")
			err := repo.Append(ctx, thread, msg("m1", domain.RoleUser, "ok"), msg("m2", domain.Role("tool"), "x"))
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			got, err := repo.Load(ctx, thread)
			if err != nil || len(got) != 0 {
				t.Fatalf("expected nothing stored, got %v %v", got, err)
			}
		})
	}
}

func TestMessageRepository_ConcurrentAppendsDoNotLoseWrites(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			threads := []domain.ThreadID{mustThread(t, "u1", "s1"), mustThread(t, "u1", "s2")}

			const perThread = 20
			var wg sync.WaitGroup
			errCh := make(chan error, perThread*len(threads))
			for _, thread := range threads {
				for i := 0; i < perThread; i++ {
					wg.Add(1)
					go func(thread domain.ThreadID, i int) {
						defer wg.Done()
						u := msg(fmt.Sprintf("%s-u%d", thread, i), domain.RoleUser, "q")
						a := msg(fmt.Sprintf("%s-a%d", thread, i), domain.RoleAssistant, "r")
						if err := repo.Append(ctx, thread, u, a); err != nil {
							errCh <- err
						}
					}(thread, i)
				}
			}
			wg.Wait()
			close(errCh)
			for err := range errCh {
				t.Fatalf("append failed: %v", err)
			}

			for _, thread := range threads {
				got, err := repo.Load(ctx, thread)
				if err != nil {
					t.Fatalf("load: %v", err)
				}
				if len(got) != perThread*2 {
					t.Fatalf("expected %d messages in %s, got %d", perThread*2, thread, len(got))
				}
				// los pares nunca se intercalan: user seguido de su assistant
				for i := 0; i < len(got); i += 2 {
					if got[i].Role != domain.RoleUser || got[i+1].Role != domain.RoleAssistant {
						t.Fatalf("interleaved pair at %d in %s", i, thread)
					}
					if strings.Replace(got[i].ID, "-u", "-a", 1) != got[i+1].ID {
						t.Fatalf("mismatched pair %s / %s", got[i].ID, got[i+1].ID)
					}
				}
			}
		})
	}
}
