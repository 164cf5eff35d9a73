package domain

import (
	"errors"
	"testing"
)

func TestResolveThread_Deterministic(t *testing.T) {
	a, err := ResolveThread("u1", "s1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := ResolveThread(" u1 ", "s1 ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a != b {
		t.Fatalf("expected stable thread id, got %q vs %q", a, b)
	}
	if a != "u1:s1" {
		t.Fatalf("unexpected thread id %q", a)
	}
}

func TestResolveThread_DistinctPairsDoNotCollide(t *testing.T) {
	pairs := [][2]string{
		{"u1", "s1"},
		{"u1", "s1:x"},
		{"u", "1:s1"},
		{"u1s", "1"},
		{"u11", "s1"},
		{"u1", "1s1"},
	}
	seen := make(map[ThreadID][2]string)
	for _, p := range pairs {
		id, err := ResolveThread(p[0], p[1])
		if err != nil {
			// user ids con separador se rechazan; no cuentan como colision.
			continue
		}
		if prev, ok := seen[id]; ok {
			t.Fatalf("collision between %v and %v -> %q", prev, p, id)
		}
		seen[id] = p
	}
}

func TestResolveThread_Validation(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	cases := []struct {
		name    string
		user    string
		session string
	}{
		{"empty user", "", "s1"},
		{"blank user", "   ", "s1"},
		{"empty session", "u1", ""},
		{"separator in user", "u:1", "s1"},
		{"too long", string(long), "s1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := ResolveThread(c.user, c.session); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestThreadID_SplitInvertsResolve(t *testing.T) {
	id, err := ResolveThread("u1", "s:1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	u, s, ok := id.Split()
	if !ok || u != "u1" || s != "s:1" {
		t.Fatalf("unexpected split: %q %q %v", u, s, ok)
	}
	if id.UserID() != "u1" || id.SessionID() != "s:1" {
		t.Fatalf("unexpected helpers: %q %q", id.UserID(), id.SessionID())
	}

	if _, _, ok := ThreadID("garbage").Split(); ok {
		t.Fatalf("expected split failure without separator")
	}
}
