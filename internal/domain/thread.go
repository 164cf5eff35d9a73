package domain

import (
	"fmt"
	"strings"
)

// ThreadSeparator separa user_id y session_id dentro de un ThreadID.
const ThreadSeparator = ":"

const maxThreadComponentLen = 255

// ThreadID identifica una conversacion persistida de un usuario.
type ThreadID string

// ResolveThread construye el ThreadID para el par (user_id, session_id).
// El user_id no puede contener el separador; el session_id si, porque
// siempre se corta por el primer separador.
func ResolveThread(userID, sessionID string) (ThreadID, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)

	if userID == "" {
		return "", fmt.Errorf("%w: empty user_id", ErrValidation)
	}
	if sessionID == "" {
		return "", fmt.Errorf("%w: empty session_id", ErrValidation)
	}
	if strings.Contains(userID, ThreadSeparator) {
		return "", fmt.Errorf("%w: user_id contains %q", ErrValidation, ThreadSeparator)
	}
	if len(userID) > maxThreadComponentLen || len(sessionID) > maxThreadComponentLen {
		return "", fmt.Errorf("%w: identifier too long", ErrValidation)
	}

	return ThreadID(userID + ThreadSeparator + sessionID), nil
}

// Split invierte ResolveThread.
func (t ThreadID) Split() (userID, sessionID string, ok bool) {
	userID, sessionID, ok = strings.Cut(string(t), ThreadSeparator)
	if !ok || userID == "" || sessionID == "" {
		return "", "", false
	}
	return userID, sessionID, true
}

func (t ThreadID) UserID() string {
	u, _, _ := t.Split()
	return u
}

func (t ThreadID) SessionID() string {
	_, s, _ := t.Split()
	return s
}

func (t ThreadID) String() string {
	return string(t)
}
