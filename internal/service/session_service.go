package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"flyer-agent/internal/domain"
	"flyer-agent/internal/repository"
)

var ErrSessionServiceNotConfigured = errors.New("session service not configured")

// SessionService arma el indice de sesiones de un usuario con su preview.
type SessionService struct {
	repo   repository.MessageRepository
	logger *zap.Logger
}

func NewSessionService(repo repository.MessageRepository, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, logger: logger}
}

func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]domain.SessionPreview, error) {
	if s == nil || s.repo == nil {
		return nil, ErrSessionServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.Contains(userID, domain.ThreadSeparator) {
		return nil, fmt.Errorf("%w: invalid user_id", domain.ErrValidation)
	}

	threads, err := s.repo.ListThreadIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SessionPreview, 0, len(threads))
	for _, thread := range threads {
		owner, sessionID, ok := thread.Split()
		if !ok || owner != userID {
			s.logger.Warn("skipping foreign or malformed thread", zap.String("thread_id", thread.String()))
			continue
		}
		msgs, err := s.repo.Load(ctx, thread)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SessionPreview{
			SessionID: sessionID,
			Preview:   domain.PreviewFromTranscript(projectTranscript(msgs)),
		})
	}
	return out, nil
}
