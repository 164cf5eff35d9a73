package service

import (
	"context"
	"errors"

	"flyer-agent/internal/domain"
	"flyer-agent/internal/repository"
)

var ErrHistoryServiceNotConfigured = errors.New("history service not configured")

// HistoryService proyecta un hilo guardado al transcript que ve el cliente.
type HistoryService struct {
	repo repository.MessageRepository
}

func NewHistoryService(repo repository.MessageRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// Project omite los mensajes system y aplana el contenido de ambos roles.
func (s *HistoryService) Project(ctx context.Context, userID, sessionID string) ([]domain.TranscriptEntry, error) {
	if s == nil || s.repo == nil {
		return nil, ErrHistoryServiceNotConfigured
	}
	thread, err := domain.ResolveThread(userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.Load(ctx, thread)
	if err != nil {
		return nil, err
	}
	return projectTranscript(msgs), nil
}

func projectTranscript(msgs []domain.Message) []domain.TranscriptEntry {
	out := make([]domain.TranscriptEntry, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, domain.TranscriptEntry{Role: domain.TranscriptRoleUser, Content: m.Text()})
		case domain.RoleAssistant:
			out = append(out, domain.TranscriptEntry{Role: domain.TranscriptRoleAI, Content: m.Text()})
		}
	}
	return out
}
