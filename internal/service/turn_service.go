package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flyer-agent/internal/domain"
	"flyer-agent/internal/llm"
	"flyer-agent/internal/repository"
)

var ErrTurnServiceNotConfigured = errors.New("turn service not configured")

const (
	defaultBackendTimeout = 90 * time.Second
	defaultPersistTimeout = 5 * time.Second
)

// TurnResult es la respuesta de un turno completado y persistido.
type TurnResult struct {
	SessionID string
	Response  string
	Design    *DesignReply
}

// TurnServiceConfig agrupa los tiempos limite del turno.
type TurnServiceConfig struct {
	BackendTimeout time.Duration
	PersistTimeout time.Duration
}

// TurnService ejecuta un turno de conversacion: carga historial, llama al
// backend y guarda pregunta y respuesta juntas.
type TurnService struct {
	repo      repository.MessageRepository
	backend   llm.Backend
	directive Directive
	locker    TurnLocker
	logger    *zap.Logger
	cfg       TurnServiceConfig
	now       func() time.Time
}

func NewTurnService(
	repo repository.MessageRepository,
	backend llm.Backend,
	directive Directive,
	locker TurnLocker,
	logger *zap.Logger,
	cfg TurnServiceConfig,
) *TurnService {
	if locker == nil {
		locker = NewMemoryTurnLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = defaultBackendTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	return &TurnService{
		repo:      repo,
		backend:   backend,
		directive: directive,
		locker:    locker,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *TurnService) Generate(ctx context.Context, userID, sessionID, inbound string) (TurnResult, error) {
	if s == nil || s.repo == nil || s.backend == nil {
		return TurnResult{}, ErrTurnServiceNotConfigured
	}

	thread, err := domain.ResolveThread(userID, sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	if strings.TrimSpace(inbound) == "" {
		return TurnResult{}, fmt.Errorf("%w: message must not be empty", domain.ErrValidation)
	}

	logger := s.logger.With(zap.String("thread_id", thread.String()))

	unlock, err := s.locker.Lock(ctx, thread.String())
	if err != nil {
		return TurnResult{}, fmt.Errorf("lock turn: %w", err)
	}
	defer unlock()

	history, err := s.repo.Load(ctx, thread)
	if err != nil {
		return TurnResult{}, err
	}

	userMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   domain.PlainContent(inbound),
		CreatedAt: s.now(),
	}

	request := make([]domain.Message, 0, len(history)+2)
	request = append(request, s.directive.Message())
	request = append(request, history...)
	request = append(request, userMsg)

	backendCtx, cancel := context.WithTimeout(ctx, s.cfg.BackendTimeout)
	reply, err := s.backend.Generate(backendCtx, request)
	cancel()
	if err != nil {
		logger.Warn("backend generation failed", zap.Error(err))
		if errors.Is(err, domain.ErrBackend) {
			return TurnResult{}, err
		}
		return TurnResult{}, fmt.Errorf("generate reply: %w: %w", domain.ErrBackend, err)
	}
	if reply.Role != domain.RoleAssistant {
		return TurnResult{}, fmt.Errorf("%w: unexpected reply role %q", domain.ErrBackend, reply.Role)
	}
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	reply.CreatedAt = s.now()

	// El turno ya se pago: se persiste aunque el cliente se haya ido.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancelPersist()
	if err := s.repo.Append(persistCtx, thread, userMsg, reply); err != nil {
		logger.Error("persist turn failed", zap.Error(err))
		return TurnResult{}, err
	}

	text := reply.Text()
	result := TurnResult{SessionID: thread.SessionID(), Response: text}
	if design, ok := ParseDesignReply(text); ok {
		result.Design = &design
	}
	logger.Info("turn completed", zap.Int("history_len", len(history)))
	return result, nil
}
