package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"flyer-agent/internal/domain"
	"flyer-agent/internal/service"
)

// StorePinger es el chequeo de salud del store.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ChatHandler mantiene dependencias para los endpoints de chat, historial y sesiones.
type ChatHandler struct {
	logger   *zap.Logger
	turns    *service.TurnService
	history  *service.HistoryService
	sessions *service.SessionService
	limiter  service.ChatRateLimiter
	store    StorePinger
}

// NewChatHandler crea una instancia de ChatHandler. limiter puede ser nil.
func NewChatHandler(
	logger *zap.Logger,
	turns *service.TurnService,
	history *service.HistoryService,
	sessions *service.SessionService,
	limiter service.ChatRateLimiter,
	store StorePinger,
) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		logger:   logger,
		turns:    turns,
		history:  history,
		sessions: sessions,
		limiter:  limiter,
		store:    store,
	}
}

// Root maneja GET /.
func (h *ChatHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Flyer design agent is running"})
}

// Health maneja GET /healthz.
func (h *ChatHandler) Health(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	AIMessage string `json:"ai_message,omitempty"`
	Canvas    string `json:"canvas,omitempty"`
}

// Chat maneja POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UserID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	result, err := h.turns.Generate(c.Request.Context(), identity.UserID, req.SessionID, req.Message)
	if err != nil {
		h.writeTurnError(c, identity.UserID, req.SessionID, err)
		return
	}

	resp := chatResponse{SessionID: result.SessionID, Response: result.Response}
	if result.Design != nil {
		resp.AIMessage = result.Design.AIMessage
		resp.Canvas = result.Design.Canvas
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) writeTurnError(c *gin.Context, userID, sessionID string, err error) {
	fields := []zap.Field{zap.String("user_id", userID), zap.String("session_id", sessionID), zap.Error(err)}
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.logger.Warn("chat rejected", fields...)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, context.Canceled):
		h.logger.Info("chat cancelled by client", fields...)
		c.Status(499)
	case errors.Is(err, domain.ErrBackend):
		h.logger.Error("chat backend failed", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate a response", "code": "backend_error"})
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error("chat storage failed", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation storage unavailable", "code": "storage_unavailable"})
	default:
		h.logger.Error("chat failed", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// History maneja GET /history/:session_id. Un fallo del store se degrada a
// lista vacia y queda en el log.
func (h *ChatHandler) History(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	sessionID := strings.TrimSpace(c.Param("session_id"))

	conversation, err := h.history.Project(c.Request.Context(), identity.UserID, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		h.logger.Error("load history failed",
			zap.String("user_id", identity.UserID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		conversation = []domain.TranscriptEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "conversation": conversation})
}

// Sessions maneja GET /sessions con la misma politica de degradacion.
func (h *ChatHandler) Sessions(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.String("user_id", identity.UserID), zap.Error(err))
		sessions = []domain.SessionPreview{}
	}

	c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID, "sessions": sessions})
}
