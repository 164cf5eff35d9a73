package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flyer-agent/internal/domain"
)

// HTTPClient implementa Backend usando una API de chat completions compatible con OpenAI.
type HTTPClient struct {
	baseURL string
	apiKey  string
	opts    Options
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
func NewHTTPClient(baseURL, apiKey string, opts Options, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		opts:    opts,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPClient) Generate(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	reqBody := chatRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		Messages:    make([]chatMessage, 0, len(messages)),
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Message{}, backendErr("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return domain.Message{}, backendErr("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Message{}, backendErr("do request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Message{}, backendErr("read response", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("llm error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(respBody), 512)),
		)
		return domain.Message{}, backendErr("llm http error", &StatusError{Code: resp.StatusCode})
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return domain.Message{}, backendErr("unmarshal response", err)
	}

	if cr.Error != nil {
		return domain.Message{}, backendErr("llm api error", errors.New(cr.Error.Message))
	}

	if len(cr.Choices) == 0 {
		return domain.Message{}, backendErr("llm", errEmptyResponse)
	}
	out := cr.Choices[0].Message
	if strings.TrimSpace(out.Content.Flatten()) == "" {
		return domain.Message{}, backendErr("llm", errEmptyResponse)
	}
	role := domain.Role(out.Role)
	if role == "" {
		role = domain.RoleAssistant
	}

	return domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   out.Content,
		CreatedAt: time.Now().UTC(),
	}, nil
}

var errEmptyResponse = errors.New("llm empty response")

// StatusError conserva el status HTTP para decidir reintentos.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d", e.Code)
}

// Retryable indica si vale la pena reintentar (rate limit o error del servidor).
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string         `json:"role"`
	Content domain.Content `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
