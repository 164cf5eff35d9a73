package llm

import (
	"context"
	"sync"

	"flyer-agent/internal/domain"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	mu       sync.Mutex
	Response domain.Content
	Err      error
	calls    [][]domain.Message
}

func (m *MockClient) Generate(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]domain.Message, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, cp)
	if m.Err != nil {
		return domain.Message{}, m.Err
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{Role: domain.RoleAssistant, Content: m.Response}, nil
}

// Calls devuelve las secuencias recibidas en cada llamada.
func (m *MockClient) Calls() [][]domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]domain.Message, len(m.calls))
	copy(out, m.calls)
	return out
}
