package llm

import (
	"context"
	"fmt"

	"flyer-agent/internal/domain"
)

// Backend genera exactamente un mensaje assistant a partir de la secuencia completa
// de mensajes. No guarda estado entre llamadas.
type Backend interface {
	Generate(ctx context.Context, messages []domain.Message) (domain.Message, error)
}

// Options agrupa las perillas de configuracion del backend.
type Options struct {
	Model       string
	Temperature float64
}

func backendErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrBackend, err)
}
