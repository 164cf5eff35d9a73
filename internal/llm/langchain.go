package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"flyer-agent/internal/domain"
)

// NewLangChainModel crea el modelo de langchaingo para el proveedor indicado.
func NewLangChainModel(ctx context.Context, provider, apiKey, baseURL, model string) (llms.Model, error) {
	switch provider {
	case "openai":
		opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return m, nil
	case "anthropic":
		m, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return m, nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(model)}
		if baseURL != "" {
			opts = append(opts, ollama.WithServerURL(baseURL))
		}
		m, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return m, nil
	case "googleai":
		m, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// LangChainBackend adapta un llms.Model de langchaingo a Backend.
type LangChainBackend struct {
	model llms.Model
	opts  Options
}

func NewLangChainBackend(model llms.Model, opts Options) *LangChainBackend {
	return &LangChainBackend{model: model, opts: opts}
}

func (b *LangChainBackend) Generate(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	if b == nil || b.model == nil {
		return domain.Message{}, backendErr("langchain", errors.New("model not configured"))
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		mc, ok := toMessageContent(m)
		if !ok {
			continue
		}
		content = append(content, mc)
	}

	resp, err := b.model.GenerateContent(ctx, content, llms.WithTemperature(b.opts.Temperature))
	if err != nil {
		return domain.Message{}, backendErr("generate content", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return domain.Message{}, backendErr("generate content", errEmptyResponse)
	}

	// Algunos proveedores devuelven un choice por bloque de contenido.
	var reply domain.Content
	if len(resp.Choices) == 1 {
		reply = domain.PlainContent(resp.Choices[0].Content)
	} else {
		parts := make([]domain.Part, 0, len(resp.Choices))
		for _, ch := range resp.Choices {
			if ch == nil {
				continue
			}
			parts = append(parts, domain.Part{Type: domain.PartText, Text: ch.Content})
		}
		reply = domain.PartsContent(parts...)
	}
	if strings.TrimSpace(reply.Flatten()) == "" {
		return domain.Message{}, backendErr("generate content", errEmptyResponse)
	}

	return domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func toMessageContent(m domain.Message) (llms.MessageContent, bool) {
	var role schema.ChatMessageType
	switch m.Role {
	case domain.RoleSystem:
		role = schema.ChatMessageTypeSystem
	case domain.RoleUser:
		role = schema.ChatMessageTypeHuman
	case domain.RoleAssistant:
		role = schema.ChatMessageTypeAI
	default:
		return llms.MessageContent{}, false
	}

	if !m.Content.IsStructured() {
		return llms.TextParts(role, m.Content.Flatten()), true
	}
	mc := llms.MessageContent{Role: role}
	for _, p := range m.Content.Parts() {
		if p.Type == domain.PartText {
			mc.Parts = append(mc.Parts, llms.TextContent{Text: p.Text})
		}
	}
	return mc, true
}
