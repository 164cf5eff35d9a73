package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"flyer-agent/internal/domain"
)

type fakeLangChainModel struct {
	got  []llms.MessageContent
	opts llms.CallOptions
	resp *llms.ContentResponse
	err  error
}

func (f *fakeLangChainModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeLangChainModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainBackend_MapsRolesAndOptions(t *testing.T) {
	model := &fakeLangChainModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "listo"}}}}
	b := NewLangChainBackend(model, Options{Temperature: 0.7})

	msg, err := b.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: domain.PlainContent("directiva")},
		{Role: domain.RoleUser, Content: domain.PlainContent("hola")},
		{Role: domain.RoleAssistant, Content: domain.PartsContent(domain.Part{Type: "text", Text: "a"}, domain.Part{Type: "image"})},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if msg.Role != domain.RoleAssistant || msg.Text() != "listo" {
		t.Fatalf("unexpected reply %+v", msg)
	}
	if len(model.got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(model.got))
	}
	want := []schema.ChatMessageType{schema.ChatMessageTypeSystem, schema.ChatMessageTypeHuman, schema.ChatMessageTypeAI}
	for i, role := range want {
		if model.got[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, model.got[i].Role)
		}
	}
	if len(model.got[2].Parts) != 1 {
		t.Fatalf("expected non-text parts dropped, got %+v", model.got[2].Parts)
	}
	if model.opts.Temperature != 0.7 {
		t.Fatalf("expected temperature option, got %v", model.opts.Temperature)
	}
}

func TestLangChainBackend_MultipleChoicesBecomeParts(t *testing.T) {
	model := &fakeLangChainModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "uno "}, {Content: "dos"}}}}
	b := NewLangChainBackend(model, Options{})

	msg, err := b.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !msg.Content.IsStructured() || msg.Text() != "uno dos" {
		t.Fatalf("unexpected reply %+v", msg)
	}
}

func TestLangChainBackend_Errors(t *testing.T) {
	cases := map[string]*fakeLangChainModel{
		"provider error": {err: errors.New("quota")},
		"no choices":     {resp: &llms.ContentResponse{}},
		"blank content":  {resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "  "}}}},
	}
	for name, model := range cases {
		t.Run(name, func(t *testing.T) {
			b := NewLangChainBackend(model, Options{})
			if _, err := b.Generate(context.Background(), nil); !errors.Is(err, domain.ErrBackend) {
				t.Fatalf("expected ErrBackend, got %v", err)
			}
		})
	}

	var nilBackend *LangChainBackend
	if _, err := nilBackend.Generate(context.Background(), nil); !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected ErrBackend for nil backend, got %v", err)
	}
}

func TestNewLangChainModel_UnknownProvider(t *testing.T) {
	if _, err := NewLangChainModel(context.Background(), "bard", "", "", "m"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
