package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LLM_API_KEY", "k")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port, got %q", cfg.HTTPPort)
	}
	if cfg.LLMProvider != ProviderOpenAICompatible || cfg.LLMModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected llm defaults: %q %q", cfg.LLMProvider, cfg.LLMModel)
	}
	if cfg.LLMTemperature != 1.5 || cfg.LLMMaxRetries != 2 {
		t.Fatalf("unexpected llm knobs: %v %d", cfg.LLMTemperature, cfg.LLMMaxRetries)
	}
	if cfg.LLMTimeout != 90*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.LLMTimeout)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres", "LLM_API_KEY": "k"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo", "LLM_API_KEY": "k"}},
		{"missing api key", map[string]string{"STORE_DRIVER": "memory", "LLM_PROVIDER": "openai"}},
		{"unknown provider", map[string]string{"STORE_DRIVER": "memory", "LLM_PROVIDER": "bard", "LLM_API_KEY": "k"}},
		{"supabase without url", map[string]string{"STORE_DRIVER": "memory", "LLM_API_KEY": "k", "AUTH_MODE": "supabase"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Setenv("LLM_API_KEY", "")
			for k, v := range c.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfig_OllamaWithoutKey(t *testing.T) {
	t.Setenv("STORE_DRIVER", " SQLite ")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("LLM_MAX_RETRIES", "-3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("expected normalized driver, got %q", cfg.StoreDriver)
	}
	if cfg.LLMMaxRetries != 0 {
		t.Fatalf("expected negative retries clamped, got %d", cfg.LLMMaxRetries)
	}
}

func TestLoadConfigWith_OverridesBeforeValidation(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LLM_API_KEY", "")

	cfg, err := LoadConfigWith(func(c *Config) {
		c.StoreDriver = StoreDriverMemory
		c.LLMProvider = ProviderMock
	})
	if err != nil {
		t.Fatalf("expected overrides to satisfy validation, got %v", err)
	}
	if cfg.StoreDriver != StoreDriverMemory || cfg.LLMProvider != ProviderMock {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
