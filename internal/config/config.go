package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"

	ProviderOpenAICompatible = "openai-compatible"
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOllama           = "ollama"
	ProviderGoogleAI         = "googleai"
	// ProviderMock responde en forma fija sin llamar a ningun modelo.
	ProviderMock = "mock"

	AuthModeJWT      = "jwt"
	AuthModeSupabase = "supabase"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string   `env:"HTTP_PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"flyer-agent.db"`

	LLMProvider    string        `env:"LLM_PROVIDER" envDefault:"openai-compatible"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gemini-2.5-flash"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE" envDefault:"1.5"`
	LLMMaxRetries  int           `env:"LLM_MAX_RETRIES" envDefault:"2"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"90s"`
	DirectiveFile  string        `env:"DIRECTIVE_FILE"`

	AuthMode       string `env:"AUTH_MODE" envDefault:"jwt"`
	JWTSecret      string `env:"SUPABASE_JWT_SECRET"`
	JWTAudience    string `env:"SUPABASE_JWT_AUDIENCE" envDefault:"authenticated"`
	SupabaseURL    string `env:"SUPABASE_URL"`
	SupabaseAPIKey string `env:"SUPABASE_ANON_KEY"`

	RedisAddr           string        `env:"REDIS_ADDR"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
	ChatRateLimit       int           `env:"CHAT_RATE_LIMIT" envDefault:"20"`
	ChatRateLimitWindow time.Duration `env:"CHAT_RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	return LoadConfigWith()
}

// LoadConfigWith aplica overrides (por ejemplo flags del CLI) antes de validar.
func LoadConfigWith(overrides ...func(*Config)) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.LLMProvider {
	case ProviderOpenAICompatible, ProviderOpenAI, ProviderAnthropic, ProviderGoogleAI:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("config: LLM_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.AuthMode {
	case AuthModeJWT:
	case AuthModeSupabase:
		if c.SupabaseURL == "" || c.SupabaseAPIKey == "" {
			return fmt.Errorf("config: SUPABASE_URL and SUPABASE_ANON_KEY are required for auth mode %q", c.AuthMode)
		}
	default:
		return fmt.Errorf("config: unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.LLMMaxRetries < 0 {
		c.LLMMaxRetries = 0
	}
	return nil
}
