// Package app arma las dependencias compartidas por la API y el CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flyer-agent/internal/config"
	"flyer-agent/internal/db"
	"flyer-agent/internal/domain"
	"flyer-agent/internal/llm"
	"flyer-agent/internal/repository"
	"flyer-agent/internal/service"
)

// MockReply es la respuesta fija del proveedor "mock".
const MockReply = `{"ai_message":"Offline mode: here is a placeholder flyer.","canvas":"<div style=\"padding:24px;font-family:sans-serif\"><h1>Your flyer</h1></div>"}`

// OpenStore abre el store configurado. close libera la conexion.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.MessageRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPgMessageRepository(pool), pool.Close, nil
	case config.StoreDriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSqliteMessageRepository(sqlDB), func() { _ = sqlDB.Close() }, nil
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, conversations are lost on restart")
		return repository.NewMemoryMessageRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewBackend crea el backend del proveedor configurado, envuelto con reintentos.
func NewBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Backend, error) {
	opts := llm.Options{Model: cfg.LLMModel, Temperature: cfg.LLMTemperature}

	var backend llm.Backend
	switch cfg.LLMProvider {
	case config.ProviderMock:
		return &llm.MockClient{Response: domain.PlainContent(MockReply)}, nil
	case config.ProviderOpenAICompatible:
		backend = llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, opts, logger)
	default:
		model, err := llm.NewLangChainModel(ctx, cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		backend = llm.NewLangChainBackend(model, opts)
	}
	return llm.NewRetryingBackend(backend, cfg.LLMMaxRetries, time.Second, logger), nil
}

// Coordination agrupa el lock de turnos y el rate limiter.
type Coordination struct {
	Locker  service.TurnLocker
	Limiter service.ChatRateLimiter
	close   func()
}

func (c Coordination) Close() {
	if c.close != nil {
		c.close()
	}
}

// NewCoordination usa Redis si esta configurado y responde; si no, cae a
// las implementaciones en proceso.
func NewCoordination(ctx context.Context, cfg *config.Config, logger *zap.Logger) Coordination {
	local := Coordination{
		Locker:  service.NewMemoryTurnLocker(),
		Limiter: service.NewMemoryChatRateLimiter(cfg.ChatRateLimitWindow, cfg.ChatRateLimit),
	}
	if cfg.RedisAddr == "" {
		return local
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed, using in-process coordination", zap.Error(err))
		_ = client.Close()
		return local
	}

	// El lock debe sobrevivir al backend y a la persistencia.
	ttl := cfg.LLMTimeout + 30*time.Second
	return Coordination{
		Locker:  service.NewRedisTurnLocker(client, ttl, logger),
		Limiter: service.NewRedisChatRateLimiter(client, cfg.ChatRateLimitWindow, cfg.ChatRateLimit),
		close:   func() { _ = client.Close() },
	}
}

// NewTurnService carga la directiva y arma el servicio de turnos.
func NewTurnService(cfg *config.Config, repo repository.MessageRepository, backend llm.Backend, locker service.TurnLocker, logger *zap.Logger) (*service.TurnService, error) {
	directive, err := service.LoadDirective(cfg.DirectiveFile)
	if err != nil {
		return nil, err
	}
	// LLM_TIMEOUT cubre la llamada completa, reintentos incluidos.
	return service.NewTurnService(repo, backend, directive, locker, logger, service.TurnServiceConfig{
		BackendTimeout: cfg.LLMTimeout,
	}), nil
}

// NewIdentityVerifier elige el verificador segun AUTH_MODE.
func NewIdentityVerifier(cfg *config.Config, logger *zap.Logger) service.IdentityVerifier {
	if cfg.AuthMode == config.AuthModeSupabase {
		return service.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAPIKey, nil)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured, every request will be rejected")
	}
	return service.NewJWTVerifier(cfg.JWTSecret, cfg.JWTAudience)
}
