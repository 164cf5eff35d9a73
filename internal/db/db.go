package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"flyer-agent/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Configuración razonable para ambientes iniciales.
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// pgSchema crea las tablas de hilos si no existen. chat_threads es el indice
// secundario user_id -> session_id usado para listar sesiones.
const pgSchema = `
CREATE TABLE IF NOT EXISTS chat_threads (
	user_id    TEXT        NOT NULL,
	session_id TEXT        NOT NULL,
	thread_id  TEXT        NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, session_id)
);

CREATE INDEX IF NOT EXISTS chat_threads_user_updated_idx
	ON chat_threads (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	thread_id  TEXT        NOT NULL,
	seq        BIGINT      NOT NULL,
	id         TEXT        NOT NULL,
	role       TEXT        NOT NULL,
	content    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (thread_id, seq)
);
`

// EnsureSchema aplica el esquema minimo del store de mensajes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
