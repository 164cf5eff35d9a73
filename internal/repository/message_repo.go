package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"flyer-agent/internal/domain"
)

// MessageRepository es el log append-only de turnos por hilo.
type MessageRepository interface {
	// Append agrega msgs al final del hilo, en orden y de forma atomica.
	Append(ctx context.Context, thread domain.ThreadID, msgs ...domain.Message) error
	// Load devuelve el hilo completo en orden de llegada (vacio si no existe).
	Load(ctx context.Context, thread domain.ThreadID) ([]domain.Message, error)
	// ListThreadIDs devuelve los hilos del usuario, el mas reciente primero.
	ListThreadIDs(ctx context.Context, userID string) ([]domain.ThreadID, error)
	Ping(ctx context.Context) error
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func validateMessages(msgs []domain.Message) error {
	for _, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, m.Role)
		}
	}
	return nil
}

func splitThread(thread domain.ThreadID) (string, string, error) {
	userID, sessionID, ok := thread.Split()
	if !ok {
		return "", "", fmt.Errorf("%w: malformed thread id %q", domain.ErrValidation, thread)
	}
	return userID, sessionID, nil
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *PgMessageRepository) Append(ctx context.Context, thread domain.ThreadID, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := validateMessages(msgs); err != nil {
		return err
	}
	userID, sessionID, err := splitThread(thread)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin append", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op despues de Commit

	// Serializa appends del mismo hilo; hilos distintos toman locks distintos.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(thread)); err != nil {
		return storageErr("lock thread", err)
	}

	var lastSeq int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE thread_id = $1`,
		string(thread),
	).Scan(&lastSeq)
	if err != nil {
		return storageErr("read last seq", err)
	}

	const insertMessage = `
		INSERT INTO chat_messages (thread_id, seq, id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := r.now()
	for i, msg := range msgs {
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshal content: %w", err)
		}
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err = tx.Exec(ctx, insertMessage,
			string(thread),
			lastSeq+int64(i)+1,
			msg.ID,
			string(msg.Role),
			string(content),
			createdAt,
		)
		if err != nil {
			return storageErr("insert message", err)
		}
	}

	const upsertThread = `
		INSERT INTO chat_threads (user_id, session_id, thread_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, session_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, upsertThread, userID, sessionID, string(thread), now); err != nil {
		return storageErr("upsert thread", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit append", err)
	}
	return nil
}

func (r *PgMessageRepository) Load(ctx context.Context, thread domain.ThreadID) ([]domain.Message, error) {
	const query = `
		SELECT id, role, content, created_at
		FROM chat_messages
		WHERE thread_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, string(thread))
	if err != nil {
		return nil, storageErr("load thread", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			msg     domain.Message
			role    string
			content []byte
		)
		if err := rows.Scan(&msg.ID, &role, &content, &msg.CreatedAt); err != nil {
			return nil, storageErr("scan message", err)
		}
		if err := json.Unmarshal(content, &msg.Content); err != nil {
			return nil, fmt.Errorf("decode content of %s: %w", msg.ID, err)
		}
		msg.Role = domain.Role(role)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate messages", err)
	}

	return messages, nil
}

func (r *PgMessageRepository) ListThreadIDs(ctx context.Context, userID string) ([]domain.ThreadID, error) {
	const query = `
		SELECT thread_id
		FROM chat_threads
		WHERE user_id = $1
		ORDER BY updated_at DESC, session_id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, storageErr("list threads", err)
	}
	defer rows.Close()

	ids := []domain.ThreadID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan thread id", err)
		}
		ids = append(ids, domain.ThreadID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate threads", err)
	}
	return ids, nil
}

func (r *PgMessageRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}
