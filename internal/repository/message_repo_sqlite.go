package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"flyer-agent/internal/domain"
)

// sqliteTimeLayout tiene ancho fijo para que el orden textual sea cronologico.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SqliteMessageRepository implementa MessageRepository sobre SQLite local.
// El pool se abre con una sola conexion (ver db.OpenSQLite), lo que serializa
// las escrituras.
type SqliteMessageRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSqliteMessageRepository(db *sql.DB) *SqliteMessageRepository {
	return &SqliteMessageRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *SqliteMessageRepository) Append(ctx context.Context, thread domain.ThreadID, msgs ...domain.Message) error {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin append", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op despues de Commit

	var lastSeq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE thread_id = ?`,
		string(thread),
	).Scan(&lastSeq)
	if err != nil {
		return storageErr("read last seq", err)
	}

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
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_messages (thread_id, seq, id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			string(thread),
			lastSeq+int64(i)+1,
			msg.ID,
			string(msg.Role),
			string(content),
			createdAt.UTC().Format(sqliteTimeLayout),
		)
		if err != nil {
			return storageErr("insert message", err)
		}
	}

	stamp := now.Format(sqliteTimeLayout)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_threads (user_id, session_id, thread_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, sessionID, string(thread), stamp, stamp,
	)
	if err != nil {
		return storageErr("upsert thread", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit append", err)
	}
	return nil
}

func (r *SqliteMessageRepository) Load(ctx context.Context, thread domain.ThreadID) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM chat_messages WHERE thread_id = ? ORDER BY seq ASC`,
		string(thread),
	)
	if err != nil {
		return nil, storageErr("load thread", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			msg       domain.Message
			role      string
			content   string
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &role, &content, &createdAt); err != nil {
			return nil, storageErr("scan message", err)
		}
		if err := json.Unmarshal([]byte(content), &msg.Content); err != nil {
			return nil, fmt.Errorf("decode content of %s: %w", msg.ID, err)
		}
		if ts, err := time.Parse(sqliteTimeLayout, createdAt); err == nil {
			msg.CreatedAt = ts
		}
		msg.Role = domain.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate messages", err)
	}
	return messages, nil
}

func (r *SqliteMessageRepository) ListThreadIDs(ctx context.Context, userID string) ([]domain.ThreadID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT thread_id FROM chat_threads WHERE user_id = ? ORDER BY updated_at DESC, session_id ASC`,
		userID,
	)
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

func (r *SqliteMessageRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}
