// Package sqlitestore is the session.Store implementation backed by a
// local sqlite database, adapted from the teacher's Postgres-backed
// session store down to a single-file, single-process store suitable for
// a terminal coding assistant.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/codi/internal/session"
)

// Store is a sqlite-backed session.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// brings its schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid pool contention deadlocks.

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	todos, err := json.Marshal(sess.Todos)
	if err != nil {
		return err
	}
	autoApprove, err := json.Marshal(sess.AutoApprove)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, created_at, updated_at, model, provider, system_prompt,
			project_root, todos_json, auto_approve_json, total_input_tokens, total_output_tokens, compaction_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.Label, sess.CreatedAt, sess.UpdatedAt, sess.Model, sess.Provider,
		sess.SystemPrompt, sess.ProjectRoot, string(todos), string(autoApprove),
		sess.TotalInputToks, sess.TotalOutputToks, sess.CompactionCount)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return s.appendMessages(ctx, sess.ID, 0, sess.Messages)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT label, created_at, updated_at, model, provider, system_prompt, project_root,
			todos_json, auto_approve_json, total_input_tokens, total_output_tokens, compaction_count
		FROM sessions WHERE id = ?`, id.String())

	sess := &session.Session{ID: id}
	var todosJSON, autoApproveJSON string
	if err := row.Scan(&sess.Label, &sess.CreatedAt, &sess.UpdatedAt, &sess.Model, &sess.Provider,
		&sess.SystemPrompt, &sess.ProjectRoot, &todosJSON, &autoApproveJSON,
		&sess.TotalInputToks, &sess.TotalOutputToks, &sess.CompactionCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s not found", id)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(todosJSON), &sess.Todos); err != nil {
		return nil, fmt.Errorf("unmarshal todos: %w", err)
	}
	if err := json.Unmarshal([]byte(autoApproveJSON), &sess.AutoApprove); err != nil {
		return nil, fmt.Errorf("unmarshal auto_approve: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, blocks_json, created_at FROM messages
		WHERE session_id = ? ORDER BY seq ASC`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m session.Message
		var blocksJSON string
		if err := rows.Scan(&m.ID, &m.Role, &blocksJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(blocksJSON), &m.Blocks); err != nil {
			return nil, fmt.Errorf("unmarshal blocks for message %s: %w", m.ID, err)
		}
		sess.Messages = append(sess.Messages, m)
	}
	return sess, rows.Err()
}

func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	todos, err := json.Marshal(sess.Todos)
	if err != nil {
		return err
	}
	autoApprove, err := json.Marshal(sess.AutoApprove)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET label=?, updated_at=?, model=?, provider=?, system_prompt=?, project_root=?,
			todos_json=?, auto_approve_json=?, total_input_tokens=?, total_output_tokens=?, compaction_count=?
		WHERE id=?`,
		sess.Label, sess.UpdatedAt, sess.Model, sess.Provider, sess.SystemPrompt, sess.ProjectRoot,
		string(todos), string(autoApprove), sess.TotalInputToks, sess.TotalOutputToks,
		sess.CompactionCount, sess.ID.String())
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.Create(ctx, sess)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sess.ID.String()); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return s.appendMessages(ctx, sess.ID, 0, sess.Messages)
}

func (s *Store) appendMessages(ctx context.Context, id uuid.UUID, startSeq int, msgs []session.Message) error {
	for i, m := range msgs {
		blocksJSON, err := json.Marshal(m.Blocks)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO messages (session_id, seq, id, role, blocks_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id.String(), startSeq+i, m.ID, m.Role, string(blocksJSON), m.CreatedAt); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, id uuid.UUID, m session.Message) error {
	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM messages WHERE session_id = ?`, id.String()).Scan(&maxSeq); err != nil {
		return fmt.Errorf("find next seq: %w", err)
	}
	nextSeq := int(maxSeq.Int64) + 1
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if err := s.appendMessages(ctx, id, nextSeq, []session.Message{m}); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, m.CreatedAt, id.String())
	return err
}

func (s *Store) AccumulateTokens(ctx context.Context, id uuid.UUID, input, output int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET total_input_tokens = total_input_tokens + ?, total_output_tokens = total_output_tokens + ?
		WHERE id = ?`, input, output, id.String())
	return err
}

func (s *Store) IncrementCompaction(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET compaction_count = compaction_count + 1 WHERE id = ?`, id.String())
	return err
}

func (s *Store) TruncateHistory(ctx context.Context, id uuid.UUID, keepLast int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE session_id = ? AND seq NOT IN (
			SELECT seq FROM messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		)`, id.String(), id.String(), keepLast)
	return err
}

func (s *Store) SetLabel(ctx context.Context, id uuid.UUID, label string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET label = ? WHERE id = ?`, label, id.String())
	return err
}

func (s *Store) List(ctx context.Context, opts session.ListOpts) (session.ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.created_at, s.updated_at, s.model, s.provider,
			s.total_input_tokens, s.total_output_tokens,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s ORDER BY s.updated_at DESC LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return session.ListResult{}, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result session.ListResult
	for rows.Next() {
		var info session.Info
		var idStr string
		var created, updated time.Time
		if err := rows.Scan(&idStr, &info.Label, &created, &updated, &info.Model, &info.Provider,
			&info.TotalInputToks, &info.TotalOutputToks, &info.MessageCount); err != nil {
			return session.ListResult{}, fmt.Errorf("scan session info: %w", err)
		}
		info.ID, err = uuid.Parse(idStr)
		if err != nil {
			return session.ListResult{}, err
		}
		info.Created, info.Updated = created, updated
		result.Sessions = append(result.Sessions, info)
	}
	if err := rows.Err(); err != nil {
		return session.ListResult{}, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&result.Total); err != nil {
		return session.ListResult{}, err
	}
	return result, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	return err
}
