package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/ashureev/advisor/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite. The artifact is stored as
// a JSON column; messages live in their own append-only table.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	retry  shared.RetryPolicy
}

// NewSQLite opens (or creates) the database at dbPath.
func NewSQLite(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers; immediate transactions so writers
	// queue on the busy timeout instead of failing on lock upgrade.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger, retry: shared.SQLiteRetry}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		artifact_json TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL REFERENCES sessions(session_id),
		seq INTEGER NOT NULL,
		message_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetOrCreate implements Repository.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	sess := domain.NewSession(id)
	stamp(sess, time.Now())
	artifact, err := json.Marshal(sess.Artifact)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}

	err = shared.Retry(ctx, s.retry, "create session", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (session_id, artifact_json, version, created_at, updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(session_id) DO NOTHING`,
			id, string(artifact), sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli())
		return err
	})
	if err != nil {
		return nil, err
	}

	loaded, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, fmt.Errorf("session %s vanished after create: %w", id, ErrNotFound)
	}
	return loaded, nil
}

// Get implements Repository.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT artifact_json, version, created_at, updated_at
		FROM sessions WHERE session_id = ?`, id)

	var (
		artifactJSON         string
		createdAt, updatedAt int64
		sess                 = domain.Session{ID: id}
	)
	err := row.Scan(&artifactJSON, &sess.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Artifact = domain.NewArtifact()
	if err := json.Unmarshal([]byte(artifactJSON), sess.Artifact); err != nil {
		return nil, fmt.Errorf("decode artifact for %s: %w", id, err)
	}
	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.UpdatedAt = time.UnixMilli(updatedAt)

	if sess.Messages, err = s.messages(ctx, id); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SQLiteStore) messages(ctx context.Context, id string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var out []domain.Message
	for rows.Next() {
		var (
			m         domain.Message
			role      string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = domain.Role(role)
		m.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// Save implements Repository. The version check, the artifact update and
// the message append happen in one transaction; busy errors are retried.
func (s *SQLiteStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess.Artifact == nil {
		sess.Artifact = domain.NewArtifact()
	}
	artifact, err := json.Marshal(sess.Artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	now := time.Now()
	err = shared.Retry(ctx, s.retry, "save session", func(ctx context.Context) error {
		return s.saveOnce(ctx, sess, string(artifact), now)
	})
	if err != nil {
		return err
	}
	stamp(sess, now)
	sess.Version++
	return nil
}

func (s *SQLiteStore) saveOnce(ctx context.Context, sess *domain.Session, artifact string, now time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("failed to roll back session save", "session_id", sess.ID, "error", rbErr)
			}
		}
	}()

	if sess.Version == 0 {
		created := sess.CreatedAt
		if created.IsZero() {
			created = now
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (session_id, artifact_json, version, created_at, updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(session_id) DO NOTHING`,
			sess.ID, artifact, created.UnixMilli(), now.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrVersionConflict
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE sessions SET artifact_json = ?, version = version + 1, updated_at = ?
			WHERE session_id = ? AND version = ?`,
			artifact, now.UnixMilli(), sess.ID, sess.Version)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.missOrConflict(ctx, tx, sess.ID)
		}
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sess.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	if len(sess.Messages) < stored {
		return ErrMessageLogShrunk
	}
	for i := stored; i < len(sess.Messages); i++ {
		m := sess.Messages[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, seq, message_id, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, i, m.ID, string(m.Role), m.Content, m.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) missOrConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return ErrVersionConflict
}

// Delete implements Repository.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return shared.Retry(ctx, s.retry, "delete session", func(ctx context.Context) (err error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return tx.Commit()
	})
}

// CleanupExpired removes sessions idle for longer than ttl and returns how
// many were deleted.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).UnixMilli()
	var deleted int64
	err := shared.Retry(ctx, s.retry, "cleanup sessions", func(ctx context.Context) (err error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		if _, err = tx.ExecContext(ctx, `
			DELETE FROM messages WHERE session_id IN (
				SELECT session_id FROM sessions WHERE updated_at < ?)`, threshold); err != nil {
			return fmt.Errorf("cleanup messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("cleanup sessions: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return tx.Commit()
	})
	return deleted, err
}
