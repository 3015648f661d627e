package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cymbalair/assistant/internal/domain"
)

// SQLiteStore implements Store using SQLite. History, pending action, and
// user identity are stored as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed session store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			history TEXT NOT NULL,
			pending_action TEXT,
			user_identity TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create stores a new session.
func (s *SQLiteStore) Create(ctx context.Context, state *domain.ConversationState) error {
	history, pending, user, err := marshalState(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, history, pending_action, user_identity, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		state.SessionID, history, pending, user, state.CreatedAt, state.UpdatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrSessionExists
	}
	return err
}

// Get retrieves a session by ID, or (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	var state domain.ConversationState
	var history string
	var pending, user sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, history, pending_action, user_identity, created_at, updated_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&state.SessionID, &history, &pending, &user, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(history), &state.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	if pending.Valid {
		var p domain.PendingAction
		if err := json.Unmarshal([]byte(pending.String), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending action: %w", err)
		}
		state.Pending = &p
	}
	if user.Valid {
		var u domain.UserIdentity
		if err := json.Unmarshal([]byte(user.String), &u); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user identity: %w", err)
		}
		state.User = &u
	}
	return &state, nil
}

// Update replaces the stored state for an existing session.
func (s *SQLiteStore) Update(ctx context.Context, state *domain.ConversationState) error {
	history, pending, user, err := marshalState(state)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET history = ?, pending_action = ?, user_identity = ?, updated_at = ? WHERE session_id = ?`,
		history, pending, user, state.UpdatedAt, state.SessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

func marshalState(state *domain.ConversationState) (history string, pending, user sql.NullString, err error) {
	h, err := json.Marshal(state.History)
	if err != nil {
		return "", sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to marshal history: %w", err)
	}
	history = string(h)
	if state.Pending != nil {
		p, err := json.Marshal(state.Pending)
		if err != nil {
			return "", sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to marshal pending action: %w", err)
		}
		pending = sql.NullString{String: string(p), Valid: true}
	}
	if state.User != nil {
		u, err := json.Marshal(state.User)
		if err != nil {
			return "", sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to marshal user identity: %w", err)
		}
		user = sql.NullString{String: string(u), Valid: true}
	}
	return history, pending, user, nil
}

var _ Store = (*SQLiteStore)(nil)
