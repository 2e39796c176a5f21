// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/kiwitrails/internal/model"
	"github.com/jeranaias/kiwitrails/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrAmbiguousID is returned when an ID prefix matches several conversations.
var ErrAmbiguousID = &ConversationError{Message: "conversation id is ambiguous"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// previewLength bounds the preview shown in listings.
const previewLength = 80

// Config holds store configuration.
type Config struct {
	// DatabasePath is the SQLite file (default: ~/.kiwitrails/history.db)
	DatabasePath string

	// MaxConversations limits stored conversations (0 = unlimited)
	MaxConversations int
}

// DefaultDatabasePath returns ~/.kiwitrails/history.db.
func DefaultDatabasePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".kiwitrails", "history.db"), nil
}

// =============================================================================
// STORE
// =============================================================================

// Store persists conversations in SQLite. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	config Config
}

// Open opens (creating if needed) the database at cfg.DatabasePath.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	if c.DatabasePath == "" {
		path, err := DefaultDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		c.DatabasePath = path
	}

	if err := os.MkdirAll(filepath.Dir(c.DatabasePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	for _, stmt := range []string{Schema, InitMetadata} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &Store{db: db, config: c}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.config.DatabasePath
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save writes the conversation, replacing any earlier copy with the same ID.
// A reply still streaming is not written.
func (s *Store) Save(ctx context.Context, conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return errors.New("conversation has no id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, greeting, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			greeting = excluded.greeting,
			updated_at = excluded.updated_at`,
		conv.ID, conv.Title, conv.Greeting(),
		conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to replace messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content_json, content_text,
			is_error, is_local, created_at, ttft_ns, duration_ns, fragments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			msg.ID, conv.ID, seq, string(msg.Role), string(content), msg.Content.String(),
			msg.Error, msg.Local, msg.Timestamp.UnixNano(),
			int64(msg.TTFT), int64(msg.TotalDuration), msg.Fragments)
		if err != nil {
			return fmt.Errorf("failed to save message %s: %w", msg.ID, err)
		}
		seq++
	}

	if s.config.MaxConversations > 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM conversations WHERE id NOT IN (
				SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
			)`, s.config.MaxConversations)
		if err != nil {
			return fmt.Errorf("failed to enforce conversation limit: %w", err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *Store) Load(ctx context.Context, id string) (*model.Conversation, error) {
	var title, greeting string
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT title, greeting, created_at, updated_at FROM conversations WHERE id = ?", id).
		Scan(&title, &greeting, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content_json, is_error, is_local, created_at, ttft_ns, duration_ns, fragments
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var (
			msg                model.Message
			role, content      string
			ts, ttft, duration int64
		)
		if err := rows.Scan(&msg.ID, &role, &content, &msg.Error, &msg.Local,
			&ts, &ttft, &duration, &msg.Fragments); err != nil {
			return nil, fmt.Errorf("failed to read message: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
		}
		msg.Role = model.Role(role)
		msg.Timestamp = time.Unix(0, ts)
		msg.TTFT = time.Duration(ttft)
		msg.TotalDuration = time.Duration(duration)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return model.Restore(id, title, greeting, time.Unix(0, created), time.Unix(0, updated), messages), nil
}

// Resolve expands a unique ID prefix to a full conversation ID.
func (s *Store) Resolve(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrConversationNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM conversations WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("failed to resolve id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", ErrConversationNotFound
	case 1:
		return ids[0], nil
	default:
		return "", ErrAmbiguousID
	}
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

const listQuery = `
	SELECT c.id, c.title, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
		COALESCE((SELECT m.content_text FROM messages m
			WHERE m.conversation_id = c.id AND m.role = 'user'
			ORDER BY m.seq LIMIT 1), '')
	FROM conversations c`

// List returns all saved conversations (most recent first).
func (s *Store) List(ctx context.Context) ([]model.ConversationMeta, error) {
	return s.queryMetas(ctx, listQuery+" ORDER BY c.updated_at DESC, c.id")
}

// Search finds conversations whose title or any message contains query,
// ignoring ASCII case.
func (s *Store) Search(ctx context.Context, query string) ([]model.ConversationMeta, error) {
	if strings.TrimSpace(query) == "" {
		return s.List(ctx)
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.queryMetas(ctx, listQuery+`
		WHERE c.title LIKE ? ESCAPE '\'
		   OR EXISTS (SELECT 1 FROM messages m
		              WHERE m.conversation_id = c.id AND m.content_text LIKE ? ESCAPE '\')
		ORDER BY c.updated_at DESC, c.id`, pattern, pattern)
}

func (s *Store) queryMetas(ctx context.Context, query string, args ...any) ([]model.ConversationMeta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	metas := []model.ConversationMeta{}
	for rows.Next() {
		var meta model.ConversationMeta
		var created, updated int64
		var preview string
		if err := rows.Scan(&meta.ID, &meta.Title, &created, &updated, &meta.MessageCount, &preview); err != nil {
			return nil, fmt.Errorf("failed to read conversation: %w", err)
		}
		if meta.Title == "" {
			meta.Title = "New Conversation"
		}
		meta.CreatedAt = time.Unix(0, created)
		meta.UpdatedAt = time.Unix(0, updated)
		meta.Preview = util.TruncateRunes(util.SingleLine(preview), previewLength)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// escapeLike escapes LIKE wildcards so query text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
