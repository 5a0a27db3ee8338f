// Package storage persists chats and their messages in a local SQLite
// database under the data directory.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"aichat/model"
)

// Chat is one stored conversation.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds chats and messages in SQLite. Messages are append-only; chats
// only ever change their title and update time.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chat (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS message (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chat(id) ON DELETE CASCADE,
	created_at TIMESTAMP NOT NULL,
	display_content TEXT NOT NULL,
	system_content TEXT NOT NULL,
	content_type TEXT NOT NULL,
	role_name TEXT NOT NULL,
	role_kind TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_message_chat ON message(chat_id, created_at);
`

// Open creates (or opens) the chat database inside dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "chats.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	// 0600 - conversation history is sensitive
	if err := os.Chmod(dbPath, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to restrict database permissions: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateChat inserts a new empty chat and returns it.
func (s *Store) CreateChat(title string) (*Chat, error) {
	now := time.Now()
	chat := &Chat{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		"INSERT INTO chat (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		chat.ID, chat.Title, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return chat, nil
}

// GetChat loads one chat by ID.
func (s *Store) GetChat(id string) (*Chat, error) {
	var chat Chat
	err := s.db.QueryRow(
		"SELECT id, title, created_at, updated_at FROM chat WHERE id = ?", id,
	).Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat %s: %w", id, err)
	}
	return &chat, nil
}

// ListChats returns all chats, most recently updated first.
func (s *Store) ListChats() ([]Chat, error) {
	rows, err := s.db.Query("SELECT id, title, created_at, updated_at FROM chat ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// RenameChat updates a chat's title.
func (s *Store) RenameChat(id, title string) error {
	result, err := s.db.Exec(
		"UPDATE chat SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename chat: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("chat %s not found", id)
	}
	return nil
}

// DeleteChat removes a chat and all its messages.
func (s *Store) DeleteChat(id string) error {
	result, err := s.db.Exec("DELETE FROM chat WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("chat %s not found", id)
	}
	return nil
}

// InsertMessage appends a message to its chat and bumps the chat's update
// time.
func (s *Store) InsertMessage(msg model.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO message (id, chat_id, created_at, display_content, system_content, content_type, role_name, role_kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.CreatedAt, msg.DisplayContent, msg.SystemContent,
		string(msg.ContentType), msg.Role.Name, string(msg.Role.Kind),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if _, err := tx.Exec("UPDATE chat SET updated_at = ? WHERE id = ?", time.Now(), msg.ChatID); err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}

	return tx.Commit()
}

// MessagesByChatID returns a chat's messages in creation order.
func (s *Store) MessagesByChatID(chatID string) ([]model.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, created_at, display_content, system_content, content_type, role_name, role_kind
		 FROM message WHERE chat_id = ? ORDER BY created_at, id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var contentType, roleKind string
		if err := rows.Scan(
			&msg.ID, &msg.ChatID, &msg.CreatedAt, &msg.DisplayContent, &msg.SystemContent,
			&contentType, &msg.Role.Name, &roleKind,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ContentType = model.ContentType(contentType)
		msg.Role.Kind = model.RoleKind(roleKind)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
