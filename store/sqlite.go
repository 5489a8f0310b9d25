// Package store persists conversation history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"reactagent/agent"
	"reactagent/llmgate"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	tool_calls      TEXT NOT NULL DEFAULT '',
	tool_call_id    TEXT NOT NULL DEFAULT '',
	tool_name       TEXT NOT NULL DEFAULT '',
	reasoning       TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages (conversation_id, created_at);
`

// SQLiteStore implements agent.Store on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or opens the database at path and applies the schema.
// Pass ":memory:" for an ephemeral store.
func Open(path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc's driver serializes writes itself; a single connection
	// avoids SQLITE_BUSY on concurrent saves.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts msg, or updates it in place when the id already exists.
// The update path carries the final-answer substitution through to the
// persisted row.
func (s *SQLiteStore) Save(ctx context.Context, conversationID string, msg agent.Message) error {
	var toolCalls string
	if len(msg.ToolCalls) > 0 {
		encoded, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("encode tool calls: %w", err)
		}
		toolCalls = string(encoded)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, tool_calls, tool_call_id, tool_name, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			content    = excluded.content,
			tool_calls = excluded.tool_calls,
			reasoning  = excluded.reasoning`,
		msg.ID, conversationID, string(msg.Role), msg.Content, toolCalls,
		msg.ToolCallID, msg.ToolName, msg.Reasoning, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	s.log.Debug("message saved",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", msg.ID),
		zap.String("role", string(msg.Role)))
	return nil
}

// Load returns the messages of a conversation in insertion order.
func (s *SQLiteStore) Load(ctx context.Context, conversationID string) ([]agent.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_calls, tool_call_id, tool_name, reasoning, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY rowid`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	defer rows.Close()

	var messages []agent.Message
	for rows.Next() {
		var (
			msg       agent.Message
			role      string
			toolCalls string
			createdAt time.Time
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &toolCalls,
			&msg.ToolCallID, &msg.ToolName, &msg.Reasoning, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = llmgate.Role(role)
		msg.Timestamp = createdAt
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				s.log.Warn("discarding unreadable tool calls",
					zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteConversation removes every message of a conversation.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	return nil
}
