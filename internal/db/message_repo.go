package db

import (
	"context"
	"database/sql"
	"fmt"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		msg.ID = id
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = nowUTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, role, content, created_at)
VALUES (?, ?, ?, ?, ?)
`, msg.ID, msg.ConversationID, msg.Role, msg.Content, formatTimestamp(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// RecordMessage satisfies the orchestrator's transcript recorder.
func (r *MessageRepo) RecordMessage(ctx context.Context, conversationID, role, content string) error {
	return r.Create(ctx, &Message{ConversationID: conversationID, Role: role, Content: content})
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = ?
ORDER BY created_at ASC, id ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var m Message
		var createdAtRaw string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt, err = parseTimestamp(createdAtRaw)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating messages: %w", err)
	}

	return messages, nil
}
