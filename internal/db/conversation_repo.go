package db

import (
	"context"
	"database/sql"
	"fmt"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *Conversation) error {
	if conv.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		conv.ID = id
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = nowUTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (id, phase, filters_json, viewing_preference, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`, conv.ID, conv.Phase, conv.FiltersJSON, conv.ViewingPreference, formatTimestamp(conv.CreatedAt), formatTimestamp(conv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

func (r *ConversationRepo) Get(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	var createdAtRaw, updatedAtRaw string

	err := r.db.QueryRowContext(ctx, `
SELECT id, phase, filters_json, viewing_preference, created_at, updated_at
FROM conversations
WHERE id = ?
`, id).Scan(&c.ID, &c.Phase, &c.FiltersJSON, &c.ViewingPreference, &createdAtRaw, &updatedAtRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation %q: %w", id, err)
	}

	c.CreatedAt, err = parseTimestamp(createdAtRaw)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt, err = parseTimestamp(updatedAtRaw)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *ConversationRepo) List(ctx context.Context, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, phase, filters_json, viewing_preference, created_at, updated_at
FROM conversations
ORDER BY created_at DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*Conversation{}
	for rows.Next() {
		var c Conversation
		var createdAtRaw, updatedAtRaw string
		if err := rows.Scan(&c.ID, &c.Phase, &c.FiltersJSON, &c.ViewingPreference, &createdAtRaw, &updatedAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.CreatedAt, err = parseTimestamp(createdAtRaw)
		if err != nil {
			return nil, err
		}
		c.UpdatedAt, err = parseTimestamp(updatedAtRaw)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating conversations: %w", err)
	}

	return conversations, nil
}

// UpdateProgress records the phase plus whatever search context is known so a
// transcript can be read back with the state it ended in.
func (r *ConversationRepo) UpdateProgress(ctx context.Context, id, phase, filtersJSON, viewingPreference string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE conversations
SET phase = ?, filters_json = ?, viewing_preference = ?, updated_at = ?
WHERE id = ?
`, phase, filtersJSON, viewingPreference, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update conversation %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read updated rows for conversation %q: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("conversation %q not found", id)
	}
	return nil
}

func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %q: %w", id, err)
	}
	return nil
}
