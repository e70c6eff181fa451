package db

import (
	"context"
	"database/sql"
	"fmt"
)

type ViewingRequestRepo struct {
	db *sql.DB
}

func NewViewingRequestRepo(db *sql.DB) *ViewingRequestRepo {
	return &ViewingRequestRepo{db: db}
}

func (r *ViewingRequestRepo) Create(ctx context.Context, req *ViewingRequest) error {
	if req.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		req.ID = id
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = nowUTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO viewing_requests (id, conversation_id, listing_id, listing_url, timeslot, summary, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, req.ID, req.ConversationID, req.ListingID, req.ListingURL, req.Timeslot, req.Summary, formatTimestamp(req.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create viewing request: %w", err)
	}

	return nil
}

func (r *ViewingRequestRepo) ListByConversation(ctx context.Context, conversationID string) ([]*ViewingRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, listing_id, listing_url, timeslot, summary, created_at
FROM viewing_requests
WHERE conversation_id = ?
ORDER BY created_at ASC, id ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewing requests: %w", err)
	}
	defer rows.Close()

	requests := []*ViewingRequest{}
	for rows.Next() {
		var v ViewingRequest
		var createdAtRaw string
		if err := rows.Scan(&v.ID, &v.ConversationID, &v.ListingID, &v.ListingURL, &v.Timeslot, &v.Summary, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan viewing request: %w", err)
		}
		v.CreatedAt, err = parseTimestamp(createdAtRaw)
		if err != nil {
			return nil, err
		}
		requests = append(requests, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating viewing requests: %w", err)
	}

	return requests, nil
}
