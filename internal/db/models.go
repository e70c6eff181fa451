package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type Conversation struct {
	ID                string    `json:"id"`
	Phase             string    `json:"phase"`
	FiltersJSON       string    `json:"filters_json,omitempty"`
	ViewingPreference string    `json:"viewing_preference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type ViewingRequest struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ListingID      string    `json:"listing_id,omitempty"`
	ListingURL     string    `json:"listing_url"`
	Timeslot       string    `json:"timeslot"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = nowUTC()
	}
	return ts.UTC().Format(time.RFC3339)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}
