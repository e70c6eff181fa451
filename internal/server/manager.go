// Package server wires the orchestrator, persistence and transports into a
// running rental assistant.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/rentagent/internal/agent"
	"github.com/user/rentagent/internal/db"
	"github.com/user/rentagent/internal/model"
)

// Manager owns the live conversations. It implements the hub's ChatService:
// it starts and resumes orchestrator turns, tees their event streams, and
// persists conversation progress and simulated viewing requests as they
// happen.
type Manager struct {
	orch *agent.Orchestrator
	log  *slog.Logger

	convRepo *db.ConversationRepo
	reqRepo  *db.ViewingRequestRepo

	mu            sync.Mutex
	conversations map[string]*agent.Conversation
}

func NewManager(orch *agent.Orchestrator, convRepo *db.ConversationRepo, reqRepo *db.ViewingRequestRepo, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		orch:          orch,
		log:           log,
		convRepo:      convRepo,
		reqRepo:       reqRepo,
		conversations: make(map[string]*agent.Conversation),
	}
}

func (m *Manager) lookup(conversationID string) (*agent.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("unknown conversation %q", conversationID)
	}
	return conv, nil
}

// StartChat routes one user message. An empty conversation id starts a new
// conversation; the returned id addresses follow-ups.
func (m *Manager) StartChat(ctx context.Context, conversationID, message string) (string, <-chan agent.StreamEvent, error) {
	var conv *agent.Conversation
	if conversationID == "" {
		conv = m.orch.NewConversation()
		m.mu.Lock()
		m.conversations[conv.ID] = conv
		m.mu.Unlock()
		if m.convRepo != nil {
			if err := m.convRepo.Create(ctx, &db.Conversation{ID: conv.ID, Phase: string(conv.State.Phase)}); err != nil {
				m.log.Warn("failed to persist conversation", "conversation", conv.ID, "error", err)
			}
		}
	} else {
		var err error
		conv, err = m.lookup(conversationID)
		if err != nil {
			return "", nil, err
		}
	}

	events, err := m.orch.HandleMessage(ctx, conv, message)
	if err != nil {
		return "", nil, err
	}
	return conv.ID, m.tee(ctx, conv, events), nil
}

// Answer resumes a conversation suspended at an ask.
func (m *Manager) Answer(ctx context.Context, conversationID string, ans agent.Answer) (<-chan agent.StreamEvent, error) {
	conv, err := m.lookup(conversationID)
	if err != nil {
		return nil, err
	}
	events, err := m.orch.Resume(ctx, conv, ans)
	if err != nil {
		return nil, err
	}
	return m.tee(ctx, conv, events), nil
}

// Abandon ends a conversation on user request.
func (m *Manager) Abandon(conversationID string) error {
	conv, err := m.lookup(conversationID)
	if err != nil {
		return err
	}
	m.orch.Abandon(conv)
	m.saveProgress(context.Background(), conv)
	return nil
}

// Conversation exposes a live conversation for REST handlers.
func (m *Manager) Conversation(conversationID string) (*agent.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	return conv, ok
}

// tee forwards the turn's events unchanged while recording the side effects
// worth keeping: simulated viewing receipts and, at turn end, the
// conversation's latest phase and search context.
func (m *Manager) tee(ctx context.Context, conv *agent.Conversation, events <-chan agent.StreamEvent) <-chan agent.StreamEvent {
	out := make(chan agent.StreamEvent, 32)
	go func() {
		defer close(out)
		var lastSimulateArgs map[string]any
		for ev := range events {
			if ev.Type == "tool_call" && ev.Name == "simulate_viewing_request" {
				lastSimulateArgs = ev.Args
			}
			if ev.Type == "tool_result" && ev.Name == "simulate_viewing_request" {
				if receipt, ok := ev.Result.(model.ViewingRequestReceipt); ok {
					m.saveViewingRequest(ctx, conv, receipt, lastSimulateArgs)
				}
			}
			out <- ev
		}
		m.saveProgress(ctx, conv)
	}()
	return out
}

func (m *Manager) saveViewingRequest(ctx context.Context, conv *agent.Conversation, receipt model.ViewingRequestReceipt, args map[string]any) {
	if m.reqRepo == nil {
		return
	}
	req := &db.ViewingRequest{
		ConversationID: conv.ID,
		Summary:        receipt.Summary,
	}
	if s, ok := args["listing_url"].(string); ok {
		req.ListingURL = s
	}
	if s, ok := args["timeslot"].(string); ok {
		req.Timeslot = s
	}
	if s, ok := args["listing_id"].(string); ok {
		req.ListingID = s
	}
	if req.ListingID == "" {
		// The id argument is optional; fall back to matching the url
		// against the shortlist so the row still links to the listing.
		for _, l := range conv.State.Shortlist {
			if l.URL == req.ListingURL {
				req.ListingID = l.ID
				break
			}
		}
	}
	if err := m.reqRepo.Create(ctx, req); err != nil {
		m.log.Warn("failed to persist viewing request", "conversation", conv.ID, "error", err)
	}
}

func (m *Manager) saveProgress(ctx context.Context, conv *agent.Conversation) {
	if m.convRepo == nil {
		return
	}
	filtersJSON := ""
	if conv.State.Filters != nil {
		if buf, err := json.Marshal(conv.State.Filters); err == nil {
			filtersJSON = string(buf)
		}
	}
	err := m.convRepo.UpdateProgress(ctx, conv.ID, string(conv.State.Phase), filtersJSON, conv.State.ViewingPreference)
	if err != nil {
		m.log.Warn("failed to persist conversation progress", "conversation", conv.ID, "error", err)
	}
}
