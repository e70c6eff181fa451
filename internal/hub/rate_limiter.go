package hub

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter coalesces rapid token events per conversation so the browser
// receives a few larger text chunks instead of one frame per fragment.
type RateLimiter struct {
	mu       sync.Mutex
	pending  map[string]*pendingText
	interval time.Duration
	onFlush  func(conversationID string, msg EventMessage)
}

type pendingText struct {
	texts []string
	phase string
	ts    int64
	timer *time.Timer
}

func NewRateLimiter(interval time.Duration, onFlush func(string, EventMessage)) *RateLimiter {
	return &RateLimiter{
		pending:  make(map[string]*pendingText),
		interval: interval,
		onFlush:  onFlush,
	}
}

func (r *RateLimiter) Add(msg EventMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversationID := msg.ConversationID
	p, exists := r.pending[conversationID]
	if !exists {
		p = &pendingText{}
		r.pending[conversationID] = p
	}

	p.texts = append(p.texts, msg.Text)
	p.phase = msg.Phase
	if msg.Ts > p.ts {
		p.ts = msg.Ts
	}

	if p.timer == nil {
		p.timer = time.AfterFunc(r.interval, func() {
			r.Flush(conversationID)
		})
	}
}

func (r *RateLimiter) Flush(conversationID string) {
	r.mu.Lock()
	p, exists := r.pending[conversationID]
	if !exists {
		r.mu.Unlock()
		return
	}
	delete(r.pending, conversationID)
	r.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	if r.onFlush != nil && len(p.texts) > 0 {
		r.onFlush(conversationID, EventMessage{
			Type:           "token",
			ConversationID: conversationID,
			Phase:          p.phase,
			Text:           strings.Join(p.texts, "\n"),
			Ts:             p.ts,
		})
	}
}

func (r *RateLimiter) FlushAll() {
	r.mu.Lock()
	conversations := make([]string, 0, len(r.pending))
	for id := range r.pending {
		conversations = append(conversations, id)
	}
	r.mu.Unlock()

	for _, id := range conversations {
		r.Flush(id)
	}
}
