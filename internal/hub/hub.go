package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/user/rentagent/internal/agent"
)

const defaultBatchInterval = 100 * time.Millisecond

// ChatService is the conversation backend the hub dispatches to. StartChat
// with an empty conversation id begins a new conversation and returns its id.
type ChatService interface {
	StartChat(ctx context.Context, conversationID, message string) (string, <-chan agent.StreamEvent, error)
	Answer(ctx context.Context, conversationID string, ans agent.Answer) (<-chan agent.StreamEvent, error)
	Abandon(conversationID string) error
}

type Hub struct {
	clients      map[string]*Client
	register     chan *Client
	unregister   chan *Client
	broadcast    chan hubBroadcast
	svc          ChatService
	token        string
	mu           sync.RWMutex
	rateLimiter  *RateLimiter
	batchEnabled bool
	ctxWrap      *ctxWrapper
	running      atomic.Bool
}

type ctxWrapper struct {
	ctx context.Context
}

func New(token string, svc ChatService) *Hub {
	h := &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client, 16),
		unregister:   make(chan *Client, 16),
		broadcast:    make(chan hubBroadcast, 256),
		svc:          svc,
		token:        token,
		batchEnabled: true,
		ctxWrap:      &ctxWrapper{ctx: context.Background()},
	}
	h.rateLimiter = NewRateLimiter(defaultBatchInterval, func(conversationID string, msg EventMessage) {
		h.sendBroadcast(msg)
	})
	return h
}

func (h *Hub) getContext() context.Context {
	if h.ctxWrap != nil {
		return h.ctxWrap.ctx
	}
	return context.Background()
}

func (h *Hub) Run(ctx context.Context) {
	h.ctxWrap = &ctxWrapper{ctx: ctx}
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.rateLimiter.FlushAll()
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			go client.writePump(h.getContext())
			go client.readPump(h.getContext())
			log.Printf("client connected: %s (total: %d)", client.id, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("client disconnected: %s (total: %d)", client.id, h.ClientCount())

		case b := <-h.broadcast:
			h.broadcastToClients(b)
		}
	}
}

func (h *Hub) broadcastToClients(b hubBroadcast) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wantsConversation(b.conversationID) {
			continue
		}
		select {
		case c.send <- b.data:
		default:
			log.Printf("client %s send buffer full, dropping message", c.id)
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept error: %v", err)
		return
	}

	client := newClient(conn, h)

	select {
	case h.register <- client:
	default:
		log.Printf("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

func (h *Hub) handleChat(c *Client, conversationID, message string) {
	ctx := h.getContext()
	id, events, err := h.svc.StartChat(ctx, conversationID, message)
	if err != nil {
		h.SendError(c, err.Error())
		return
	}
	if conversationID == "" {
		c.subscribe(id)
		h.sendTo(c, ConversationMessage{Type: "conversation", ConversationID: id})
	}
	go h.streamEvents(id, events)
}

func (h *Hub) handleAnswer(c *Client, conversationID string, ans agent.Answer) {
	events, err := h.svc.Answer(h.getContext(), conversationID, ans)
	if err != nil {
		h.SendError(c, err.Error())
		return
	}
	go h.streamEvents(conversationID, events)
}

func (h *Hub) handleAbandon(c *Client, conversationID string) {
	if err := h.svc.Abandon(conversationID); err != nil {
		h.SendError(c, err.Error())
		return
	}
	h.sendBroadcast(EventMessage{
		Type:           "done",
		ConversationID: conversationID,
		Phase:          "abandoned",
		Ts:             time.Now().UnixMilli(),
	})
}

// streamEvents relays one turn's events to every subscribed client. Token
// events are batched; everything else goes out immediately, after flushing
// batched text so ordering holds.
func (h *Hub) streamEvents(conversationID string, events <-chan agent.StreamEvent) {
	for ev := range events {
		msg := EventMessage{
			Type:           ev.Type,
			ConversationID: conversationID,
			Phase:          string(ev.Phase),
			Text:           ev.Text,
			Name:           ev.Name,
			Args:           ev.Args,
			Result:         ev.Result,
			Ask:            ev.Ask,
			Error:          ev.Error,
			Ts:             time.Now().UnixMilli(),
		}
		if ev.Type == "token" && h.batchEnabled && h.rateLimiter != nil {
			h.rateLimiter.Add(msg)
			continue
		}
		if h.rateLimiter != nil {
			h.rateLimiter.Flush(conversationID)
		}
		h.sendBroadcast(msg)
	}
	if h.rateLimiter != nil {
		h.rateLimiter.Flush(conversationID)
	}
}

func (h *Hub) sendBroadcast(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling event message: %v", err)
		return
	}
	select {
	case h.broadcast <- hubBroadcast{data: data, conversationID: msg.ConversationID}:
	default:
		log.Printf("broadcast channel full, dropping message")
	}
}

func (h *Hub) sendTo(c *Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) SendError(client *Client, message string) {
	h.sendTo(client, ErrorMessage{Type: "error", Message: message})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SetBatchEnabled(enabled bool) {
	h.batchEnabled = enabled
}

func (h *Hub) isRunning() bool {
	return h.running.Load()
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.isRunning() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		log.Printf("unregister channel full for client %s, forcing close", c.id)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
