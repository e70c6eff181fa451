package hub

import "github.com/user/rentagent/internal/agent"

// ClientMessage is anything a browser sends over the websocket.
//   - chat: free text for a conversation (empty conversation_id starts one)
//   - answer: reply to a pending ask (text or selected)
//   - abandon: end the conversation
//   - subscribe: receive events for one conversation only (empty id resets
//     to all conversations)
type ClientMessage struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Message        string   `json:"message,omitempty"`
	Text           string   `json:"text,omitempty"`
	Selected       []string `json:"selected,omitempty"`
}

// EventMessage carries one orchestrator stream event to the browser.
type EventMessage struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Phase          string         `json:"phase,omitempty"`
	Text           string         `json:"text,omitempty"`
	Name           string         `json:"name,omitempty"`
	Args           map[string]any `json:"args,omitempty"`
	Result         any            `json:"result,omitempty"`
	Ask            *agent.Ask     `json:"ask,omitempty"`
	Error          string         `json:"error,omitempty"`
	Ts             int64          `json:"ts,omitempty"`
}

// ConversationMessage announces the id of a freshly started conversation so
// the client can address follow-ups.
type ConversationMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type hubBroadcast struct {
	data           []byte
	conversationID string
}
