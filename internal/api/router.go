package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/user/rentagent/internal/agent"
	"github.com/user/rentagent/internal/db"
)

// liveConversations exposes the in-memory side of a conversation, which the
// database does not carry: the pending ask and the live phase.
type liveConversations interface {
	Conversation(conversationID string) (*agent.Conversation, bool)
}

type handler struct {
	convRepo *db.ConversationRepo
	msgRepo  *db.MessageRepo
	reqRepo  *db.ViewingRequestRepo
	live     liveConversations
}

func NewRouter(conn *sql.DB, live liveConversations, token string) http.Handler {
	handler := &handler{
		convRepo: db.NewConversationRepo(conn),
		msgRepo:  db.NewMessageRepo(conn),
		reqRepo:  db.NewViewingRequestRepo(conn),
		live:     live,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handler.getHealth)
	mux.HandleFunc("GET /api/conversations", handler.listConversations)
	mux.HandleFunc("GET /api/conversations/{id}", handler.getConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", handler.listMessages)
	mux.HandleFunc("GET /api/conversations/{id}/viewing-requests", handler.listViewingRequests)
	mux.HandleFunc("DELETE /api/conversations/{id}", handler.deleteConversation)

	return authMiddleware(token)(jsonMiddleware(corsMiddleware(mux)))
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if strings.TrimSpace(authHeader[7:]) == token {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.URL.Query().Get("token") == token {
				next.ServeHTTP(w, r)
				return
			}

			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
