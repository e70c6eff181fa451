package api

import (
	"net/http"
	"strconv"

	"github.com/user/rentagent/internal/agent"
	"github.com/user/rentagent/internal/db"
)

type conversationResponse struct {
	*db.Conversation
	Live       bool       `json:"live"`
	LivePhase  string     `json:"live_phase,omitempty"`
	PendingAsk *agent.Ask `json:"pending_ask,omitempty"`
}

func (h *handler) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	conversations, err := h.convRepo.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *handler) getConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := h.convRepo.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	resp := conversationResponse{Conversation: conv}
	if h.live != nil {
		if live, ok := h.live.Conversation(id); ok {
			resp.Live = true
			resp.LivePhase = string(live.State.Phase)
			resp.PendingAsk = live.PendingAsk()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := h.convRepo.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	messages, err := h.msgRepo.ListByConversation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *handler) listViewingRequests(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := h.convRepo.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	requests, err := h.reqRepo.ListByConversation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.convRepo.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
