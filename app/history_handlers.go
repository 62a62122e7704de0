package presenced

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"presenced/core"
	"presenced/pkg/router"
)

type HistoryHandler struct {
	history     core.HistoryStore
	coordinator *core.Coordinator
}

func NewHistoryHandler(history core.HistoryStore, coordinator *core.Coordinator) *HistoryHandler {
	return &HistoryHandler{history: history, coordinator: coordinator}
}

// GetRoomMessagesHandler returns a room's persisted messages in sequence
// order. `after` excludes messages at or below the given sequence number so a
// reconnecting client can fetch only what it missed.
func (h *HistoryHandler) GetRoomMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	roomID := chi.URLParam(r, "roomID")

	var afterSeq int64
	if after := r.URL.Query().Get("after"); after != "" {
		parsed, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return router.NewJsonError(http.StatusBadRequest, "after must be an integer")
		}
		afterSeq = parsed
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			return router.NewJsonError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	messages, err := h.history.FetchHistory(r.Context(), roomID, afterSeq, limit)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []core.Message{}
	}

	json.NewEncoder(w).Encode(messages)
	return nil
}

// GetPresenceHandler exposes the live presence record over HTTP for clients
// that are not holding a websocket open.
func (h *HistoryHandler) GetPresenceHandler(w http.ResponseWriter, r *http.Request) error {
	userID := chi.URLParam(r, "userID")
	record := h.coordinator.PresenceOf(userID)

	json.NewEncoder(w).Encode(core.PresenceChangedPayload{
		UserID: userID,
		Status: record.Status,
		At:     record.LastTransition,
	})
	return nil
}
