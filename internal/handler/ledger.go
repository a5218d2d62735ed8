package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mattkendal/kudos/internal/habit"
	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/store"
	"github.com/mattkendal/kudos/internal/websocket"
)

const defaultHistoryLimit = 50

type LedgerHandler struct {
	entries *store.LedgerStore
	service *habit.Service
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewLedgerHandler(entries *store.LedgerStore, service *habit.Service, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{entries: entries, service: service, hub: hub, logger: logger}
}

func (h *LedgerHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// History returns a child's most recent ledger entries, newest first.
// ?limit caps the page size.
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.entries.ListByChild(childID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list history"})
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type adjustRequest struct {
	Delta   int    `json:"delta"`
	Reason  string `json:"reason"`
	Emotion string `json:"emotion"`
}

// Adjust applies a manual parent adjustment: bonus points, a deduction, or
// the compensating refund after a rejected exchange. Parent-mode guarded.
func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be non-zero"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	result, err := h.service.AdjustPoints(childID, req.Delta, req.Reason, req.Emotion)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("balance", "adjusted", result.EntryID, map[string]any{
		"delta":       req.Delta,
		"new_balance": result.NewBalance,
	}).ForChild(childID))
	for _, b := range result.NewBadges {
		h.broadcast(websocket.NewMessage("badge", "unlocked", b.ID, map[string]any{"code": b.Code}).ForChild(childID))
	}

	writeJSON(w, http.StatusOK, result)
}
