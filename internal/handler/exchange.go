package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mattkendal/kudos/internal/exchange"
	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/store"
	"github.com/mattkendal/kudos/internal/websocket"
)

type ExchangeHandler struct {
	exchanges   *store.ExchangeStore
	coordinator *exchange.Coordinator
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewExchangeHandler(exchanges *store.ExchangeStore, coordinator *exchange.Coordinator, hub *websocket.Hub, logger *slog.Logger) *ExchangeHandler {
	return &ExchangeHandler{exchanges: exchanges, coordinator: coordinator, hub: hub, logger: logger}
}

func (h *ExchangeHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type requestExchangeRequest struct {
	ChildID  int64 `json:"child_id"`
	RewardID int64 `json:"reward_id"`
}

func (h *ExchangeHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req requestExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ChildID == 0 || req.RewardID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "child_id and reward_id are required"})
		return
	}

	result, err := h.coordinator.Request(req.ChildID, req.RewardID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("exchange", "requested", result.Exchange.ID, map[string]any{
		"new_balance": result.NewBalance,
	}).ForChild(req.ChildID))

	writeJSON(w, http.StatusCreated, result)
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// Review approves or rejects a pending exchange. Parent-mode guarded; the
// reviewing member comes from the validated header.
func (h *ExchangeHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	reviewedBy, err := strconv.ParseInt(r.Header.Get("X-Parent-Id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing parent id"})
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Decision = strings.ToLower(strings.TrimSpace(req.Decision))
	if req.Decision != "approve" && req.Decision != "reject" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decision must be approve or reject"})
		return
	}
	if req.Decision == "reject" && strings.TrimSpace(req.Reason) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required when rejecting"})
		return
	}

	ex, err := h.coordinator.Review(id, req.Decision == "approve", strings.TrimSpace(req.Reason), reviewedBy)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("exchange", "reviewed", id, map[string]any{
		"status": ex.Status,
	}).ForChild(ex.ChildID))

	writeJSON(w, http.StatusOK, ex)
}

func (h *ExchangeHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	exchanges, err := h.exchanges.ListByChild(childID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list exchanges"})
		return
	}
	if exchanges == nil {
		exchanges = []model.Exchange{}
	}
	writeJSON(w, http.StatusOK, exchanges)
}

// ListPending returns exchanges awaiting review, oldest first.
func (h *ExchangeHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	exchanges, err := h.exchanges.ListPending()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list pending exchanges"})
		return
	}
	if exchanges == nil {
		exchanges = []model.Exchange{}
	}
	writeJSON(w, http.StatusOK, exchanges)
}
