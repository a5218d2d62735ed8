package handler

import (
	"log/slog"
	"net/http"

	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/store"
)

type BadgeHandler struct {
	badges *store.BadgeStore
	logger *slog.Logger
}

func NewBadgeHandler(badges *store.BadgeStore, logger *slog.Logger) *BadgeHandler {
	return &BadgeHandler{badges: badges, logger: logger}
}

func (h *BadgeHandler) List(w http.ResponseWriter, r *http.Request) {
	badges, err := h.badges.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list badges"})
		return
	}
	if badges == nil {
		badges = []model.Badge{}
	}
	writeJSON(w, http.StatusOK, badges)
}

// ListUnlocked returns the badges a child has earned, oldest first.
func (h *BadgeHandler) ListUnlocked(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	unlocked, err := h.badges.ListUnlocked(childID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list unlocked badges"})
		return
	}
	if unlocked == nil {
		unlocked = []model.UnlockedBadge{}
	}
	writeJSON(w, http.StatusOK, unlocked)
}
