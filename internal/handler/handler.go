package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mattkendal/kudos/internal/exchange"
	"github.com/mattkendal/kudos/internal/habit"
	"github.com/mattkendal/kudos/internal/points"
)

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEngineError maps engine errors onto responses. Conflicts ("someone
// already acted on this") and business rejections ("not enough points") get
// distinct messages so the user is not misled into retrying a call that
// cannot succeed. Partial failures return the reconciliation id and are
// never collapsed into a generic message.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var partial *points.PartialFailureError
	switch {
	case errors.Is(err, habit.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
	case errors.Is(err, exchange.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "exchange or reward not found"})
	case errors.Is(err, habit.ErrTaskInactive):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task is inactive"})
	case errors.Is(err, exchange.ErrRewardInactive):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reward is inactive"})
	case errors.Is(err, habit.ErrNotAwaitingConfirmation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task is not awaiting confirmation"})
	case errors.Is(err, habit.ErrAlreadyCompletedToday):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already completed today"})
	case errors.Is(err, habit.ErrAlreadyConfirmed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "someone already confirmed this completion"})
	case errors.Is(err, habit.ErrNothingToUndo):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no completion today to undo"})
	case errors.Is(err, exchange.ErrAlreadyReviewed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "someone already reviewed this exchange"})
	case errors.Is(err, exchange.ErrInsufficientPoints),
		errors.Is(err, points.ErrInsufficientBalance):
		// Business outcome, not a malformed request; clients distinguish it
		// from validation failures by status code.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "not enough points"})
	case errors.As(err, &partial):
		logger.Error("partial failure surfaced to caller", "reconciliation_id", partial.ReconciliationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":             "operation partially applied, reconciliation required",
			"reconciliation_id": partial.ReconciliationID,
		})
	default:
		logger.Error("engine operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
