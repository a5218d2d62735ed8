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
	"github.com/mattkendal/kudos/internal/streak"
	"github.com/mattkendal/kudos/internal/websocket"
)

type TaskHandler struct {
	tasks    *store.TaskStore
	children *store.ChildStore
	service  *habit.Service
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewTaskHandler(tasks *store.TaskStore, children *store.ChildStore, service *habit.Service, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, children: children, service: service, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type taskRequest struct {
	ChildID              int64  `json:"child_id"`
	Title                string `json:"title"`
	Category             string `json:"category"`
	BasePoints           int    `json:"base_points"`
	Frequency            string `json:"frequency"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
}

func (r taskRequest) validate() string {
	if strings.TrimSpace(r.Title) == "" {
		return "title is required"
	}
	if r.BasePoints < 0 {
		return "base_points must be >= 0"
	}
	if r.Frequency != model.FrequencyDaily && r.Frequency != model.FrequencyWeekly {
		return "frequency must be daily or weekly"
	}
	return ""
}

// taskView decorates a task with its derived stage and multiplier so
// clients never recompute (or store) them.
type taskView struct {
	model.Task
	Stage      streak.Stage `json:"stage"`
	Multiplier float64      `json:"multiplier"`
}

func viewOf(t model.Task) taskView {
	stage := streak.StageFor(t.ConsecutiveDays)
	return taskView{Task: t, Stage: stage, Multiplier: streak.Multiplier(stage)}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Category == "" {
		req.Category = "general"
	}
	if req.Frequency == "" {
		req.Frequency = model.FrequencyDaily
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	child, err := h.children.GetByID(req.ChildID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check child"})
		return
	}
	if child == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "child not found"})
		return
	}

	task, err := h.tasks.Create(req.ChildID, strings.TrimSpace(req.Title), req.Category, req.BasePoints, req.Frequency, req.RequiresConfirmation)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "created", task.ID, nil).ForChild(task.ChildID))

	writeJSON(w, http.StatusCreated, viewOf(*task))
}

// ListByChild returns a child's tasks; ?active=true filters out
// deactivated ones.
func (h *TaskHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	tasks, err := h.tasks.ListByChild(childID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	views := []taskView{}
	for _, t := range tasks {
		if activeOnly && !t.Active {
			continue
		}
		views = append(views, viewOf(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.tasks.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*task))
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.tasks.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Category == "" {
		req.Category = existing.Category
	}
	if req.Frequency == "" {
		req.Frequency = existing.Frequency
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	task, err := h.tasks.Update(id, strings.TrimSpace(req.Title), req.Category, req.BasePoints, req.Frequency, req.RequiresConfirmation)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "updated", id, nil).ForChild(task.ChildID))

	writeJSON(w, http.StatusOK, viewOf(*task))
}

type activeRequest struct {
	Active bool `json:"active"`
}

// SetActive soft-deactivates or reactivates a task. There is no hard
// delete; ledger history keeps referencing the row.
func (h *TaskHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.tasks.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.tasks.SetActive(id, req.Active); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "updated", id, nil).ForChild(existing.ChildID))

	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	Emotion string `json:"emotion"`
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req completeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	result, err := h.service.CompleteTask(id, req.Emotion)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	extra := map[string]any{
		"earned_points": result.EarnedPoints,
		"bonus_points":  result.BonusPoints,
		"new_balance":   result.NewBalance,
	}
	childID := result.Task.ChildID
	h.broadcast(websocket.NewMessage("task", "completed", id, extra).ForChild(childID))
	if result.Graduated {
		h.broadcast(websocket.NewMessage("task", "graduated", id, nil).ForChild(childID))
	}
	for _, b := range result.NewBadges {
		h.broadcast(websocket.NewMessage("badge", "unlocked", b.ID, map[string]any{"code": b.Code}).ForChild(childID))
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TaskHandler) Undo(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	result, err := h.service.UndoComplete(id)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("task", "undone", id, map[string]any{
		"new_balance": result.NewBalance,
	}).ForChild(result.Task.ChildID))

	writeJSON(w, http.StatusOK, result)
}

// Confirm releases a withheld award. The route sits behind the parent-mode
// guard; the confirming member comes from the validated header.
func (h *TaskHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	confirmedBy, err := strconv.ParseInt(r.Header.Get("X-Parent-Id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing parent id"})
		return
	}

	result, err := h.service.ConfirmTask(id, confirmedBy)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	childID := result.Task.ChildID
	h.broadcast(websocket.NewMessage("task", "confirmed", id, map[string]any{
		"earned_points": result.EarnedPoints,
		"bonus_points":  result.BonusPoints,
		"new_balance":   result.NewBalance,
	}).ForChild(childID))
	for _, b := range result.NewBadges {
		h.broadcast(websocket.NewMessage("badge", "unlocked", b.ID, map[string]any{"code": b.Code}).ForChild(childID))
	}

	writeJSON(w, http.StatusOK, result)
}
