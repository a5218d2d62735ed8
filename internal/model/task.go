package model

import "time"

// Task frequency values.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

type Task struct {
	ID                   int64      `json:"id"`
	ChildID              int64      `json:"child_id"`
	Title                string     `json:"title"`
	Category             string     `json:"category"`
	BasePoints           int        `json:"base_points"`
	Frequency            string     `json:"frequency"`
	Active               bool       `json:"active"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	ConsecutiveDays      int        `json:"consecutive_days"`
	LastCompletedDate    *time.Time `json:"last_completed_date"`
	TotalCompletions     int        `json:"total_completions"`
	Confirmed            bool       `json:"confirmed"`
	ConfirmedBy          *int64     `json:"confirmed_by"`
	ConfirmedAt          *time.Time `json:"confirmed_at"`
	PendingPoints        int        `json:"-"`
	PendingBonus         int        `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CompletedOn reports whether the task was completed on the given calendar
// day. The stored last-completed date is the single source of truth; there is
// no separate "completed today" flag to fall out of sync.
func (t Task) CompletedOn(day time.Time) bool {
	if t.LastCompletedDate == nil {
		return false
	}
	y1, m1, d1 := t.LastCompletedDate.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
