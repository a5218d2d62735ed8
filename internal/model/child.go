package model

import "time"

type Child struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	AvatarEmoji string    `json:"avatar_emoji"`
	HasPIN      bool      `json:"has_pin"`
	Balance     int       `json:"balance"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BalanceSummary pairs a child with the earned/spent breakdown derived from
// the ledger, for the family leaderboard view.
type BalanceSummary struct {
	ChildID     int64  `json:"child_id"`
	ChildName   string `json:"child_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}
