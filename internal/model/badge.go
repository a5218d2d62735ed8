package model

import "time"

type Badge struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UnlockedBadge struct {
	ID         int64     `json:"id"`
	ChildID    int64     `json:"child_id"`
	BadgeID    int64     `json:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
