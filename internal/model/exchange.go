package model

import "time"

// Exchange statuses. An exchange is created pending and transitions exactly
// once to approved or rejected.
const (
	ExchangePending  = "pending"
	ExchangeApproved = "approved"
	ExchangeRejected = "rejected"
)

type Exchange struct {
	ID          int64      `json:"id"`
	ChildID     int64      `json:"child_id"`
	RewardID    int64      `json:"reward_id"`
	Cost        int        `json:"cost"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	ReviewedBy  *int64     `json:"reviewed_by"`
}
