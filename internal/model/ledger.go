package model

import "time"

// Ledger entry types.
const (
	EntryEarn   = "earn"
	EntrySpend  = "spend"
	EntryAdjust = "adjust"
)

// Ledger entry operators.
const (
	OperatorChild  = "child"
	OperatorParent = "parent"
	OperatorSystem = "system"
)

// LedgerEntry is one immutable balance-affecting event. Entries are never
// edited; the only removal is the compensating delete performed by an undo.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	ChildID   int64     `json:"child_id"`
	TaskID    *int64    `json:"task_id"`
	EntryType string    `json:"entry_type"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Emotion   string    `json:"emotion,omitempty"`
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
}
