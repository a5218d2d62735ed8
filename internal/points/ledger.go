package points

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/store"
)

// ErrInsufficientBalance is the terminal business outcome for a spend that
// the balance cannot cover. No mutation is applied.
var ErrInsufficientBalance = errors.New("points: insufficient balance")

// PartialFailureError reports the one failure mode that must never be
// hidden: the balance was mutated but the dependent ledger write failed.
// The reconciliation id ties the error to the anomaly log line so an
// operator can repair the ledger by hand.
type PartialFailureError struct {
	ReconciliationID string
	ChildID          int64
	Delta            int
	NewBalance       int
	Err              error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("points: balance changed by %d but ledger entry missing (reconciliation %s): %v",
		e.Delta, e.ReconciliationID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// Meta describes the ledger entry recorded alongside a balance change.
type Meta struct {
	TaskID   *int64
	Type     string // earn, spend, adjust
	Reason   string
	Emotion  string
	Operator string // child, parent, system
}

// Ledger owns the running-balance invariant: after any successful sequence
// of operations, a child's materialized balance equals the sum of their
// ledger deltas. All mutations flow through the store's single-row atomic
// adjust, never a read-modify-write cycle.
type Ledger struct {
	children *store.ChildStore
	entries  *store.LedgerStore
	logger   *slog.Logger
}

func NewLedger(children *store.ChildStore, entries *store.LedgerStore, logger *slog.Logger) *Ledger {
	return &Ledger{children: children, entries: entries, logger: logger}
}

// ApplyDelta atomically applies a signed delta to the child's balance and
// appends the matching ledger entry. Spend deltas that would drive the
// balance negative are rejected as a whole with ErrInsufficientBalance.
//
// The balance mutation and the entry append are two statements. If the
// append fails after the balance already moved, the change is not rolled
// back; the anomaly is logged with a reconciliation id and surfaced as a
// *PartialFailureError carrying the new balance.
func (l *Ledger) ApplyDelta(childID int64, delta int, meta Meta) (newBalance int, entryID int64, err error) {
	guard := meta.Type == model.EntrySpend
	newBalance, err = l.children.AdjustBalance(childID, delta, guard)
	if errors.Is(err, store.ErrInsufficientBalance) {
		return 0, 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, 0, fmt.Errorf("adjust balance: %w", err)
	}

	entryID, err = l.entries.Append(childID, meta.TaskID, meta.Type, delta, meta.Reason, meta.Emotion, meta.Operator)
	if err != nil {
		recID := uuid.NewString()
		l.logger.Error("ledger entry missing after balance mutation",
			"reconciliation_id", recID,
			"child_id", childID,
			"delta", delta,
			"entry_type", meta.Type,
			"new_balance", newBalance,
			"error", err,
		)
		return newBalance, 0, &PartialFailureError{
			ReconciliationID: recID,
			ChildID:          childID,
			Delta:            delta,
			NewBalance:       newBalance,
			Err:              err,
		}
	}

	return newBalance, entryID, nil
}

// ReverseLatestEarn compensates an undone completion: it locates the most
// recently created earn entry for the (child, task) pair, applies the
// negated delta, and deletes the entry. Returns reversed=false when no earn
// entry exists (for example a withheld, never-confirmed award).
//
// The recency lookup and the delete are separate statements; two concurrent
// undos for the same task can select the same entry. That race is accepted
// rather than locked around.
func (l *Ledger) ReverseLatestEarn(childID, taskID int64) (newBalance int, reversed bool, err error) {
	entry, err := l.entries.LatestEarnForTask(childID, taskID)
	if err != nil {
		return 0, false, fmt.Errorf("find earn entry: %w", err)
	}
	if entry == nil {
		return 0, false, nil
	}

	newBalance, err = l.children.AdjustBalance(childID, -entry.Delta, false)
	if err != nil {
		return 0, false, fmt.Errorf("reverse balance: %w", err)
	}

	if err := l.entries.Delete(entry.ID); err != nil {
		recID := uuid.NewString()
		l.logger.Error("earn entry not deleted after balance reversal",
			"reconciliation_id", recID,
			"child_id", childID,
			"task_id", taskID,
			"entry_id", entry.ID,
			"error", err,
		)
		return newBalance, true, &PartialFailureError{
			ReconciliationID: recID,
			ChildID:          childID,
			Delta:            -entry.Delta,
			NewBalance:       newBalance,
			Err:              err,
		}
	}

	return newBalance, true, nil
}

// Balance reads the materialized balance for a child.
func (l *Ledger) Balance(childID int64) (int, error) {
	child, err := l.children.GetByID(childID)
	if err != nil {
		return 0, err
	}
	if child == nil {
		return 0, store.ErrNotFound
	}
	return child.Balance, nil
}
