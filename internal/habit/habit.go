// Package habit orchestrates the completion lifecycle: streak advancement,
// point awards through the ledger, confirmation gating, and badge sweeps.
package habit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattkendal/kudos/internal/badge"
	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/points"
	"github.com/mattkendal/kudos/internal/store"
	"github.com/mattkendal/kudos/internal/streak"
)

var (
	// ErrNotFound means the referenced task does not exist.
	ErrNotFound = errors.New("habit: task not found")

	// ErrTaskInactive rejects completions against a deactivated task.
	ErrTaskInactive = errors.New("habit: task is inactive")

	// ErrAlreadyCompletedToday means the same-day idempotency guard fired.
	// The caller should refresh state, not retry.
	ErrAlreadyCompletedToday = errors.New("habit: already completed today")

	// ErrAlreadyConfirmed means a concurrent confirmation won the compare-
	// and-swap; the award was applied exactly once, by the winner.
	ErrAlreadyConfirmed = errors.New("habit: already confirmed")

	// ErrNotAwaitingConfirmation means confirm was called on a task with
	// nothing to confirm.
	ErrNotAwaitingConfirmation = errors.New("habit: not awaiting confirmation")

	// ErrNothingToUndo means undo was called on a task not completed today.
	ErrNothingToUndo = errors.New("habit: nothing to undo")
)

type Service struct {
	tasks    *store.TaskStore
	children *store.ChildStore
	ledger   *points.Ledger
	badges   *badge.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(tasks *store.TaskStore, children *store.ChildStore, ledger *points.Ledger, badges *badge.Recorder, logger *slog.Logger) *Service {
	return &Service{
		tasks:    tasks,
		children: children,
		ledger:   ledger,
		badges:   badges,
		logger:   logger,
		now:      time.Now,
	}
}

// CompleteResult carries everything a caller needs to render feedback for a
// completion without re-querying.
type CompleteResult struct {
	Task                 *model.Task   `json:"task"`
	EarnedPoints         int           `json:"earned_points"`
	BonusPoints          int           `json:"bonus_points"`
	NewBalance           int           `json:"new_balance"`
	Stage                streak.Stage  `json:"stage"`
	StageChanged         bool          `json:"stage_changed"`
	Graduated            bool          `json:"graduated"`
	AwaitingConfirmation bool          `json:"awaiting_confirmation"`
	NewBadges            []model.Badge `json:"new_badges"`
}

// CompleteTask records one completion for today: it advances the streak
// under the store's same-day guard, awards multiplier-adjusted points plus
// any milestone bonus through the ledger, and sweeps badges. For tasks that
// require parental confirmation the award is withheld on the task row and
// the result reports awaiting_confirmation with zero points.
func (s *Service) CompleteTask(taskID int64, emotion string) (*CompleteResult, error) {
	task, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	if !task.Active {
		return nil, ErrTaskInactive
	}

	today := s.now()
	if task.CompletedOn(today) {
		return nil, ErrAlreadyCompletedToday
	}

	adv := streak.Next(task.BasePoints, task.ConsecutiveDays, task.LastCompletedDate, today)

	if task.RequiresConfirmation {
		err := s.tasks.ApplyCompletion(taskID, today, adv.ConsecutiveDays, adv.EarnedPoints, adv.BonusPoints)
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyCompletedToday
		}
		if err != nil {
			return nil, err
		}

		updated, err := s.tasks.GetByID(taskID)
		if err != nil {
			return nil, err
		}
		balance, err := s.ledger.Balance(task.ChildID)
		if err != nil {
			return nil, err
		}

		return &CompleteResult{
			Task:                 updated,
			NewBalance:           balance,
			Stage:                adv.Stage,
			StageChanged:         adv.StageChanged,
			Graduated:            adv.Graduated,
			AwaitingConfirmation: true,
		}, nil
	}

	err = s.tasks.ApplyCompletion(taskID, today, adv.ConsecutiveDays, 0, 0)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyCompletedToday
	}
	if err != nil {
		return nil, err
	}

	result := &CompleteResult{
		EarnedPoints: adv.EarnedPoints,
		BonusPoints:  adv.BonusPoints,
		Stage:        adv.Stage,
		StageChanged: adv.StageChanged,
		Graduated:    adv.Graduated,
	}

	newBalance, _, err := s.ledger.ApplyDelta(task.ChildID, adv.EarnedPoints+adv.BonusPoints, points.Meta{
		TaskID:   &taskID,
		Type:     model.EntryEarn,
		Reason:   fmt.Sprintf("Completed %q", task.Title),
		Emotion:  emotion,
		Operator: model.OperatorChild,
	})
	result.NewBalance = newBalance
	if err != nil {
		// A partial failure means the streak advanced and the balance moved
		// but the ledger entry is missing. The anomaly is already logged
		// with a reconciliation id; surface it rather than pretend the
		// completion failed cleanly.
		return result, err
	}

	result.Task, err = s.tasks.GetByID(taskID)
	if err != nil {
		return result, err
	}
	result.NewBadges = s.sweepBadges(task.ChildID, today)
	return result, nil
}

// ConfirmResult reports the outcome of a parental confirmation.
type ConfirmResult struct {
	Task         *model.Task   `json:"task"`
	EarnedPoints int           `json:"earned_points"`
	BonusPoints  int           `json:"bonus_points"`
	NewBalance   int           `json:"new_balance"`
	NewBadges    []model.Badge `json:"new_badges"`
}

// ConfirmTask releases the withheld award for a confirmation-gated
// completion. The confirmed flag flips via compare-and-swap, so of two
// concurrent confirmations exactly one applies the award; the other fails
// with ErrAlreadyConfirmed.
func (s *Service) ConfirmTask(taskID, confirmedBy int64) (*ConfirmResult, error) {
	task, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	if !task.RequiresConfirmation || task.LastCompletedDate == nil {
		return nil, ErrNotAwaitingConfirmation
	}
	if task.Confirmed {
		return nil, ErrAlreadyConfirmed
	}

	// Read the withheld award before the swap; the winner's values are the
	// ones applied.
	earned, bonus := task.PendingPoints, task.PendingBonus

	err = s.tasks.ConfirmCompletion(taskID, confirmedBy)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyConfirmed
	}
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{EarnedPoints: earned, BonusPoints: bonus}

	newBalance, _, err := s.ledger.ApplyDelta(task.ChildID, earned+bonus, points.Meta{
		TaskID:   &taskID,
		Type:     model.EntryEarn,
		Reason:   fmt.Sprintf("Confirmed %q", task.Title),
		Operator: model.OperatorParent,
	})
	result.NewBalance = newBalance
	if err != nil {
		return result, err
	}

	result.Task, err = s.tasks.GetByID(taskID)
	if err != nil {
		return result, err
	}
	result.NewBadges = s.sweepBadges(task.ChildID, s.now())
	return result, nil
}

// UndoResult reports the streak state after reversing today's completion.
type UndoResult struct {
	Task       *model.Task `json:"task"`
	NewBalance int         `json:"new_balance"`
	Reversed   bool        `json:"points_reversed"`
}

// UndoComplete reverses today's completion: the streak retreats one day,
// the completion count decrements, and the most recent earn entry for the
// task is negated and removed. A withheld, never-confirmed award is simply
// cleared with no ledger traffic. Undo recomputes forward from the new
// streak length; it does not rewind history across stage boundaries.
func (s *Service) UndoComplete(taskID int64) (*UndoResult, error) {
	task, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}

	today := s.now()
	if !task.CompletedOn(today) {
		return nil, ErrNothingToUndo
	}

	// An unconfirmed gated completion never reached the ledger.
	withheld := task.RequiresConfirmation && !task.Confirmed

	days, lastCompleted := streak.Retreat(task.ConsecutiveDays, today)
	err = s.tasks.ApplyUndo(taskID, today, days, lastCompleted)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrNothingToUndo
	}
	if err != nil {
		return nil, err
	}

	result := &UndoResult{}
	if withheld {
		result.NewBalance, err = s.ledger.Balance(task.ChildID)
		if err != nil {
			return result, err
		}
	} else {
		newBalance, reversed, err := s.ledger.ReverseLatestEarn(task.ChildID, taskID)
		result.NewBalance = newBalance
		result.Reversed = reversed
		if err != nil {
			return result, err
		}
		if !reversed {
			result.NewBalance, err = s.ledger.Balance(task.ChildID)
			if err != nil {
				return result, err
			}
		}
	}

	result.Task, err = s.tasks.GetByID(taskID)
	if err != nil {
		return result, err
	}
	return result, nil
}

// AdjustResult reports a manual parent adjustment.
type AdjustResult struct {
	NewBalance int           `json:"new_balance"`
	EntryID    int64         `json:"entry_id"`
	NewBadges  []model.Badge `json:"new_badges"`
}

// AdjustPoints applies a manual signed adjustment: bonus points, a
// deduction, or the compensating refund for a rejected exchange. Adjust
// deltas may drive the balance negative; only spends are guarded.
func (s *Service) AdjustPoints(childID int64, delta int, reason, emotion string) (*AdjustResult, error) {
	newBalance, entryID, err := s.ledger.ApplyDelta(childID, delta, points.Meta{
		Type:     model.EntryAdjust,
		Reason:   reason,
		Emotion:  emotion,
		Operator: model.OperatorParent,
	})
	if err != nil {
		return &AdjustResult{NewBalance: newBalance}, err
	}

	return &AdjustResult{
		NewBalance: newBalance,
		EntryID:    entryID,
		NewBadges:  s.sweepBadges(childID, s.now()),
	}, nil
}

// sweepBadges runs the badge rule table after a ledger-affecting event. An
// error here never fails the operation that triggered it, since the award
// is already applied, but it is logged because missed badges stay missed
// until the next mutation.
func (s *Service) sweepBadges(childID int64, today time.Time) []model.Badge {
	newBadges, err := s.badges.Sweep(childID, today)
	if err != nil {
		s.logger.Warn("badge sweep failed", "child_id", childID, "error", err)
	}
	return newBadges
}
