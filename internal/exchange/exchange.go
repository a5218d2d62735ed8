// Package exchange coordinates reward redemptions: the atomic
// check-and-deduct at request time and the single pending→terminal review
// transition.
package exchange

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mattkendal/kudos/internal/badge"
	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/points"
	"github.com/mattkendal/kudos/internal/store"
)

var (
	// ErrNotFound means the referenced exchange or reward does not exist.
	ErrNotFound = errors.New("exchange: not found")

	// ErrRewardInactive means the reward is no longer redeemable.
	ErrRewardInactive = errors.New("exchange: reward is inactive")

	// ErrInsufficientPoints means the balance cannot cover the cost. Nothing
	// was deducted. Distinct from conflicts so the caller can tell "not enough
	// points" apart from "someone already acted on this".
	ErrInsufficientPoints = errors.New("exchange: insufficient points")

	// ErrAlreadyReviewed means the exchange already reached a terminal status.
	ErrAlreadyReviewed = errors.New("exchange: already reviewed")
)

type Coordinator struct {
	exchanges *store.ExchangeStore
	rewards   *store.RewardStore
	ledger    *points.Ledger
	badges    *badge.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewCoordinator(exchanges *store.ExchangeStore, rewards *store.RewardStore, ledger *points.Ledger, badges *badge.Recorder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		exchanges: exchanges,
		rewards:   rewards,
		ledger:    ledger,
		badges:    badges,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestResult pairs the created exchange with the balance after the
// deduction and any badges the spend sweep turned up.
type RequestResult struct {
	Exchange   *model.Exchange `json:"exchange"`
	NewBalance int             `json:"new_balance"`
	NewBadges  []model.Badge   `json:"new_badges"`
}

// Request redeems a reward: an atomic check-and-deduct against the ledger,
// then the pending exchange row. Concurrent requests against a balance that
// covers only one of them resolve to exactly one success and one
// ErrInsufficientPoints; the deduction is a single guarded update, never a
// read-then-write.
//
// If the deduction succeeds but the exchange row cannot be created, the
// points are NOT refunded automatically; the gap is logged with a
// reconciliation id for manual repair.
func (c *Coordinator) Request(childID, rewardID int64) (*RequestResult, error) {
	reward, err := c.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, ErrNotFound
	}
	if !reward.Active {
		return nil, ErrRewardInactive
	}

	result := &RequestResult{}

	if reward.PointCost > 0 {
		newBalance, _, err := c.ledger.ApplyDelta(childID, -reward.PointCost, points.Meta{
			Type:     model.EntrySpend,
			Reason:   fmt.Sprintf("Redeemed %q", reward.Title),
			Operator: model.OperatorChild,
		})
		if errors.Is(err, points.ErrInsufficientBalance) {
			return nil, ErrInsufficientPoints
		}
		result.NewBalance = newBalance
		if err != nil {
			return result, err
		}
	} else {
		result.NewBalance, err = c.ledger.Balance(childID)
		if err != nil {
			return nil, err
		}
	}

	ex, err := c.exchanges.Create(childID, rewardID, reward.PointCost)
	if err != nil {
		recID := uuid.NewString()
		c.logger.Error("points deducted but exchange row missing",
			"reconciliation_id", recID,
			"child_id", childID,
			"reward_id", rewardID,
			"cost", reward.PointCost,
			"error", err,
		)
		return result, &points.PartialFailureError{
			ReconciliationID: recID,
			ChildID:          childID,
			Delta:            -reward.PointCost,
			NewBalance:       result.NewBalance,
			Err:              err,
		}
	}
	result.Exchange = ex

	newBadges, err := c.badges.Sweep(childID, c.now())
	if err != nil {
		c.logger.Warn("badge sweep failed", "child_id", childID, "error", err)
	}
	result.NewBadges = newBadges

	return result, nil
}

// Review moves a pending exchange to approved or rejected, exactly once.
// Approval does not touch the balance; the points were deducted at request
// time. Rejection issues no automatic refund; the compensating parent
// adjustment is the caller's move.
func (c *Coordinator) Review(exchangeID int64, approve bool, reason string, reviewedBy int64) (*model.Exchange, error) {
	ex, err := c.exchanges.GetByID(exchangeID)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, ErrNotFound
	}
	if ex.Status != model.ExchangePending {
		return nil, ErrAlreadyReviewed
	}

	status := model.ExchangeRejected
	if approve {
		status = model.ExchangeApproved
	}

	err = c.exchanges.Review(exchangeID, status, reason, reviewedBy)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, err
	}

	return c.exchanges.GetByID(exchangeID)
}
