package streak

import (
	"math"
	"time"
)

// Stage is a task's position in its habit-formation lifecycle. It is always
// derived from the consecutive-day count and never stored independently.
type Stage string

const (
	StageStart     Stage = "start"
	StagePersist   Stage = "persist"
	StageStable    Stage = "stable"
	StageGraduated Stage = "graduated"
)

// StageFor maps a consecutive-day count to its stage.
func StageFor(consecutiveDays int) Stage {
	switch {
	case consecutiveDays <= 7:
		return StageStart
	case consecutiveDays <= 21:
		return StagePersist
	case consecutiveDays <= 65:
		return StageStable
	default:
		return StageGraduated
	}
}

// Multiplier returns the stage-dependent scalar applied to a task's base
// points. Graduated habits remain completable but earn nothing.
func Multiplier(s Stage) float64 {
	switch s {
	case StageStart:
		return 1.5
	case StagePersist:
		return 1.0
	case StageStable:
		return 0.8
	default:
		return 0.0
	}
}

// Bonus returns the flat milestone bonus for reaching the given streak
// length: +5 at exactly 3 days, +20 at 7 and every further multiple of 7.
// The bonus is additive and not subject to the stage multiplier.
func Bonus(consecutiveDays int) int {
	if consecutiveDays == 3 {
		return 5
	}
	if consecutiveDays >= 7 && consecutiveDays%7 == 0 {
		return 20
	}
	return 0
}

// Continue computes the streak length after a completion on today's date.
// A completion on the day after the previous one extends the streak;
// anything else starts over at 1.
func Continue(lastCompleted *time.Time, consecutiveDays int, today time.Time) int {
	if lastCompleted != nil && sameDay(*lastCompleted, today.AddDate(0, 0, -1)) {
		return consecutiveDays + 1
	}
	return 1
}

// Advance holds the result of advancing a streak by one completion.
type Advance struct {
	ConsecutiveDays int
	Stage           Stage
	StageChanged    bool
	Graduated       bool // entered graduated on this completion
	EarnedPoints    int
	BonusPoints     int
}

// Next computes the full effect of completing a task today: the new streak
// length, stage transition flags, and the points award.
func Next(basePoints int, consecutiveDays int, lastCompleted *time.Time, today time.Time) Advance {
	oldStage := StageFor(consecutiveDays)
	days := Continue(lastCompleted, consecutiveDays, today)
	stage := StageFor(days)

	return Advance{
		ConsecutiveDays: days,
		Stage:           stage,
		StageChanged:    stage != oldStage,
		Graduated:       stage == StageGraduated && oldStage != StageGraduated,
		EarnedPoints:    int(math.Round(float64(basePoints) * Multiplier(stage))),
		BonusPoints:     Bonus(days),
	}
}

// Retreat computes the streak fields after undoing today's completion:
// one day less (floor zero), with the last-completed date rolled back to
// yesterday while any streak remains. This is a forward recomputation, not a
// history rewind, so repeated complete/undo cycles across a stage boundary
// are not guaranteed to be symmetric.
func Retreat(consecutiveDays int, today time.Time) (days int, lastCompleted *time.Time) {
	days = consecutiveDays - 1
	if days < 0 {
		days = 0
	}
	if days > 0 {
		y := startOfDay(today).AddDate(0, 0, -1)
		lastCompleted = &y
	}
	return days, lastCompleted
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
