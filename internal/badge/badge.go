// Package badge evaluates achievement predicates over a child's history.
// Evaluation is pure: the same snapshot always yields the same result, and
// nothing here writes to storage. Unlocking is monotonic; predicates are
// skipped once their badge is in the unlocked set, so a badge is never
// revoked even if its condition later becomes false.
package badge

import (
	"time"

	"github.com/mattkendal/kudos/internal/model"
)

// Context is the immutable snapshot a predicate sees: one child's tasks,
// full ledger, already-unlocked codes, and the reference calendar day.
type Context struct {
	Child    model.Child
	Tasks    []model.Task
	Entries  []model.LedgerEntry
	Unlocked map[string]bool
	Today    time.Time
}

// Predicate is one badge rule. Check reports whether the badge's condition
// holds for the snapshot.
type Predicate struct {
	Code  string
	Check func(Context) bool
}

// Predicates is the fixed, ordered rule table. Codes match the seeded badge
// rows; evaluation order is the order badges are reported in.
var Predicates = []Predicate{
	{"first-steps", anyCompletion},
	{"on-a-roll", streakAtLeast(7)},
	{"habit-hero", streakAtLeast(21)},
	{"graduate", streakAtLeast(66)},
	{"century", earnedAtLeast(100)},
	{"high-roller", earnedAtLeast(500)},
	{"all-rounder", fourCategories},
	{"perfect-week", perfectWeek},
	{"momentum", momentum},
}

// Evaluate returns the codes of badges that newly qualify, in rule-table
// order. The caller persists the unlock rows.
func Evaluate(ctx Context) []string {
	var newly []string
	for _, p := range Predicates {
		if ctx.Unlocked[p.Code] {
			continue
		}
		if p.Check(ctx) {
			newly = append(newly, p.Code)
		}
	}
	return newly
}

func anyCompletion(ctx Context) bool {
	for _, t := range ctx.Tasks {
		if t.TotalCompletions > 0 {
			return true
		}
	}
	return false
}

func streakAtLeast(days int) func(Context) bool {
	return func(ctx Context) bool {
		for _, t := range ctx.Tasks {
			if t.ConsecutiveDays >= days {
				return true
			}
		}
		return false
	}
}

// earnedAtLeast sums positive deltas, not the current balance, so spending
// cannot take an earned badge out of reach again.
func earnedAtLeast(points int) func(Context) bool {
	return func(ctx Context) bool {
		total := 0
		for _, e := range ctx.Entries {
			if e.Delta > 0 {
				total += e.Delta
			}
		}
		return total >= points
	}
}

func fourCategories(ctx Context) bool {
	categories := make(map[string]bool)
	for _, t := range ctx.Tasks {
		if t.TotalCompletions > 0 {
			categories[t.Category] = true
		}
	}
	return len(categories) >= 4
}

// perfectWeek checks for a completion-backed earn entry on each of the last
// seven calendar days, today included.
func perfectWeek(ctx Context) bool {
	days := make(map[string]bool)
	for _, e := range ctx.Entries {
		if e.EntryType == model.EntryEarn && e.TaskID != nil {
			days[dayKey(e.CreatedAt)] = true
		}
	}
	for i := range 7 {
		if !days[dayKey(ctx.Today.AddDate(0, 0, -i))] {
			return false
		}
	}
	return true
}

// momentum compares completion counts across the two most recent seven-day
// windows: this week must reach at least 1.5x last week, and last week must
// not be empty.
func momentum(ctx Context) bool {
	var thisWeek, lastWeek int
	for _, e := range ctx.Entries {
		if e.EntryType != model.EntryEarn || e.TaskID == nil {
			continue
		}
		age := daysBetween(e.CreatedAt, ctx.Today)
		switch {
		case age >= 0 && age < 7:
			thisWeek++
		case age >= 7 && age < 14:
			lastWeek++
		}
	}
	return lastWeek > 0 && float64(thisWeek) >= 1.5*float64(lastWeek)
}

// dayKey buckets a timestamp by its UTC calendar day. Ledger stamps are
// stored in UTC; Today may arrive in the host's zone, so both sides go
// through UTC before day math or an evening completion shifts a day.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// daysBetween counts whole UTC calendar days from then to today.
func daysBetween(then, today time.Time) int {
	then, today = then.UTC(), today.UTC()
	a := time.Date(then.Year(), then.Month(), then.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
