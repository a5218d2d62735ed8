package badge

import (
	"testing"
	"time"

	"github.com/mattkendal/kudos/internal/model"
)

var testDay = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func entry(taskID int64, delta int, daysAgo int) model.LedgerEntry {
	id := taskID
	return model.LedgerEntry{
		ChildID:   1,
		TaskID:    &id,
		EntryType: model.EntryEarn,
		Delta:     delta,
		CreatedAt: testDay.AddDate(0, 0, -daysAgo),
	}
}

func TestEvaluateEmptyHistory(t *testing.T) {
	got := Evaluate(Context{Unlocked: map[string]bool{}, Today: testDay})
	if len(got) != 0 {
		t.Errorf("expected no badges for empty history, got %v", got)
	}
}

func TestFirstSteps(t *testing.T) {
	ctx := Context{
		Tasks:    []model.Task{{ID: 1, TotalCompletions: 1}},
		Unlocked: map[string]bool{},
		Today:    testDay,
	}
	got := Evaluate(ctx)
	if len(got) != 1 || got[0] != "first-steps" {
		t.Errorf("got %v, want [first-steps]", got)
	}
}

func TestStreakBadges(t *testing.T) {
	ctx := Context{
		Tasks:    []model.Task{{ID: 1, TotalCompletions: 21, ConsecutiveDays: 21}},
		Unlocked: map[string]bool{"first-steps": true},
		Today:    testDay,
	}
	got := Evaluate(ctx)
	want := []string{"on-a-roll", "habit-hero"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCenturyCountsEarnedNotBalance(t *testing.T) {
	// 120 earned, 110 spent. The cumulative-earned badge still unlocks.
	entries := []model.LedgerEntry{
		entry(1, 60, 2),
		entry(1, 60, 1),
		{ChildID: 1, EntryType: model.EntrySpend, Delta: -110, CreatedAt: testDay},
	}
	ctx := Context{Entries: entries, Unlocked: map[string]bool{}, Today: testDay}

	found := false
	for _, code := range Evaluate(ctx) {
		if code == "century" {
			found = true
		}
	}
	if !found {
		t.Error("century should unlock on cumulative earned despite spends")
	}
}

func TestAlreadyUnlockedSkipped(t *testing.T) {
	ctx := Context{
		Tasks:    []model.Task{{ID: 1, TotalCompletions: 5, ConsecutiveDays: 7}},
		Unlocked: map[string]bool{"first-steps": true, "on-a-roll": true},
		Today:    testDay,
	}
	got := Evaluate(ctx)
	if len(got) != 0 {
		t.Errorf("unlocked badges must not be reported again, got %v", got)
	}
}

func TestMonotonicAfterStreakReset(t *testing.T) {
	// Streak collapsed to zero; previously unlocked streak badges stay out
	// of the newly-unlocked report and are never revoked.
	ctx := Context{
		Tasks:    []model.Task{{ID: 1, TotalCompletions: 30, ConsecutiveDays: 0}},
		Unlocked: map[string]bool{"first-steps": true, "on-a-roll": true, "habit-hero": true},
		Today:    testDay,
	}
	got := Evaluate(ctx)
	if len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestAllRounder(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Category: "chores", TotalCompletions: 1},
		{ID: 2, Category: "school", TotalCompletions: 1},
		{ID: 3, Category: "health", TotalCompletions: 1},
		{ID: 4, Category: "reading", TotalCompletions: 0},
	}
	ctx := Context{Tasks: tasks, Unlocked: map[string]bool{"first-steps": true}, Today: testDay}
	for _, code := range Evaluate(ctx) {
		if code == "all-rounder" {
			t.Fatal("all-rounder needs four completed categories, only three have completions")
		}
	}

	tasks[3].TotalCompletions = 1
	ctx.Tasks = tasks
	found := false
	for _, code := range Evaluate(ctx) {
		if code == "all-rounder" {
			found = true
		}
	}
	if !found {
		t.Error("all-rounder should unlock with four completed categories")
	}
}

func TestPerfectWeek(t *testing.T) {
	var entries []model.LedgerEntry
	for i := range 7 {
		entries = append(entries, entry(1, 10, i))
	}
	ctx := Context{Entries: entries, Unlocked: map[string]bool{}, Today: testDay}
	found := false
	for _, code := range Evaluate(ctx) {
		if code == "perfect-week" {
			found = true
		}
	}
	if !found {
		t.Error("perfect-week should unlock with a completion on each of 7 days")
	}

	// A gap two days ago breaks the run.
	ctx.Entries = append(entries[:2], entries[3:]...)
	for _, code := range Evaluate(ctx) {
		if code == "perfect-week" {
			t.Error("perfect-week must not unlock with a missing day")
		}
	}
}

func TestMomentum(t *testing.T) {
	// Last week: 2 completions. This week: 3. 3 >= 1.5*2.
	entries := []model.LedgerEntry{
		entry(1, 10, 8), entry(1, 10, 9),
		entry(1, 10, 0), entry(1, 10, 1), entry(1, 10, 2),
	}
	ctx := Context{Entries: entries, Unlocked: map[string]bool{}, Today: testDay}
	found := false
	for _, code := range Evaluate(ctx) {
		if code == "momentum" {
			found = true
		}
	}
	if !found {
		t.Error("momentum should unlock at 3 vs 2")
	}

	// An empty previous week never qualifies.
	ctx.Entries = entries[2:]
	for _, code := range Evaluate(ctx) {
		if code == "momentum" {
			t.Error("momentum requires a non-empty previous week")
		}
	}
}

func TestDayWindowsUseUTC(t *testing.T) {
	// Ledger stamps are UTC. An evening check on a UTC-8 host lands in the
	// next UTC day; both day predicates must bucket on one calendar or the
	// window shifts and a real streak looks broken.
	local := time.FixedZone("UTC-8", -8*3600)
	today := time.Date(2026, 5, 20, 20, 0, 0, 0, local) // 2026-05-21 04:00 UTC

	taskID := int64(1)
	stamped := func(daysAgo int) model.LedgerEntry {
		return model.LedgerEntry{
			ChildID:   1,
			TaskID:    &taskID,
			EntryType: model.EntryEarn,
			Delta:     10,
			CreatedAt: today.UTC().AddDate(0, 0, -daysAgo),
		}
	}

	// Seven consecutive UTC days ending today, plus two completions last
	// week so momentum has a baseline (7 >= 1.5*2).
	var entries []model.LedgerEntry
	for i := range 7 {
		entries = append(entries, stamped(i))
	}
	entries = append(entries, stamped(8), stamped(9))

	got := Evaluate(Context{Entries: entries, Unlocked: map[string]bool{}, Today: today})
	found := map[string]bool{}
	for _, code := range got {
		found[code] = true
	}
	if !found["perfect-week"] {
		t.Error("perfect-week should unlock when Today is in a non-UTC zone")
	}
	if !found["momentum"] {
		t.Error("momentum should unlock when Today is in a non-UTC zone")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	ctx := Context{
		Tasks:    []model.Task{{ID: 1, TotalCompletions: 10, ConsecutiveDays: 7}},
		Entries:  []model.LedgerEntry{entry(1, 150, 0)},
		Unlocked: map[string]bool{},
		Today:    testDay,
	}
	first := Evaluate(ctx)
	for range 5 {
		again := Evaluate(ctx)
		if len(again) != len(first) {
			t.Fatalf("evaluation not deterministic: %v vs %v", again, first)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("evaluation not deterministic: %v vs %v", again, first)
			}
		}
	}
}
