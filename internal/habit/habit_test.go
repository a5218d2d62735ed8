package habit

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mattkendal/kudos/internal/badge"
	"github.com/mattkendal/kudos/internal/database"
	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/points"
	"github.com/mattkendal/kudos/internal/store"
	"github.com/mattkendal/kudos/internal/streak"
)

type fixture struct {
	svc     *Service
	tasks   *store.TaskStore
	entries *store.LedgerStore
	child   *model.Child
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	children := store.NewChildStore(db)
	tasks := store.NewTaskStore(db)
	entries := store.NewLedgerStore(db)
	badges := store.NewBadgeStore(db)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := points.NewLedger(children, entries, logger)
	recorder := badge.NewRecorder(children, tasks, entries, badges)

	child, err := children.Create("Ada", "", "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f := &fixture{
		svc:     NewService(tasks, children, ledger, recorder, logger),
		tasks:   tasks,
		entries: entries,
		child:   child,
		clock:   &now,
	}
	f.svc.now = func() time.Time { return *f.clock }
	return f
}

func (f *fixture) newTask(t *testing.T, basePoints int, requiresConfirmation bool) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(f.child.ID, "Brush teeth", "hygiene", basePoints, model.FrequencyDaily, requiresConfirmation)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) nextDay() {
	*f.clock = f.clock.AddDate(0, 0, 1)
}

func (f *fixture) balance(t *testing.T) int {
	t.Helper()
	sum, err := f.entries.SumDeltas(f.child.ID)
	if err != nil {
		t.Fatalf("sum deltas: %v", err)
	}
	return sum
}

func TestCompleteTaskFirstDay(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)

	res, err := f.svc.CompleteTask(task.ID, "proud")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Day 1 sits in the start stage: 10 x 1.5 = 15, no bonus
	if res.EarnedPoints != 15 || res.BonusPoints != 0 {
		t.Errorf("award = %d+%d, want 15+0", res.EarnedPoints, res.BonusPoints)
	}
	if res.NewBalance != 15 {
		t.Errorf("balance = %d, want 15", res.NewBalance)
	}
	if res.Stage != streak.StageStart {
		t.Errorf("stage = %v, want start", res.Stage)
	}
	if res.AwaitingConfirmation {
		t.Error("ungated task should not await confirmation")
	}
	if res.Task.ConsecutiveDays != 1 {
		t.Errorf("consecutive days = %d, want 1", res.Task.ConsecutiveDays)
	}
	if !res.Task.CompletedOn(*f.clock) {
		t.Error("task should read as completed today")
	}

	entries, _ := f.entries.AllByChild(f.child.ID)
	if len(entries) != 1 || entries[0].Delta != 15 || entries[0].Emotion != "proud" {
		t.Errorf("ledger = %+v, want one +15 entry with emotion", entries)
	}

	// First completion unlocks the starter badge
	var found bool
	for _, b := range res.NewBadges {
		if b.Code == "first-steps" {
			found = true
		}
	}
	if !found {
		t.Error("expected first-steps badge on first completion")
	}
}

func TestCompleteTaskSameDayRejected(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)

	if _, err := f.svc.CompleteTask(task.ID, ""); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := f.svc.CompleteTask(task.ID, ""); !errors.Is(err, ErrAlreadyCompletedToday) {
		t.Fatalf("second complete err = %v, want ErrAlreadyCompletedToday", err)
	}

	if got := f.balance(t); got != 15 {
		t.Errorf("balance = %d, want 15 (single award)", got)
	}
}

func TestCompleteTaskInactive(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)
	f.tasks.SetActive(task.ID, false)

	if _, err := f.svc.CompleteTask(task.ID, ""); !errors.Is(err, ErrTaskInactive) {
		t.Fatalf("err = %v, want ErrTaskInactive", err)
	}
}

func TestCompleteTaskNotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.CompleteTask(9999, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// Eight consecutive daily completions of a 10-point task: milestone bonuses
// land on days 3 and 7, and day 8 crosses into the persist stage at 1.0x.
func TestEightConsecutiveDays(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)

	want := []struct {
		earned, bonus int
		stageChanged  bool
	}{
		{15, 0, false},
		{15, 0, false},
		{15, 5, false},
		{15, 0, false},
		{15, 0, false},
		{15, 0, false},
		{15, 20, false},
		{10, 0, true},
	}

	for day, w := range want {
		res, err := f.svc.CompleteTask(task.ID, "")
		if err != nil {
			t.Fatalf("day %d: %v", day+1, err)
		}
		if res.EarnedPoints != w.earned || res.BonusPoints != w.bonus {
			t.Errorf("day %d: award = %d+%d, want %d+%d", day+1, res.EarnedPoints, res.BonusPoints, w.earned, w.bonus)
		}
		if res.StageChanged != w.stageChanged {
			t.Errorf("day %d: stageChanged = %v, want %v", day+1, res.StageChanged, w.stageChanged)
		}
		f.nextDay()
	}

	if got := f.balance(t); got != 140 {
		t.Errorf("total after 8 days = %d, want 140", got)
	}
}

func TestMissedDayResetsStreak(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)

	for range 5 {
		if _, err := f.svc.CompleteTask(task.ID, ""); err != nil {
			t.Fatalf("complete: %v", err)
		}
		f.nextDay()
	}

	// Skip a day; the next completion starts over at 1
	f.nextDay()
	res, err := f.svc.CompleteTask(task.ID, "")
	if err != nil {
		t.Fatalf("complete after gap: %v", err)
	}
	if res.Task.ConsecutiveDays != 1 {
		t.Errorf("consecutive days = %d, want 1", res.Task.ConsecutiveDays)
	}
	if res.EarnedPoints != 15 {
		t.Errorf("earned = %d, want 15 (back to start stage)", res.EarnedPoints)
	}
}

func TestGraduationFiresOnce(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)

	var graduations int
	for day := 1; day <= 70; day++ {
		res, err := f.svc.CompleteTask(task.ID, "")
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		if res.Graduated {
			graduations++
			if day != 66 {
				t.Errorf("graduated on day %d, want 66", day)
			}
		}
		if day >= 66 {
			if res.Stage != streak.StageGraduated {
				t.Errorf("day %d: stage = %v, want graduated", day, res.Stage)
			}
			if res.EarnedPoints != 0 || res.BonusPoints != 0 {
				t.Errorf("day %d: graduated task awarded %d+%d points", day, res.EarnedPoints, res.BonusPoints)
			}
		}
		f.nextDay()
	}
	if graduations != 1 {
		t.Errorf("graduated %d times, want exactly once", graduations)
	}

	// Completions past graduation still advance the streak count
	got, _ := f.tasks.GetByID(task.ID)
	if got.ConsecutiveDays != 70 {
		t.Errorf("consecutive days = %d, want 70", got.ConsecutiveDays)
	}
}

func TestConfirmationGatedFlow(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, true)

	res, err := f.svc.CompleteTask(task.ID, "happy")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.AwaitingConfirmation {
		t.Fatal("expected awaiting confirmation")
	}
	if res.EarnedPoints != 0 || res.NewBalance != 0 {
		t.Errorf("gated completion leaked points: earned %d, balance %d", res.EarnedPoints, res.NewBalance)
	}
	if got := f.balance(t); got != 0 {
		t.Errorf("ledger sum = %d, want 0 before confirmation", got)
	}

	// Streak advanced immediately even though the award is withheld
	pending, _ := f.tasks.GetByID(task.ID)
	if pending.ConsecutiveDays != 1 {
		t.Errorf("consecutive days = %d, want 1", pending.ConsecutiveDays)
	}

	conf, err := f.svc.ConfirmTask(task.ID, 7)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if conf.EarnedPoints != 15 || conf.NewBalance != 15 {
		t.Errorf("confirm award = %d, balance %d, want 15 and 15", conf.EarnedPoints, conf.NewBalance)
	}
	if !conf.Task.Confirmed {
		t.Error("task should be confirmed")
	}

	if _, err := f.svc.ConfirmTask(task.ID, 8); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("double confirm err = %v, want ErrAlreadyConfirmed", err)
	}
	if got := f.balance(t); got != 15 {
		t.Errorf("balance = %d, want 15 (award applied once)", got)
	}
}

func TestConfirmNotGated(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)
	f.svc.CompleteTask(task.ID, "")

	if _, err := f.svc.ConfirmTask(task.ID, 7); !errors.Is(err, ErrNotAwaitingConfirmation) {
		t.Fatalf("err = %v, want ErrNotAwaitingConfirmation", err)
	}
}

func TestConfirmNothingCompleted(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, true)

	if _, err := f.svc.ConfirmTask(task.ID, 7); !errors.Is(err, ErrNotAwaitingConfirmation) {
		t.Fatalf("err = %v, want ErrNotAwaitingConfirmation", err)
	}
}

func TestUndoComplete(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)

	f.svc.CompleteTask(task.ID, "")
	f.nextDay()
	f.svc.CompleteTask(task.ID, "")

	res, err := f.svc.UndoComplete(task.ID)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !res.Reversed {
		t.Error("expected points reversed")
	}
	if res.NewBalance != 15 {
		t.Errorf("balance = %d, want 15 (day 2 award reversed)", res.NewBalance)
	}
	if res.Task.ConsecutiveDays != 1 {
		t.Errorf("consecutive days = %d, want 1", res.Task.ConsecutiveDays)
	}
	if res.Task.CompletedOn(*f.clock) {
		t.Error("task should no longer read completed today")
	}

	entries, _ := f.entries.AllByChild(f.child.ID)
	if len(entries) != 1 {
		t.Errorf("ledger has %d entries, want 1 after undo", len(entries))
	}

	if _, err := f.svc.UndoComplete(task.ID); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("second undo err = %v, want ErrNothingToUndo", err)
	}
}

func TestUndoWithheldAward(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, true)

	f.svc.CompleteTask(task.ID, "")

	res, err := f.svc.UndoComplete(task.ID)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	// The award never reached the ledger, so nothing is reversed
	if res.Reversed {
		t.Error("withheld award should not produce a reversal")
	}
	if res.NewBalance != 0 {
		t.Errorf("balance = %d, want 0", res.NewBalance)
	}
	entries, _ := f.entries.AllByChild(f.child.ID)
	if len(entries) != 0 {
		t.Errorf("ledger has %d entries, want 0", len(entries))
	}

	got, _ := f.tasks.GetByID(task.ID)
	if got.PendingPoints != 0 || got.PendingBonus != 0 {
		t.Error("pending award should be cleared by undo")
	}
}

func TestUndoNotCompletedToday(t *testing.T) {
	f := newFixture(t)
	task := f.newTask(t, 10, false)

	f.svc.CompleteTask(task.ID, "")
	f.nextDay()

	if _, err := f.svc.UndoComplete(task.ID); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("err = %v, want ErrNothingToUndo", err)
	}
}

func TestAdjustPoints(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.AdjustPoints(f.child.ID, 25, "Helped with groceries", "")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if res.NewBalance != 25 {
		t.Errorf("balance = %d, want 25", res.NewBalance)
	}

	entry, _ := f.entries.GetByID(res.EntryID)
	if entry == nil || entry.EntryType != model.EntryAdjust || entry.Operator != model.OperatorParent {
		t.Errorf("entry = %+v, want parent adjust", entry)
	}

	// Negative adjustments may overdraw
	res, err = f.svc.AdjustPoints(f.child.ID, -30, "Broke a rule", "")
	if err != nil {
		t.Fatalf("negative adjust: %v", err)
	}
	if res.NewBalance != -5 {
		t.Errorf("balance = %d, want -5", res.NewBalance)
	}
}
