package store

import (
	"testing"

	"github.com/mattkendal/kudos/internal/database"
	"github.com/mattkendal/kudos/internal/model"
)

func setupLedgerTestDB(t *testing.T) (*LedgerStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	child, err := NewChildStore(db).Create("Ada", "", "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return NewLedgerStore(db), child.ID
}

func TestLedgerAppendAndGet(t *testing.T) {
	ls, childID := setupLedgerTestDB(t)

	taskID := int64(3)
	id, err := ls.Append(childID, &taskID, model.EntryEarn, 15, "Brush teeth", "proud", model.OperatorSystem)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	entry, err := ls.GetByID(id)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry == nil {
		t.Fatal("entry not found")
	}
	if entry.Delta != 15 || entry.EntryType != model.EntryEarn {
		t.Errorf("entry = %+v, want delta 15 earn", entry)
	}
	if entry.TaskID == nil || *entry.TaskID != taskID {
		t.Errorf("task id = %v, want %d", entry.TaskID, taskID)
	}
	if entry.Emotion != "proud" {
		t.Errorf("emotion = %q, want %q", entry.Emotion, "proud")
	}

	// Adjustments have no task
	adjID, err := ls.Append(childID, nil, model.EntryAdjust, -4, "Correction", "", model.OperatorParent)
	if err != nil {
		t.Fatalf("append adjust: %v", err)
	}
	adj, _ := ls.GetByID(adjID)
	if adj.TaskID != nil {
		t.Error("adjust entry should have nil task id")
	}
}

func TestLedgerSums(t *testing.T) {
	ls, childID := setupLedgerTestDB(t)

	ls.Append(childID, nil, model.EntryEarn, 15, "", "", model.OperatorSystem)
	ls.Append(childID, nil, model.EntryEarn, 20, "", "", model.OperatorSystem)
	ls.Append(childID, nil, model.EntrySpend, -25, "", "", model.OperatorChild)
	ls.Append(childID, nil, model.EntryAdjust, 5, "", "", model.OperatorParent)

	sum, err := ls.SumDeltas(childID)
	if err != nil {
		t.Fatalf("sum deltas: %v", err)
	}
	if sum != 15 {
		t.Errorf("sum = %d, want 15", sum)
	}

	// Earned counts positive deltas only; the spend does not subtract
	earned, err := ls.SumEarned(childID)
	if err != nil {
		t.Fatalf("sum earned: %v", err)
	}
	if earned != 40 {
		t.Errorf("earned = %d, want 40", earned)
	}
}

func TestLedgerSumsEmpty(t *testing.T) {
	ls, childID := setupLedgerTestDB(t)

	sum, err := ls.SumDeltas(childID)
	if err != nil {
		t.Fatalf("sum deltas: %v", err)
	}
	if sum != 0 {
		t.Errorf("sum = %d, want 0", sum)
	}
}

func TestLatestEarnForTask(t *testing.T) {
	ls, childID := setupLedgerTestDB(t)

	taskA := int64(1)
	taskB := int64(2)
	ls.Append(childID, &taskA, model.EntryEarn, 10, "", "", model.OperatorSystem)
	wantID, _ := ls.Append(childID, &taskA, model.EntryEarn, 12, "", "", model.OperatorSystem)
	ls.Append(childID, &taskB, model.EntryEarn, 99, "", "", model.OperatorSystem)
	ls.Append(childID, &taskA, model.EntrySpend, -5, "", "", model.OperatorChild)

	entry, err := ls.LatestEarnForTask(childID, taskA)
	if err != nil {
		t.Fatalf("latest earn: %v", err)
	}
	if entry == nil || entry.ID != wantID {
		t.Fatalf("entry = %+v, want id %d", entry, wantID)
	}

	none, err := ls.LatestEarnForTask(childID, 42)
	if err != nil {
		t.Fatalf("latest earn missing task: %v", err)
	}
	if none != nil {
		t.Error("expected nil for task with no earn entries")
	}
}

func TestLedgerDelete(t *testing.T) {
	ls, childID := setupLedgerTestDB(t)

	id, _ := ls.Append(childID, nil, model.EntryEarn, 10, "", "", model.OperatorSystem)
	if err := ls.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entry, err := ls.GetByID(id)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if entry != nil {
		t.Error("entry should be gone")
	}

	sum, _ := ls.SumDeltas(childID)
	if sum != 0 {
		t.Errorf("sum after delete = %d, want 0", sum)
	}
}

func TestLedgerHistoryOrder(t *testing.T) {
	ls, childID := setupLedgerTestDB(t)

	for i := range 5 {
		ls.Append(childID, nil, model.EntryEarn, i+1, "", "", model.OperatorSystem)
	}

	// ListByChild returns newest first and honors the limit
	entries, err := ls.ListByChild(childID, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Delta != 5 || entries[2].Delta != 3 {
		t.Errorf("order wrong: deltas %d..%d, want 5..3", entries[0].Delta, entries[2].Delta)
	}

	// AllByChild returns the full history oldest first
	all, err := ls.AllByChild(childID)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d entries, want 5", len(all))
	}
	if all[0].Delta != 1 || all[4].Delta != 5 {
		t.Errorf("order wrong: deltas %d..%d, want 1..5", all[0].Delta, all[4].Delta)
	}
}
