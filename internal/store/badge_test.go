package store

import (
	"testing"

	"github.com/mattkendal/kudos/internal/database"
)

func setupBadgeTestDB(t *testing.T) (*BadgeStore, int64) {
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
	return NewBadgeStore(db), child.ID
}

func TestBadgeSeedData(t *testing.T) {
	bs, _ := setupBadgeTestDB(t)

	badges, err := bs.List()
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	if len(badges) != 9 {
		t.Fatalf("expected 9 seed badges, got %d", len(badges))
	}

	expected := []string{
		"first-steps", "on-a-roll", "habit-hero", "graduate", "century",
		"high-roller", "all-rounder", "perfect-week", "momentum",
	}
	for i, code := range expected {
		if badges[i].Code != code {
			t.Errorf("badges[%d].Code = %q, want %q", i, badges[i].Code, code)
		}
	}
}

func TestBadgeGetByCode(t *testing.T) {
	bs, _ := setupBadgeTestDB(t)

	badge, err := bs.GetByCode("first-steps")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if badge == nil {
		t.Fatal("badge not found")
	}
	if badge.Name == "" || badge.Description == "" {
		t.Error("seeded badge missing name or description")
	}

	missing, err := bs.GetByCode("no-such-badge")
	if err != nil {
		t.Fatalf("get missing badge: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown code")
	}
}

func TestBadgeUnlockIdempotent(t *testing.T) {
	bs, childID := setupBadgeTestDB(t)

	if err := bs.Unlock(childID, "first-steps"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	// Re-unlocking is a no-op, not an error
	if err := bs.Unlock(childID, "first-steps"); err != nil {
		t.Fatalf("second unlock: %v", err)
	}

	unlocked, err := bs.ListUnlocked(childID)
	if err != nil {
		t.Fatalf("list unlocked: %v", err)
	}
	if len(unlocked) != 1 {
		t.Fatalf("got %d unlocked badges, want 1", len(unlocked))
	}

	codes, err := bs.UnlockedCodes(childID)
	if err != nil {
		t.Fatalf("unlocked codes: %v", err)
	}
	if !codes["first-steps"] {
		t.Error("expected first-steps in unlocked codes")
	}
	if len(codes) != 1 {
		t.Errorf("got %d codes, want 1", len(codes))
	}
}

func TestBadgeUnlockUnknownCode(t *testing.T) {
	bs, childID := setupBadgeTestDB(t)

	// Unknown code matches no badge row; nothing is inserted
	if err := bs.Unlock(childID, "no-such-badge"); err != nil {
		t.Fatalf("unlock unknown: %v", err)
	}
	unlocked, _ := bs.ListUnlocked(childID)
	if len(unlocked) != 0 {
		t.Errorf("got %d unlocked badges, want 0", len(unlocked))
	}
}
