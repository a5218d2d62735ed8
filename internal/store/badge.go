package store

import (
	"database/sql"
	"fmt"

	"github.com/mattkendal/kudos/internal/model"
)

type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func (s *BadgeStore) List() ([]model.Badge, error) {
	rows, err := s.db.Query(`SELECT id, code, name, description FROM badges ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Description); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (s *BadgeStore) GetByCode(code string) (*model.Badge, error) {
	var b model.Badge
	err := s.db.QueryRow(`SELECT id, code, name, description FROM badges WHERE code = ?`, code).
		Scan(&b.ID, &b.Code, &b.Name, &b.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return &b, nil
}

// UnlockedCodes returns the set of badge codes a child has already earned.
func (s *BadgeStore) UnlockedCodes(childID int64) (map[string]bool, error) {
	rows, err := s.db.Query(
		`SELECT b.code FROM unlocked_badges u JOIN badges b ON b.id = u.badge_id WHERE u.child_id = ?`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocked codes: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes[code] = true
	}
	return codes, rows.Err()
}

func (s *BadgeStore) ListUnlocked(childID int64) ([]model.UnlockedBadge, error) {
	rows, err := s.db.Query(
		`SELECT id, child_id, badge_id, unlocked_at FROM unlocked_badges WHERE child_id = ? ORDER BY unlocked_at ASC, id ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocked badges: %w", err)
	}
	defer rows.Close()

	var unlocked []model.UnlockedBadge
	for rows.Next() {
		var u model.UnlockedBadge
		if err := rows.Scan(&u.ID, &u.ChildID, &u.BadgeID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan unlocked badge: %w", err)
		}
		unlocked = append(unlocked, u)
	}
	return unlocked, rows.Err()
}

// Unlock records a badge for a child. The insert ignores duplicates so
// unlocking is idempotent and monotonic; a badge row is never deleted.
func (s *BadgeStore) Unlock(childID int64, code string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO unlocked_badges (child_id, badge_id)
		 SELECT ?, id FROM badges WHERE code = ?`,
		childID, code,
	)
	if err != nil {
		return fmt.Errorf("unlock badge: %w", err)
	}
	return nil
}
