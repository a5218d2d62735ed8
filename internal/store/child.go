package store

import (
	"database/sql"
	"fmt"

	"github.com/mattkendal/kudos/internal/model"
)

type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

const childCols = `id, name, color, avatar_emoji, pin IS NOT NULL, balance, sort_order, created_at, updated_at`

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	err := scanner.Scan(&c.ID, &c.Name, &c.Color, &c.AvatarEmoji, &c.HasPIN, &c.Balance, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ChildStore) Create(name, color, avatarEmoji string) (*model.Child, error) {
	var maxOrder int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(sort_order), -1) FROM children`).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO children (name, color, avatar_emoji, sort_order) VALUES (?, ?, ?, ?)`,
		name, color, avatarEmoji, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChildStore) GetByID(id int64) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

func (s *ChildStore) List() ([]model.Child, error) {
	rows, err := s.db.Query(`SELECT ` + childCols + ` FROM children ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func (s *ChildStore) Update(id int64, name, color, avatarEmoji string) (*model.Child, error) {
	_, err := s.db.Exec(
		`UPDATE children SET name = ?, color = ?, avatar_emoji = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, color, avatarEmoji, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.GetByID(id)
}

// AdjustBalance applies a signed delta to the materialized balance as a
// single conditional UPDATE. With failIfBelowZero set, a delta that would
// drive the balance negative leaves the row untouched and returns
// ErrInsufficientBalance. This is the one primitive through which every
// balance mutation must flow; concurrent adjustments for the same child
// serialize here rather than through read-modify-write cycles.
func (s *ChildStore) AdjustBalance(childID int64, delta int, failIfBelowZero bool) (int, error) {
	var result sql.Result
	var err error
	if failIfBelowZero {
		result, err = s.db.Exec(
			`UPDATE children SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND balance + ? >= 0`,
			delta, childID, delta,
		)
	} else {
		result, err = s.db.Exec(
			`UPDATE children SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			delta, childID,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM children WHERE id = ?`, childID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check child: %w", err)
		}
		if exists == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrInsufficientBalance
	}

	var balance int
	if err := s.db.QueryRow(`SELECT balance FROM children WHERE id = ?`, childID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// BalanceSummaries returns every child's balance with the earned/spent
// breakdown reconstructed from the ledger, ordered by balance descending.
func (s *ChildStore) BalanceSummaries() ([]model.BalanceSummary, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, c.balance,
		       COALESCE((SELECT SUM(delta) FROM ledger_entries WHERE child_id = c.id AND delta > 0), 0),
		       COALESCE((SELECT -SUM(delta) FROM ledger_entries WHERE child_id = c.id AND delta < 0), 0)
		FROM children c
		ORDER BY c.balance DESC, c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("balance summaries: %w", err)
	}
	defer rows.Close()

	var summaries []model.BalanceSummary
	for rows.Next() {
		var b model.BalanceSummary
		if err := rows.Scan(&b.ChildID, &b.ChildName, &b.Balance, &b.TotalEarned, &b.TotalSpent); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, b)
	}
	return summaries, rows.Err()
}

func (s *ChildStore) SetPIN(id int64, hashedPIN string) error {
	_, err := s.db.Exec(`UPDATE children SET pin = ? WHERE id = ?`, hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *ChildStore) ClearPIN(id int64) error {
	_, err := s.db.Exec(`UPDATE children SET pin = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

func (s *ChildStore) GetPINHash(id int64) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT pin FROM children WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pin: %w", err)
	}
	return hash.String, nil
}
