package store

import (
	"database/sql"
	"fmt"

	"github.com/mattkendal/kudos/internal/model"
)

type ExchangeStore struct {
	db *sql.DB
}

func NewExchangeStore(db *sql.DB) *ExchangeStore {
	return &ExchangeStore{db: db}
}

const exchangeCols = `id, child_id, reward_id, cost, status, reason, requested_at, reviewed_at, reviewed_by`

func scanExchange(scanner interface{ Scan(...any) error }) (*model.Exchange, error) {
	var e model.Exchange
	var reviewedAt sql.NullTime
	var reviewedBy sql.NullInt64

	err := scanner.Scan(&e.ID, &e.ChildID, &e.RewardID, &e.Cost, &e.Status, &e.Reason, &e.RequestedAt, &reviewedAt, &reviewedBy)
	if err != nil {
		return nil, err
	}

	if reviewedAt.Valid {
		e.ReviewedAt = &reviewedAt.Time
	}
	if reviewedBy.Valid {
		e.ReviewedBy = &reviewedBy.Int64
	}
	return &e, nil
}

func (s *ExchangeStore) Create(childID, rewardID int64, cost int) (*model.Exchange, error) {
	result, err := s.db.Exec(
		`INSERT INTO exchanges (child_id, reward_id, cost) VALUES (?, ?, ?)`,
		childID, rewardID, cost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert exchange: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ExchangeStore) GetByID(id int64) (*model.Exchange, error) {
	row := s.db.QueryRow(`SELECT `+exchangeCols+` FROM exchanges WHERE id = ?`, id)
	e, err := scanExchange(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange: %w", err)
	}
	return e, nil
}

func (s *ExchangeStore) ListByChild(childID int64) ([]model.Exchange, error) {
	rows, err := s.db.Query(
		`SELECT `+exchangeCols+` FROM exchanges WHERE child_id = ? ORDER BY requested_at DESC, id DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []model.Exchange
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, *e)
	}
	return exchanges, rows.Err()
}

func (s *ExchangeStore) ListPending() ([]model.Exchange, error) {
	rows, err := s.db.Query(`SELECT ` + exchangeCols + ` FROM exchanges WHERE status = 'pending' ORDER BY requested_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []model.Exchange
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, *e)
	}
	return exchanges, rows.Err()
}

// Review transitions a pending exchange to its terminal status. The WHERE
// clause only matches pending rows, so a second review of the same exchange
// returns ErrConflict instead of re-applying the transition.
func (s *ExchangeStore) Review(id int64, status, reason string, reviewedBy int64) error {
	result, err := s.db.Exec(
		`UPDATE exchanges SET status = ?, reason = ?, reviewed_at = CURRENT_TIMESTAMP, reviewed_by = ?
		 WHERE id = ? AND status = 'pending'`,
		status, reason, reviewedBy, id,
	)
	if err != nil {
		return fmt.Errorf("review exchange: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
