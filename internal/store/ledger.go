package store

import (
	"database/sql"
	"fmt"

	"github.com/mattkendal/kudos/internal/model"
)

type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

const ledgerCols = `id, child_id, task_id, entry_type, delta, reason, emotion, operator, created_at`

func scanEntry(scanner interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var taskID sql.NullInt64

	err := scanner.Scan(&e.ID, &e.ChildID, &taskID, &e.EntryType, &e.Delta, &e.Reason, &e.Emotion, &e.Operator, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		e.TaskID = &taskID.Int64
	}
	return &e, nil
}

// Append records one immutable ledger entry and returns its id.
func (s *LedgerStore) Append(childID int64, taskID *int64, entryType string, delta int, reason, emotion, operator string) (int64, error) {
	var tID sql.NullInt64
	if taskID != nil {
		tID = sql.NullInt64{Int64: *taskID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO ledger_entries (child_id, task_id, entry_type, delta, reason, emotion, operator)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		childID, tID, entryType, delta, reason, emotion, operator,
	)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *LedgerStore) GetByID(id int64) (*model.LedgerEntry, error) {
	row := s.db.QueryRow(`SELECT `+ledgerCols+` FROM ledger_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// LatestEarnForTask returns the most recently created earn entry for the
// (child, task) pair, or nil when none exists.
func (s *LedgerStore) LatestEarnForTask(childID, taskID int64) (*model.LedgerEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+ledgerCols+` FROM ledger_entries
		 WHERE child_id = ? AND task_id = ? AND entry_type = 'earn'
		 ORDER BY id DESC LIMIT 1`,
		childID, taskID,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest earn entry: %w", err)
	}
	return e, nil
}

// Delete removes a single entry. Only the undo compensation path may call
// this; entries are otherwise immutable.
func (s *LedgerStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListByChild(childID int64, limit int) ([]model.LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+ledgerCols+` FROM ledger_entries WHERE child_id = ? ORDER BY id DESC LIMIT ?`,
		childID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// AllByChild returns a child's complete ledger, oldest first, for badge
// evaluation snapshots.
func (s *LedgerStore) AllByChild(childID int64) ([]model.LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+ledgerCols+` FROM ledger_entries WHERE child_id = ? ORDER BY id ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("all ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// SumDeltas returns the ledger's view of a child's balance. The materialized
// counter on the child row must always agree with this after any successful
// operation.
func (s *LedgerStore) SumDeltas(childID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(delta) FROM ledger_entries WHERE child_id = ?`, childID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return int(sum.Int64), nil
}

// SumEarned returns the cumulative sum of positive deltas. Badge predicates
// use this rather than the current balance so spending never retroactively
// invalidates an earned badge.
func (s *LedgerStore) SumEarned(childID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(
		`SELECT SUM(delta) FROM ledger_entries WHERE child_id = ? AND delta > 0`,
		childID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum earned: %w", err)
	}
	return int(sum.Int64), nil
}
