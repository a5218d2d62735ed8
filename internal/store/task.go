package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mattkendal/kudos/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, child_id, title, category, base_points, frequency, active, requires_confirmation,
	consecutive_days, last_completed_date, total_completions,
	confirmed, confirmed_by, confirmed_at, pending_points, pending_bonus, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var active, requiresConfirmation, confirmed int
	var lastCompleted sql.NullString
	var confirmedBy sql.NullInt64
	var confirmedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.ChildID, &t.Title, &t.Category, &t.BasePoints, &t.Frequency, &active, &requiresConfirmation,
		&t.ConsecutiveDays, &lastCompleted, &t.TotalCompletions,
		&confirmed, &confirmedBy, &confirmedAt, &t.PendingPoints, &t.PendingBonus, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Active = active != 0
	t.RequiresConfirmation = requiresConfirmation != 0
	t.Confirmed = confirmed != 0
	if lastCompleted.Valid {
		day, err := time.Parse(dateLayout, lastCompleted.String)
		if err != nil {
			return nil, fmt.Errorf("parse last completed date %q: %w", lastCompleted.String, err)
		}
		t.LastCompletedDate = &day
	}
	if confirmedBy.Valid {
		t.ConfirmedBy = &confirmedBy.Int64
	}
	if confirmedAt.Valid {
		t.ConfirmedAt = &confirmedAt.Time
	}
	return &t, nil
}

func (s *TaskStore) Create(childID int64, title, category string, basePoints int, frequency string, requiresConfirmation bool) (*model.Task, error) {
	var rc int
	if requiresConfirmation {
		rc = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (child_id, title, category, base_points, frequency, requires_confirmation)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		childID, title, category, basePoints, frequency, rc,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) ListByChild(childID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE child_id = ? ORDER BY active DESC, title ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(id int64, title, category string, basePoints int, frequency string, requiresConfirmation bool) (*model.Task, error) {
	var rc int
	if requiresConfirmation {
		rc = 1
	}

	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, category = ?, base_points = ?, frequency = ?, requires_confirmation = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, category, basePoints, frequency, rc, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

// SetActive soft-deactivates or reactivates a task. Tasks are never hard
// deleted while ledger entries reference them.
func (s *TaskStore) SetActive(id int64, active bool) error {
	var a int
	if active {
		a = 1
	}
	_, err := s.db.Exec(`UPDATE tasks SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, a, id)
	if err != nil {
		return fmt.Errorf("set task active: %w", err)
	}
	return nil
}

// ApplyCompletion advances the streak bookkeeping for a completion on the
// given day. The WHERE clause doubles as the same-day idempotency guard: a
// second submission for the same calendar day matches zero rows and returns
// ErrConflict, so two near-simultaneous completions cannot both advance the
// streak. pendingPoints/pendingBonus carry the withheld award for
// confirmation-gated tasks and are zero otherwise.
func (s *TaskStore) ApplyCompletion(id int64, day time.Time, consecutiveDays, pendingPoints, pendingBonus int) error {
	dayStr := day.Format(dateLayout)
	result, err := s.db.Exec(
		`UPDATE tasks SET consecutive_days = ?, last_completed_date = ?,
		   total_completions = total_completions + 1,
		   confirmed = 0, confirmed_by = NULL, confirmed_at = NULL,
		   pending_points = ?, pending_bonus = ?,
		   updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND (last_completed_date IS NULL OR last_completed_date <> ?)`,
		consecutiveDays, dayStr, pendingPoints, pendingBonus, id, dayStr,
	)
	if err != nil {
		return fmt.Errorf("apply completion: %w", err)
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

// ConfirmCompletion flips the confirmed flag with a compare-and-swap on its
// previous value and clears the withheld award. Exactly one of two
// concurrent confirmation attempts can win; the loser gets ErrConflict.
func (s *TaskStore) ConfirmCompletion(id, confirmedBy int64) error {
	result, err := s.db.Exec(
		`UPDATE tasks SET confirmed = 1, confirmed_by = ?, confirmed_at = CURRENT_TIMESTAMP,
		   pending_points = 0, pending_bonus = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND confirmed = 0 AND last_completed_date IS NOT NULL`,
		confirmedBy, id,
	)
	if err != nil {
		return fmt.Errorf("confirm completion: %w", err)
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

// ApplyUndo rolls the streak fields back after undoing a completion made on
// the given day. The WHERE clause requires the task to still be completed on
// that day, so an undo for a stale view of the task conflicts instead of
// corrupting the streak.
func (s *TaskStore) ApplyUndo(id int64, completedDay time.Time, consecutiveDays int, lastCompleted *time.Time) error {
	var last sql.NullString
	if lastCompleted != nil {
		last = sql.NullString{String: lastCompleted.Format(dateLayout), Valid: true}
	}

	result, err := s.db.Exec(
		`UPDATE tasks SET consecutive_days = ?, last_completed_date = ?,
		   total_completions = MAX(total_completions - 1, 0),
		   confirmed = 0, confirmed_by = NULL, confirmed_at = NULL,
		   pending_points = 0, pending_bonus = 0,
		   updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND last_completed_date = ?`,
		consecutiveDays, last, id, completedDay.Format(dateLayout),
	)
	if err != nil {
		return fmt.Errorf("apply undo: %w", err)
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
