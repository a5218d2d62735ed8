package badge

import (
	"fmt"
	"time"

	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/store"
)

// Recorder bridges the pure rule table to storage: it snapshots a child's
// history, runs Evaluate, and persists whatever newly unlocked. It is
// invoked after every ledger-affecting event rather than lazily on read, so
// a badge satisfied retroactively (say by a backdated adjustment) is only
// detected on the next mutation.
type Recorder struct {
	children *store.ChildStore
	tasks    *store.TaskStore
	entries  *store.LedgerStore
	badges   *store.BadgeStore
}

func NewRecorder(children *store.ChildStore, tasks *store.TaskStore, entries *store.LedgerStore, badges *store.BadgeStore) *Recorder {
	return &Recorder{children: children, tasks: tasks, entries: entries, badges: badges}
}

// Sweep evaluates the rule table for a child as of today and persists new
// unlocks, returning the full badge rows for the caller's response.
func (r *Recorder) Sweep(childID int64, today time.Time) ([]model.Badge, error) {
	child, err := r.children.GetByID(childID)
	if err != nil {
		return nil, fmt.Errorf("load child: %w", err)
	}
	if child == nil {
		return nil, store.ErrNotFound
	}

	tasks, err := r.tasks.ListByChild(childID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	entries, err := r.entries.AllByChild(childID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	unlocked, err := r.badges.UnlockedCodes(childID)
	if err != nil {
		return nil, fmt.Errorf("load unlocked: %w", err)
	}

	codes := Evaluate(Context{
		Child:    *child,
		Tasks:    tasks,
		Entries:  entries,
		Unlocked: unlocked,
		Today:    today,
	})

	var newly []model.Badge
	for _, code := range codes {
		if err := r.badges.Unlock(childID, code); err != nil {
			return newly, fmt.Errorf("unlock %s: %w", code, err)
		}
		b, err := r.badges.GetByCode(code)
		if err != nil {
			return newly, fmt.Errorf("load badge %s: %w", code, err)
		}
		if b != nil {
			newly = append(newly, *b)
		}
	}
	return newly, nil
}
