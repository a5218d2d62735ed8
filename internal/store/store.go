package store

import "errors"

// dateLayout is the storage format for calendar dates (streak bookkeeping
// works in whole days, never instants).
const dateLayout = "2006-01-02"

var (
	// ErrConflict is returned when a conditional update finds the row in a
	// different state than expected (already completed today, already
	// confirmed, already reviewed). The caller should refresh, not retry.
	ErrConflict = errors.New("store: conditional update conflict")

	// ErrInsufficientBalance is returned when a guarded balance adjustment
	// would drive the balance below zero. No mutation is applied.
	ErrInsufficientBalance = errors.New("store: insufficient balance")

	// ErrNotFound is returned by mutations that target a missing row.
	ErrNotFound = errors.New("store: not found")
)
