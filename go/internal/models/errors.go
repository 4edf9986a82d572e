package models

import "errors"

var (
	// ErrInvalidInput is returned for malformed command arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation is returned when a command is not acceptable in the current state.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a competing command already won.
	ErrConflict = errors.New("conflict")

	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")

	// ErrCommit wraps persistence failures while committing an auction outcome.
	ErrCommit = errors.New("commit failed")

	// ErrBoardCorrupt means the board entry at the current index cannot be played.
	ErrBoardCorrupt = errors.New("board entry missing or corrupt")

	// ErrInsufficientBudget is returned by the persistence layer when a debit would go negative.
	ErrInsufficientBudget = errors.New("insufficient budget")

	// ErrOwnershipChanged is returned when a roster no longer belongs to the expected seller.
	ErrOwnershipChanged = errors.New("roster ownership changed")
)
