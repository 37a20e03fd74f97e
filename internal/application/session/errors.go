package session

import "errors"

var (
	// ErrNotFound means the exact (ledger, bank) pairing is not in the collection.
	ErrNotFound = errors.New("pairing not found")
	// ErrConflict means a transaction id is already claimed by a confirmed match.
	ErrConflict = errors.New("transaction already claimed")
	// ErrOutOfRange means an index outside the pending queue.
	ErrOutOfRange = errors.New("index out of range")
	// ErrNothingToReview means the cursor is past the end of the queue.
	ErrNothingToReview = errors.New("nothing to review")
	// ErrNoCounterpart means a match was requested for a result without a bank transaction.
	ErrNoCounterpart = errors.New("result has no counterpart")
	// ErrInvalidAction means an unknown review action.
	ErrInvalidAction = errors.New("invalid review action")
	// ErrRunNotRunning means a pause was requested with no running run.
	ErrRunNotRunning = errors.New("no matching run in progress")
	// ErrRunActive means the operation is refused while a run is running or paused.
	ErrRunActive = errors.New("a matching run is active")
)
