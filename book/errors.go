package book

import "errors"

var (
	ErrInvalidFill  = errors.New("invalid fill")
	ErrOutOfOrder   = errors.New("fill out of order")
	ErrLegNotFound  = errors.New("leg not found")
	ErrInvalidLeg   = errors.New("invalid leg")
	ErrLegBookBound = errors.New("ledger already has a leg book")

	// ErrCrossInvariantViolation means the open legs no longer sum to the
	// ledger's net volume. It is always a caller bug.
	ErrCrossInvariantViolation = errors.New("leg volumes diverge from ledger net volume")
)

// Debug makes invariant violations panic instead of returning an error.
// Tests turn it on.
var Debug = false
