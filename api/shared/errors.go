/* errors.go
 * Contains the domain error kinds returned across package boundaries. Callers distinguish
 * these with errors.Is; anything not matching one of them is a storage or transport fault
 * Authors: Zachary Bower
 */

package shared

import "errors"

var (
	// ErrNotFound means the referenced contest or pick does not exist. User error, not a fault.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means an argument was malformed: empty participant label,
	// start time in the past, unknown window, or an attempt to set winner through update.
	ErrInvalidInput = errors.New("invalid input")

	// ErrContestClosed means a pick was attempted at or after the contest's scheduled start.
	ErrContestClosed = errors.New("contest closed")

	// ErrDuplicatePick means a pick already exists for this (community, user, contest) key.
	// Raised from the storage uniqueness constraint, never from a prior read.
	ErrDuplicatePick = errors.New("duplicate pick")

	// ErrAlreadyCompleted means the contest already has a winner set.
	ErrAlreadyCompleted = errors.New("contest already completed")
)
