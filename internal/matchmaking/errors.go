package matchmaking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrDuplicateActiveEntry = errors.New("user already has a waiting entry for this sport")
	ErrAlreadyTerminal      = errors.New("already in a terminal state")
	ErrNotExpired           = errors.New("entry has not expired yet")
	ErrConflict             = errors.New("concurrent modification")
	ErrDisputedResult       = errors.New("reported results disagree")
	ErrAwaitingFeedback     = errors.New("waiting for feedback from both players")
	ErrFeedbackExists       = errors.New("feedback already submitted")
)

// ValidationError rejects malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
