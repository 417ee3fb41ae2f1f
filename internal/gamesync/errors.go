package gamesync

import (
	"fmt"

	"github.com/mleroy14/chickenhunt/internal/models"
)

// PreconditionError is returned when an operation's cross-client
// precondition does not hold (e.g. starting a game with no chicken team,
// re-validating a terminal submission).
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

// InvalidTransitionError is returned when a phase change does not follow
// the forward LOBBY -> IN_PROGRESS -> CHICKEN_HIDDEN -> FINISHED order.
type InvalidTransitionError struct {
	From models.GameStatus
	To   models.GameStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid game transition %s -> %s", e.From, e.To)
}

// RemoteUnavailableError wraps a transport or backend failure.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable during %s: %v", e.Op, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// NotFoundError is returned when a referenced entity is missing.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError is returned for malformed input, e.g. a non-positive pot
// amount or an overdraft.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
