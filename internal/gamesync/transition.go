package gamesync

import "github.com/mleroy14/chickenhunt/internal/models"

// validateTransition checks the forward-only phase machine locally before a
// remote write is attempted. The backend re-validates on its side; this
// check exists so an obviously invalid attempt fails fast without touching
// local state.
func validateTransition(from, to models.GameStatus) error {
	if !from.Valid() || !to.Valid() {
		return &InvalidTransitionError{From: from, To: to}
	}
	if !from.CanTransitionTo(to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
