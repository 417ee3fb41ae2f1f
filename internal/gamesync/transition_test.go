package gamesync

import (
	"errors"
	"testing"

	"github.com/mleroy14/chickenhunt/internal/models"
)

func TestValidateTransition(t *testing.T) {
	allowed := map[models.GameStatus]models.GameStatus{
		models.GameStatusLobby:         models.GameStatusInProgress,
		models.GameStatusInProgress:    models.GameStatusChickenHidden,
		models.GameStatusChickenHidden: models.GameStatusFinished,
	}
	all := []models.GameStatus{
		models.GameStatusLobby,
		models.GameStatusInProgress,
		models.GameStatusChickenHidden,
		models.GameStatusFinished,
	}

	for _, from := range all {
		for _, to := range all {
			err := validateTransition(from, to)
			if allowed[from] == to {
				if err != nil {
					t.Errorf("%s -> %s should be allowed: %v", from, to, err)
				}
				continue
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("%s -> %s should fail with InvalidTransitionError, got %v", from, to, err)
			}
		}
	}

	if err := validateTransition("FROZEN", models.GameStatusFinished); err == nil {
		t.Error("unknown status accepted")
	}
}
