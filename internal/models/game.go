package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the coarse phase of a game.
type GameStatus string

const (
	GameStatusLobby         GameStatus = "LOBBY"
	GameStatusInProgress    GameStatus = "IN_PROGRESS"
	GameStatusChickenHidden GameStatus = "CHICKEN_HIDDEN"
	GameStatusFinished      GameStatus = "FINISHED"
)

// Valid reports whether s is one of the known statuses.
func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusLobby, GameStatusInProgress, GameStatusChickenHidden, GameStatusFinished:
		return true
	}
	return false
}

// CanTransitionTo reports whether the strictly forward phase machine
// allows moving from s to target. There are no back-transitions.
func (s GameStatus) CanTransitionTo(target GameStatus) bool {
	switch s {
	case GameStatusLobby:
		return target == GameStatusInProgress
	case GameStatusInProgress:
		return target == GameStatusChickenHidden
	case GameStatusChickenHidden:
		return target == GameStatusFinished
	case GameStatusFinished:
		return false
	}
	return false
}

// Game represents a game instance.
type Game struct {
	ID           uuid.UUID  `json:"id"`
	Status       GameStatus `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	HiddenAt     *time.Time `json:"hidden_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	PotInitial   int        `json:"pot_initial"`
	PotCurrent   int        `json:"pot_current"`
	MaxTeams     int        `json:"max_teams"`
	CurrentBarID *uuid.UUID `json:"current_bar_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GameWithRelations is the aggregate the backend returns on a full fetch.
type GameWithRelations struct {
	Game        Game             `json:"game"`
	Teams       []Team           `json:"teams"`
	Bars        []Bar            `json:"bars"`
	RemovedBars []Bar            `json:"removed_bars"`
	PotLog      []PotTransaction `json:"pot_log"`
}

// TeamStats holds the final per-team statistics attached when a game ends.
type TeamStats struct {
	TeamID              uuid.UUID `json:"team_id"`
	Name                string    `json:"name"`
	Score               int       `json:"score"`
	BarsVisited         int       `json:"bars_visited"`
	ChallengesCompleted int       `json:"challenges_completed"`
	FoundChicken        bool      `json:"found_chicken"`
}
