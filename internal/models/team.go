package models

import (
	"time"

	"github.com/google/uuid"
)

// Team represents a participating team. Exactly one team per game carries
// IsChicken; FoundChicken only ever moves false -> true.
type Team struct {
	ID                  uuid.UUID  `json:"id"`
	GameID              uuid.UUID  `json:"game_id"`
	Name                string     `json:"name"`
	Score               int        `json:"score"`
	BarsVisited         int        `json:"bars_visited"`
	ChallengesCompleted int        `json:"challenges_completed"`
	FoundChicken        bool       `json:"found_chicken"`
	IsChicken           bool       `json:"is_chicken"`
	LastLat             *float64   `json:"last_lat,omitempty"`
	LastLon             *float64   `json:"last_lon,omitempty"`
	LastSeenAt          *time.Time `json:"last_seen_at,omitempty"`
}

// Stats snapshots the team's final statistics.
func (t Team) Stats() TeamStats {
	return TeamStats{
		TeamID:              t.ID,
		Name:                t.Name,
		Score:               t.Score,
		BarsVisited:         t.BarsVisited,
		ChallengesCompleted: t.ChallengesCompleted,
		FoundChicken:        t.FoundChicken,
	}
}
