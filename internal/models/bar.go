package models

import "github.com/google/uuid"

// Bar is a candidate hiding spot. Bars are soft-removed from the active set,
// never deleted, since history keeps referencing them.
type Bar struct {
	ID       uuid.UUID `json:"id"`
	GameID   uuid.UUID `json:"game_id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	PhotoURL *string   `json:"photo_url,omitempty"`
	Removed  bool      `json:"removed"`
}
