package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemSender is the sender name used for announcements the engine emits.
const SystemSender = "system"

// Message is an append-only chat/event entry. The flags are not mutually
// exclusive; Amount is only meaningful with IsPotEvent and BarID with
// IsBarRemoval.
type Message struct {
	ID           uuid.UUID  `json:"id"`
	GameID       uuid.UUID  `json:"game_id"`
	Sender       string     `json:"sender"`
	Content      string     `json:"content"`
	IsClue       bool       `json:"is_clue"`
	IsPotEvent   bool       `json:"is_pot_event"`
	Amount       int        `json:"amount,omitempty"` // signed, minor units
	IsBarRemoval bool       `json:"is_bar_removal"`
	BarID        *uuid.UUID `json:"bar_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewMessage is the creation payload for a message.
type NewMessage struct {
	Sender       string     `json:"sender"`
	Content      string     `json:"content"`
	IsClue       bool       `json:"is_clue"`
	IsPotEvent   bool       `json:"is_pot_event"`
	Amount       int        `json:"amount,omitempty"`
	IsBarRemoval bool       `json:"is_bar_removal"`
	BarID        *uuid.UUID `json:"bar_id,omitempty"`
}
