package models

import (
	"time"

	"github.com/google/uuid"
)

// PotOperation names an atomic ledger operation. The server computes the
// resulting amount from its own previous value; callers never do.
type PotOperation string

const (
	PotOpAdd      PotOperation = "ADD"
	PotOpSubtract PotOperation = "SUBTRACT"
	PotOpSet      PotOperation = "SET"
	PotOpReset    PotOperation = "RESET"
)

// Valid reports whether op is a known operation.
func (op PotOperation) Valid() bool {
	switch op {
	case PotOpAdd, PotOpSubtract, PotOpSet, PotOpReset:
		return true
	}
	return false
}

// PotTransaction is one row of the append-only pot audit log.
type PotTransaction struct {
	ID             uuid.UUID    `json:"id"`
	GameID         uuid.UUID    `json:"game_id"`
	Operation      PotOperation `json:"operation"`
	Amount         int          `json:"amount"`
	PreviousAmount int          `json:"previous_amount"`
	NewAmount      int          `json:"new_amount"`
	Reason         string       `json:"reason"`
	CreatedAt      time.Time    `json:"created_at"`
}

// PotPreset is a fixed, named ledger operation exposed to operators so
// common spends do not require free-form input.
type PotPreset struct {
	Name      string       `json:"name"`
	Operation PotOperation `json:"operation"`
	Amount    int          `json:"amount"`
	Reason    string       `json:"reason"`
}

// DefaultPotPresets returns the built-in preset table, keyed by name.
func DefaultPotPresets() map[string]PotPreset {
	presets := []PotPreset{
		{Name: "round_small", Operation: PotOpSubtract, Amount: 1500, Reason: "round of drinks"},
		{Name: "round_large", Operation: PotOpSubtract, Amount: 3000, Reason: "large round of drinks"},
		{Name: "transport", Operation: PotOpSubtract, Amount: 1000, Reason: "transport"},
		{Name: "snacks", Operation: PotOpSubtract, Amount: 800, Reason: "snacks"},
		{Name: "refund_round", Operation: PotOpAdd, Amount: 1500, Reason: "refund: round of drinks"},
	}
	byName := make(map[string]PotPreset, len(presets))
	for _, p := range presets {
		byName[p.Name] = p
	}
	return byName
}
