package gamesync

import (
	"sort"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/models"
)

// Snapshot is the engine's in-memory copy of the whole game. The engine is
// its sole mutable owner; consumers only ever see clones, so a reader can
// never observe a partially-updated entity.
type Snapshot struct {
	Game        models.Game             `json:"game"`
	Teams       []models.Team           `json:"teams"`
	Challenges  []models.Challenge      `json:"challenges"`
	Submissions []models.Submission     `json:"submissions"`
	Messages    []models.Message        `json:"messages"`
	Bars        []models.Bar            `json:"bars"`
	RemovedBars []models.Bar            `json:"removed_bars"`
	PotLog      []models.PotTransaction `json:"pot_log"`
}

// Clone returns a copy safe to hand outside the engine. Entity pointer
// fields (timestamps, optional references) are shared but treated as
// immutable everywhere.
func (s *Snapshot) Clone() Snapshot {
	out := *s
	out.Teams = append([]models.Team(nil), s.Teams...)
	out.Challenges = append([]models.Challenge(nil), s.Challenges...)
	out.Submissions = append([]models.Submission(nil), s.Submissions...)
	out.Messages = append([]models.Message(nil), s.Messages...)
	out.Bars = append([]models.Bar(nil), s.Bars...)
	out.RemovedBars = append([]models.Bar(nil), s.RemovedBars...)
	out.PotLog = append([]models.PotTransaction(nil), s.PotLog...)
	return out
}

func (s *Snapshot) teamByID(id uuid.UUID) *models.Team {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i]
		}
	}
	return nil
}

func (s *Snapshot) challengeByID(id uuid.UUID) *models.Challenge {
	for i := range s.Challenges {
		if s.Challenges[i].ID == id {
			return &s.Challenges[i]
		}
	}
	return nil
}

func (s *Snapshot) submissionByID(id uuid.UUID) *models.Submission {
	for i := range s.Submissions {
		if s.Submissions[i].ID == id {
			return &s.Submissions[i]
		}
	}
	return nil
}

func (s *Snapshot) barByID(id uuid.UUID) *models.Bar {
	for i := range s.Bars {
		if s.Bars[i].ID == id {
			return &s.Bars[i]
		}
	}
	return nil
}

// chickenTeam returns the hidden-party team, if one is assigned.
func (s *Snapshot) chickenTeam() *models.Team {
	for i := range s.Teams {
		if s.Teams[i].IsChicken {
			return &s.Teams[i]
		}
	}
	return nil
}

// insertMessage appends msg and restores timestamp order. Messages are
// append-only and rendered by CreatedAt, not arrival order, because the
// push and poll paths can deliver out of timestamp order.
func (s *Snapshot) insertMessage(msg models.Message) {
	for i := range s.Messages {
		if s.Messages[i].ID == msg.ID {
			return
		}
	}
	s.Messages = append(s.Messages, msg)
	sortMessages(s.Messages)
}

// mergeMessages unions two message lists by ID and orders by timestamp.
func mergeMessages(existing, incoming []models.Message) []models.Message {
	seen := make(map[uuid.UUID]bool, len(existing)+len(incoming))
	out := make([]models.Message, 0, len(existing)+len(incoming))
	for _, m := range existing {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	for _, m := range incoming {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	sortMessages(out)
	return out
}

func sortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID.String() < msgs[j].ID.String()
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
