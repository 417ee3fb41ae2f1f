package gamesync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/models"
)

func msgAt(t time.Time, content string) models.Message {
	return models.Message{ID: uuid.New(), Content: content, CreatedAt: t}
}

func TestMergeMessagesOrdersByTimestamp(t *testing.T) {
	base := time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC)
	early := msgAt(base, "first")
	mid := msgAt(base.Add(time.Minute), "second")
	late := msgAt(base.Add(2*time.Minute), "third")

	// Push and poll can deliver out of timestamp order.
	merged := mergeMessages(
		[]models.Message{late, early},
		[]models.Message{mid, early}, // early arrives twice
	)

	if len(merged) != 3 {
		t.Fatalf("merged %d messages, want 3", len(merged))
	}
	for i, want := range []string{"first", "second", "third"} {
		if merged[i].Content != want {
			t.Fatalf("position %d = %q, want %q", i, merged[i].Content, want)
		}
	}
}

func TestInsertMessageDeduplicatesAndSorts(t *testing.T) {
	base := time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC)
	first := msgAt(base, "a")
	second := msgAt(base.Add(time.Second), "b")

	var s Snapshot
	s.insertMessage(second)
	s.insertMessage(first)
	s.insertMessage(first) // duplicate delivery

	if len(s.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(s.Messages))
	}
	if s.Messages[0].Content != "a" || s.Messages[1].Content != "b" {
		t.Fatalf("messages out of order: %v", s.Messages)
	}
}

func TestCloneIsolatesConsumers(t *testing.T) {
	s := Snapshot{
		Game:  models.Game{ID: uuid.New(), Status: models.GameStatusLobby},
		Teams: []models.Team{{ID: uuid.New(), Name: "Renards"}},
	}
	clone := s.Clone()
	clone.Teams[0].Name = "mutated"
	clone.Game.Status = models.GameStatusFinished

	if s.Teams[0].Name != "Renards" {
		t.Fatal("clone shares team storage with the snapshot")
	}
	if s.Game.Status != models.GameStatusLobby {
		t.Fatal("clone shares game storage with the snapshot")
	}
}

func TestChickenTeamLookup(t *testing.T) {
	s := Snapshot{Teams: []models.Team{
		{ID: uuid.New(), Name: "Renards"},
		{ID: uuid.New(), Name: "Les Poulets", IsChicken: true},
	}}
	chicken := s.chickenTeam()
	if chicken == nil || chicken.Name != "Les Poulets" {
		t.Fatalf("chickenTeam = %+v", chicken)
	}
	var empty Snapshot
	if empty.chickenTeam() != nil {
		t.Fatal("chickenTeam on empty snapshot")
	}
}
