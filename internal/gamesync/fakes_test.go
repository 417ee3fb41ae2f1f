package gamesync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/models"
)

// fakeBackend is an in-memory Backend that behaves like the real server:
// it owns the authoritative state and computes pot amounts from its own
// previous value.
type fakeBackend struct {
	mu          sync.Mutex
	game        models.Game
	teams       []models.Team
	challenges  []models.Challenge
	submissions []models.Submission
	messages    []models.Message
	bars        []models.Bar
	potLog      []models.PotTransaction

	// pollStatus, when set, is what FetchGameStatus returns instead of the
	// live status. It simulates a poll read that has not yet observed a
	// recent mutation.
	pollStatus *models.GameStatus

	failWriteStatus   error
	failOnTarget      models.GameStatus
	failFetchSnapshot error

	statusWrites     []models.GameStatus
	foundWrites      []uuid.UUID
	createdMessages  []models.NewMessage
	submissionWrites []models.SubmissionStatus
	events           []string

	now func() time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		game: models.Game{
			ID:         uuid.New(),
			Status:     models.GameStatusLobby,
			PotInitial: 800,
			PotCurrent: 800,
			MaxTeams:   6,
		},
		now: time.Now,
	}
}

func (b *fakeBackend) FetchGameSnapshot(ctx context.Context, gameID uuid.UUID) (*models.GameWithRelations, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failFetchSnapshot != nil {
		return nil, b.failFetchSnapshot
	}
	active := make([]models.Bar, 0, len(b.bars))
	removed := make([]models.Bar, 0)
	for _, bar := range b.bars {
		if bar.Removed {
			removed = append(removed, bar)
		} else {
			active = append(active, bar)
		}
	}
	return &models.GameWithRelations{
		Game:        b.game,
		Teams:       append([]models.Team(nil), b.teams...),
		Bars:        active,
		RemovedBars: removed,
		PotLog:      append([]models.PotTransaction(nil), b.potLog...),
	}, nil
}

func (b *fakeBackend) FetchGameStatus(ctx context.Context, gameID uuid.UUID) (models.GameStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pollStatus != nil {
		return *b.pollStatus, nil
	}
	return b.game.Status, nil
}

func (b *fakeBackend) FetchChallenges(ctx context.Context) ([]models.Challenge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Challenge(nil), b.challenges...), nil
}

func (b *fakeBackend) FetchSubmissions(ctx context.Context, gameID uuid.UUID) ([]models.Submission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Submission(nil), b.submissions...), nil
}

func (b *fakeBackend) FetchMessages(ctx context.Context, gameID uuid.UUID) ([]models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Message(nil), b.messages...), nil
}

func (b *fakeBackend) WriteStatus(ctx context.Context, gameID uuid.UUID, target models.GameStatus, actor string, metadata map[string]any) (*models.Game, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWriteStatus != nil && (b.failOnTarget == "" || b.failOnTarget == target) {
		return nil, b.failWriteStatus
	}
	if !b.game.Status.CanTransitionTo(target) {
		return nil, &InvalidTransitionError{From: b.game.Status, To: target}
	}
	if target == models.GameStatusInProgress {
		hasChicken := false
		for _, t := range b.teams {
			if t.IsChicken {
				hasChicken = true
			}
		}
		if !hasChicken {
			return nil, &PreconditionError{Reason: "no chicken team assigned"}
		}
	}
	b.statusWrites = append(b.statusWrites, target)
	now := b.now()
	b.game.Status = target
	switch target {
	case models.GameStatusInProgress:
		b.game.StartedAt = &now
	case models.GameStatusChickenHidden:
		b.game.HiddenAt = &now
	case models.GameStatusFinished:
		b.game.EndedAt = &now
	}
	game := b.game
	return &game, nil
}

func (b *fakeBackend) WriteSubmissionStatus(ctx context.Context, submissionID uuid.UUID, status models.SubmissionStatus) (*models.Submission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.submissions {
		if b.submissions[i].ID == submissionID {
			if b.submissions[i].Status.Terminal() {
				return nil, &PreconditionError{Reason: "submission already decided"}
			}
			b.submissions[i].Status = status
			b.submissionWrites = append(b.submissionWrites, status)
			sub := b.submissions[i]
			return &sub, nil
		}
	}
	return nil, &NotFoundError{Entity: "submission", ID: submissionID.String()}
}

func (b *fakeBackend) UpdateTeamFound(ctx context.Context, teamID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.foundWrites = append(b.foundWrites, teamID)
	for i := range b.teams {
		if b.teams[i].ID == teamID {
			b.teams[i].FoundChicken = true
		}
	}
	return nil
}

func (b *fakeBackend) UpdateTeamBar(ctx context.Context, gameID, barID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := barID
	b.game.CurrentBarID = &id
	return nil
}

func (b *fakeBackend) UpdateChallengeActive(ctx context.Context, challengeID uuid.UUID, active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.challenges {
		if b.challenges[i].ID == challengeID {
			b.challenges[i].Active = active
		}
	}
	return nil
}

func (b *fakeBackend) RemoveBar(ctx context.Context, gameID, barID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.bars {
		if b.bars[i].ID == barID {
			b.bars[i].Removed = true
		}
	}
	return nil
}

func (b *fakeBackend) CreateMessage(ctx context.Context, gameID uuid.UUID, msg models.NewMessage) (*models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createdMessages = append(b.createdMessages, msg)
	created := models.Message{
		ID:           uuid.New(),
		GameID:       gameID,
		Sender:       msg.Sender,
		Content:      msg.Content,
		IsClue:       msg.IsClue,
		IsPotEvent:   msg.IsPotEvent,
		Amount:       msg.Amount,
		IsBarRemoval: msg.IsBarRemoval,
		BarID:        msg.BarID,
		CreatedAt:    b.now(),
	}
	b.messages = append(b.messages, created)
	return &created, nil
}

// ApplyPotOperation mirrors the server ledger: the new amount derives from
// the backend's own previous amount, never a caller-supplied value.
func (b *fakeBackend) ApplyPotOperation(ctx context.Context, gameID uuid.UUID, op models.PotOperation, amount int, reason string) (*models.PotTransaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.game.PotCurrent
	var next int
	switch op {
	case models.PotOpAdd:
		next = prev + amount
	case models.PotOpSubtract:
		if amount > prev {
			return nil, &ValidationError{Field: "amount", Reason: "exceeds available balance"}
		}
		next = prev - amount
	case models.PotOpSet:
		next = amount
	case models.PotOpReset:
		next = b.game.PotInitial
	default:
		return nil, &ValidationError{Field: "operation", Reason: "unknown"}
	}
	b.game.PotCurrent = next
	txn := models.PotTransaction{
		ID:             uuid.New(),
		GameID:         gameID,
		Operation:      op,
		Amount:         amount,
		PreviousAmount: prev,
		NewAmount:      next,
		Reason:         reason,
		CreatedAt:      b.now(),
	}
	b.potLog = append(b.potLog, txn)
	return &txn, nil
}

func (b *fakeBackend) CreateEvent(ctx context.Context, gameID uuid.UUID, kind string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, kind)
	return nil
}

// fakeFeed records subscriptions and lets tests deliver notifications.
type fakeFeed struct {
	mu       sync.Mutex
	handlers map[Topic][]func(Topic)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[Topic][]func(Topic))}
}

func (f *fakeFeed) Subscribe(ctx context.Context, gameID uuid.UUID, topic Topic, onChange func(Topic)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = append(f.handlers[topic], onChange)
	return &fakeSubscription{feed: f, topic: topic}, nil
}

func (f *fakeFeed) deliver(topic Topic) {
	f.mu.Lock()
	handlers := append([]func(Topic){}, f.handlers[topic]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(topic)
	}
}

func (f *fakeFeed) count(topic Topic) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[topic])
}

type fakeSubscription struct {
	feed  *fakeFeed
	topic Topic
}

func (s *fakeSubscription) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if n := len(s.feed.handlers[s.topic]); n > 0 {
		s.feed.handlers[s.topic] = s.feed.handlers[s.topic][:n-1]
	}
	return nil
}
