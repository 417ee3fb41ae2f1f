package gamesync

import (
	"context"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/models"
)

// Backend is the persistence collaborator. It is the cross-client source of
// truth; every mutation's authoritative outcome is decided on its side.
type Backend interface {
	FetchGameSnapshot(ctx context.Context, gameID uuid.UUID) (*models.GameWithRelations, error)
	// FetchGameStatus reads only the status column; it backs the narrow
	// poll path so the reconciler does not pay for a full snapshot.
	FetchGameStatus(ctx context.Context, gameID uuid.UUID) (models.GameStatus, error)
	FetchChallenges(ctx context.Context) ([]models.Challenge, error)
	FetchSubmissions(ctx context.Context, gameID uuid.UUID) ([]models.Submission, error)
	FetchMessages(ctx context.Context, gameID uuid.UUID) ([]models.Message, error)

	// WriteStatus performs the phase transition remotely. The backend must
	// reject transitions that do not follow the forward order, since it is
	// the only place the cross-client invariant can be enforced.
	WriteStatus(ctx context.Context, gameID uuid.UUID, target models.GameStatus, actor string, metadata map[string]any) (*models.Game, error)

	WriteSubmissionStatus(ctx context.Context, submissionID uuid.UUID, status models.SubmissionStatus) (*models.Submission, error)
	UpdateTeamFound(ctx context.Context, teamID uuid.UUID) error
	UpdateTeamBar(ctx context.Context, gameID, barID uuid.UUID) error
	UpdateChallengeActive(ctx context.Context, challengeID uuid.UUID, active bool) error
	RemoveBar(ctx context.Context, gameID, barID uuid.UUID) error
	CreateMessage(ctx context.Context, gameID uuid.UUID, msg models.NewMessage) (*models.Message, error)

	// ApplyPotOperation executes one named atomic ledger operation. The new
	// amount is computed from the server's previous amount, never the
	// caller's cached value.
	ApplyPotOperation(ctx context.Context, gameID uuid.UUID, op models.PotOperation, amount int, reason string) (*models.PotTransaction, error)

	// CreateEvent is a fire-and-forget audit write.
	CreateEvent(ctx context.Context, gameID uuid.UUID, kind string, payload []byte) error
}

// Topic identifies a logical change-feed channel.
type Topic string

const (
	TopicGameUpdated       Topic = "game_updated"
	TopicTeamChanged       Topic = "team_changed"
	TopicSubmissionChanged Topic = "submission_changed"
	TopicMessageInserted   Topic = "message_inserted"
	TopicEventInserted     Topic = "event_inserted"
)

// AllTopics lists every change topic the engine subscribes to.
func AllTopics() []Topic {
	return []Topic{
		TopicGameUpdated,
		TopicTeamChanged,
		TopicSubmissionChanged,
		TopicMessageInserted,
		TopicEventInserted,
	}
}

// Subscription is a handle for one established topic subscription.
type Subscription interface {
	Unsubscribe() error
}

// Feed delivers push notifications for a game's change topics. Deliveries
// carry no payload; any delivery means "something on this topic changed,
// refetch". Implementations must tolerate Unsubscribe after context cancel.
type Feed interface {
	Subscribe(ctx context.Context, gameID uuid.UUID, topic Topic, onChange func(Topic)) (Subscription, error)
}
