package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/mleroy14/chickenhunt/internal/models"
	"github.com/rs/zerolog/log"
)

// WriteStatus performs the phase transition with a conditional update: the
// row only moves if it is still in the single status allowed to precede the
// target. Two clients racing the same transition resolve here, which is
// what makes this the cross-client invariant boundary.
func (r *Repository) WriteStatus(ctx context.Context, gameID uuid.UUID, target models.GameStatus, actor string, metadata map[string]any) (*models.Game, error) {
	if !target.Valid() {
		return nil, &gamesync.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}
	from, ok := statusBefore(target)
	if !ok {
		return nil, &gamesync.InvalidTransitionError{From: "", To: target}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin status write: %w", err)
	}
	defer tx.Rollback(ctx)

	if target == models.GameStatusInProgress {
		var chickens int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM teams WHERE game_id = $1 AND is_chicken`, gameID,
		).Scan(&chickens); err != nil {
			return nil, fmt.Errorf("count chicken teams: %w", err)
		}
		if chickens == 0 {
			return nil, &gamesync.PreconditionError{Reason: "no chicken team assigned"}
		}
	}

	var g models.Game
	err = tx.QueryRow(ctx, `
		UPDATE games SET
			status = $2,
			started_at = CASE WHEN $2 = 'IN_PROGRESS' THEN now() ELSE started_at END,
			hidden_at  = CASE WHEN $2 = 'CHICKEN_HIDDEN' THEN now() ELSE hidden_at END,
			ended_at   = CASE WHEN $2 = 'FINISHED' THEN now() ELSE ended_at END,
			updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING id, status, started_at, hidden_at, ended_at,
		          pot_initial, pot_current, max_teams, current_bar_id,
		          created_at, updated_at`,
		gameID, target, from).Scan(
		&g.ID, &g.Status, &g.StartedAt, &g.HiddenAt, &g.EndedAt,
		&g.PotInitial, &g.PotCurrent, &g.MaxTeams, &g.CurrentBarID,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the game is unknown or it is not in the required phase.
		cur, statusErr := r.FetchGameStatus(ctx, gameID)
		if statusErr != nil {
			return nil, statusErr
		}
		return nil, &gamesync.InvalidTransitionError{From: cur, To: target}
	}
	if err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if err := r.insertEvent(ctx, tx, gameID, "status_changed", map[string]any{
		"status":   target,
		"actor":    actor,
		"metadata": metadata,
	}); err != nil {
		return nil, err
	}
	if err := notify(ctx, tx, gameID, gamesync.TopicGameUpdated); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status write: %w", err)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Str("status", string(target)).
		Str("actor", actor).
		Msg("game status written")
	return &g, nil
}

// statusBefore returns the only status a game may be in right before the
// target, per the forward-only machine.
func statusBefore(target models.GameStatus) (models.GameStatus, bool) {
	switch target {
	case models.GameStatusInProgress:
		return models.GameStatusLobby, true
	case models.GameStatusChickenHidden:
		return models.GameStatusInProgress, true
	case models.GameStatusFinished:
		return models.GameStatusChickenHidden, true
	case models.GameStatusLobby:
		return "", false
	}
	return "", false
}

// WriteSubmissionStatus decides a pending submission. Decided submissions
// are terminal; the conditional update enforces that remotely.
func (r *Repository) WriteSubmissionStatus(ctx context.Context, submissionID uuid.UUID, status models.SubmissionStatus) (*models.Submission, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin submission write: %w", err)
	}
	defer tx.Rollback(ctx)

	var s models.Submission
	var gameID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE submissions SET status = $2
		WHERE id = $1 AND status = 'PENDING'
		RETURNING id, challenge_id, team_id, status, photo_url, submitted_at,
		          (SELECT game_id FROM teams WHERE teams.id = submissions.team_id)`,
		submissionID, status).Scan(
		&s.ID, &s.ChallengeID, &s.TeamID, &s.Status, &s.PhotoURL, &s.SubmittedAt, &gameID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &gamesync.PreconditionError{Reason: "submission missing or already decided"}
	}
	if err != nil {
		return nil, fmt.Errorf("write submission status: %w", err)
	}

	if status == models.SubmissionStatusApproved {
		if _, err := tx.Exec(ctx, `
			UPDATE teams SET
				challenges_completed = challenges_completed + 1,
				score = score + (SELECT points FROM challenges WHERE id = $2)
			WHERE id = $1`, s.TeamID, s.ChallengeID); err != nil {
			return nil, fmt.Errorf("credit team: %w", err)
		}
	}

	if err := notify(ctx, tx, gameID, gamesync.TopicSubmissionChanged); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit submission write: %w", err)
	}
	return &s, nil
}

// UpdateTeamFound flips the monotonic found flag. Re-running the statement
// on an already-found team changes nothing.
func (r *Repository) UpdateTeamFound(ctx context.Context, teamID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin team write: %w", err)
	}
	defer tx.Rollback(ctx)

	var gameID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE teams SET found_chicken = TRUE WHERE id = $1
		RETURNING game_id`, teamID).Scan(&gameID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &gamesync.NotFoundError{Entity: "team", ID: teamID.String()}
	}
	if err != nil {
		return fmt.Errorf("write found flag: %w", err)
	}

	if err := notify(ctx, tx, gameID, gamesync.TopicTeamChanged); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) UpdateTeamBar(ctx context.Context, gameID, barID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bar write: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE games SET current_bar_id = $2, updated_at = now() WHERE id = $1`,
		gameID, barID)
	if err != nil {
		return fmt.Errorf("write current bar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &gamesync.NotFoundError{Entity: "game", ID: gameID.String()}
	}

	if err := notify(ctx, tx, gameID, gamesync.TopicGameUpdated); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) UpdateChallengeActive(ctx context.Context, challengeID uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE challenges SET active = $2 WHERE id = $1`, challengeID, active)
	if err != nil {
		return fmt.Errorf("write challenge active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &gamesync.NotFoundError{Entity: "challenge", ID: challengeID.String()}
	}
	return nil
}

// RemoveBar soft-removes a bar: the row stays, flagged, so messages and
// history keep a valid reference.
func (r *Repository) RemoveBar(ctx context.Context, gameID, barID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bar removal: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bars SET removed = TRUE WHERE id = $1 AND game_id = $2`, barID, gameID)
	if err != nil {
		return fmt.Errorf("remove bar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &gamesync.NotFoundError{Entity: "bar", ID: barID.String()}
	}

	if err := notify(ctx, tx, gameID, gamesync.TopicGameUpdated); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) CreateMessage(ctx context.Context, gameID uuid.UUID, msg models.NewMessage) (*models.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin message write: %w", err)
	}
	defer tx.Rollback(ctx)

	var m models.Message
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, game_id, sender, content, is_clue, is_pot_event, amount, is_bar_removal, bar_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id, game_id, sender, content, is_clue, is_pot_event, amount, is_bar_removal, bar_id, created_at`,
		uuid.New(), gameID, msg.Sender, msg.Content, msg.IsClue, msg.IsPotEvent,
		msg.Amount, msg.IsBarRemoval, msg.BarID).Scan(
		&m.ID, &m.GameID, &m.Sender, &m.Content, &m.IsClue, &m.IsPotEvent,
		&m.Amount, &m.IsBarRemoval, &m.BarID, &m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := notify(ctx, tx, gameID, gamesync.TopicMessageInserted); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit message write: %w", err)
	}
	return &m, nil
}

// insertEvent writes one audit row inside the caller's transaction.
func (r *Repository) insertEvent(ctx context.Context, tx pgx.Tx, gameID uuid.UUID, kind string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO game_events (id, game_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		uuid.New(), gameID, kind, body); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
