package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/mleroy14/chickenhunt/internal/models"
)

// NotifyChannel is the LISTEN/NOTIFY channel every write announces on. The
// feed relay listens here and republishes to the message bus.
const NotifyChannel = "chicken_events"

// Repository implements gamesync.Backend on Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Compile-time check that the repository satisfies the collaborator
// interface the engine consumes.
var _ gamesync.Backend = (*Repository)(nil)

func (r *Repository) FetchGameSnapshot(ctx context.Context, gameID uuid.UUID) (*models.GameWithRelations, error) {
	game, err := r.fetchGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	teams, err := r.fetchTeams(ctx, gameID)
	if err != nil {
		return nil, err
	}

	bars, removed, err := r.fetchBars(ctx, gameID)
	if err != nil {
		return nil, err
	}

	potLog, err := r.fetchPotLog(ctx, gameID)
	if err != nil {
		return nil, err
	}

	return &models.GameWithRelations{
		Game:        *game,
		Teams:       teams,
		Bars:        bars,
		RemovedBars: removed,
		PotLog:      potLog,
	}, nil
}

func (r *Repository) fetchGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	var g models.Game
	err := r.pool.QueryRow(ctx, `
		SELECT id, status, started_at, hidden_at, ended_at,
		       pot_initial, pot_current, max_teams, current_bar_id,
		       created_at, updated_at
		FROM games WHERE id = $1`, gameID).Scan(
		&g.ID, &g.Status, &g.StartedAt, &g.HiddenAt, &g.EndedAt,
		&g.PotInitial, &g.PotCurrent, &g.MaxTeams, &g.CurrentBarID,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &gamesync.NotFoundError{Entity: "game", ID: gameID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch game: %w", err)
	}
	return &g, nil
}

func (r *Repository) FetchGameStatus(ctx context.Context, gameID uuid.UUID) (models.GameStatus, error) {
	var status models.GameStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM games WHERE id = $1`, gameID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &gamesync.NotFoundError{Entity: "game", ID: gameID.String()}
	}
	if err != nil {
		return "", fmt.Errorf("fetch game status: %w", err)
	}
	return status, nil
}

func (r *Repository) fetchTeams(ctx context.Context, gameID uuid.UUID) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, game_id, name, score, bars_visited, challenges_completed,
		       found_chicken, is_chicken, last_lat, last_lon, last_seen_at
		FROM teams WHERE game_id = $1 ORDER BY name`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(
			&t.ID, &t.GameID, &t.Name, &t.Score, &t.BarsVisited, &t.ChallengesCompleted,
			&t.FoundChicken, &t.IsChicken, &t.LastLat, &t.LastLon, &t.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *Repository) fetchBars(ctx context.Context, gameID uuid.UUID) (active, removed []models.Bar, err error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, game_id, name, address, lat, lon, photo_url, removed
		FROM bars WHERE game_id = $1 ORDER BY name`, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.ID, &b.GameID, &b.Name, &b.Address, &b.Lat, &b.Lon, &b.PhotoURL, &b.Removed); err != nil {
			return nil, nil, fmt.Errorf("scan bar: %w", err)
		}
		if b.Removed {
			removed = append(removed, b)
		} else {
			active = append(active, b)
		}
	}
	return active, removed, rows.Err()
}

func (r *Repository) fetchPotLog(ctx context.Context, gameID uuid.UUID) ([]models.PotTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, game_id, operation, amount, previous_amount, new_amount, reason, created_at
		FROM pot_transactions WHERE game_id = $1 ORDER BY created_at`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch pot log: %w", err)
	}
	defer rows.Close()

	var log []models.PotTransaction
	for rows.Next() {
		var txn models.PotTransaction
		if err := rows.Scan(
			&txn.ID, &txn.GameID, &txn.Operation, &txn.Amount,
			&txn.PreviousAmount, &txn.NewAmount, &txn.Reason, &txn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pot transaction: %w", err)
		}
		log = append(log, txn)
	}
	return log, rows.Err()
}

func (r *Repository) FetchChallenges(ctx context.Context) ([]models.Challenge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, points, active, type, correct_answer
		FROM challenges ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("fetch challenges: %w", err)
	}
	defer rows.Close()

	var challenges []models.Challenge
	for rows.Next() {
		var c models.Challenge
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Points, &c.Active, &c.Type, &c.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

func (r *Repository) FetchSubmissions(ctx context.Context, gameID uuid.UUID) ([]models.Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.challenge_id, s.team_id, s.status, s.photo_url, s.submitted_at
		FROM submissions s
		JOIN teams t ON t.id = s.team_id
		WHERE t.game_id = $1
		ORDER BY s.submitted_at`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.ChallengeID, &s.TeamID, &s.Status, &s.PhotoURL, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *Repository) FetchMessages(ctx context.Context, gameID uuid.UUID) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, game_id, sender, content, is_clue, is_pot_event, amount,
		       is_bar_removal, bar_id, created_at
		FROM messages WHERE game_id = $1 ORDER BY created_at`, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID, &m.GameID, &m.Sender, &m.Content, &m.IsClue, &m.IsPotEvent,
			&m.Amount, &m.IsBarRemoval, &m.BarID, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// notify announces a change topic on the LISTEN/NOTIFY channel so the feed
// relay can fan it out to every connected client.
func notify(ctx context.Context, tx pgx.Tx, gameID uuid.UUID, topic gamesync.Topic) error {
	payload := fmt.Sprintf(`{"game_id":%q,"topic":%q}`, gameID.String(), string(topic))
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", topic, err)
	}
	return nil
}
