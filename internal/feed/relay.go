package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/rs/zerolog/log"
)

type RelayConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to nudge live games in case a notification was dropped
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		DatabaseURL:      "",
		NotifyChannel:    "chicken_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
	}
}

// Publisher is the bus side of the relay.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Relay bridges Postgres LISTEN/NOTIFY onto the message bus. Database
// writes announce on a single channel; the relay republishes each
// notification as a per-game, per-topic bus subject.
type Relay struct {
	db        *sql.DB
	listener  *pq.Listener
	publisher Publisher
	cfg       RelayConfig
}

func NewRelay(dbConn *sql.DB, publisher Publisher, cfg RelayConfig) (*Relay, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Relay{
		db:        dbConn,
		listener:  l,
		publisher: publisher,
		cfg:       cfg,
	}, nil
}

func (r *Relay) Start(ctx context.Context) error {
	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("relay started")

	pingTicker := time.NewTicker(r.cfg.PingInterval)
	fallbackTicker := time.NewTicker(r.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("relay shutting down")
			return r.Stop()
		case note := <-r.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost and is
				// reconnecting; the fallback tick covers the gap
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := r.nudgeLiveGames(ctx); err != nil {
				log.Error().Err(err).Msg("failed to nudge live games")
			}
		case <-pingTicker.C:
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (r *Relay) Stop() error {
	return r.listener.Close()
}

// handleNotification decodes one pg_notify payload and republishes it on
// the bus with retry.
func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	var note struct {
		GameID uuid.UUID      `json:"game_id"`
		Topic  gamesync.Topic `json:"topic"`
	}
	if err := json.Unmarshal([]byte(extra), &note); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}

	event := ChangeEvent{
		ID:        uuid.New(),
		GameID:    note.GameID,
		Topic:     note.Topic,
		Timestamp: time.Now().UTC(),
	}
	if err := r.publishWithRetry(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("game_id", note.GameID.String()).
		Str("topic", string(note.Topic)).
		Msg("relayed notification")
	return nil
}

// nudgeLiveGames publishes a game_updated event for every unfinished game.
// A lost notification then costs at most one fallback interval before
// clients resync.
func (r *Relay) nudgeLiveGames(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM games WHERE status <> 'FINISHED'`)
	if err != nil {
		return fmt.Errorf("failed to list live games: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gameID uuid.UUID
		if err := rows.Scan(&gameID); err != nil {
			return fmt.Errorf("failed to scan game id: %w", err)
		}
		event := ChangeEvent{
			ID:        uuid.New(),
			GameID:    gameID,
			Topic:     gamesync.TopicGameUpdated,
			Timestamp: time.Now().UTC(),
		}
		if err := r.publishWithRetry(ctx, event); err != nil {
			log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to nudge game")
		}
	}
	return rows.Err()
}

// publishWithRetry attempts to publish a change event with a given retry
// delay and max retries.
func (r *Relay) publishWithRetry(ctx context.Context, event ChangeEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
