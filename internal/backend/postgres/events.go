package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/sqlc-dev/pqtype"
)

// CreateEvent appends one audit row. The payload is free-form JSON; an
// empty payload stores NULL.
func (r *Repository) CreateEvent(ctx context.Context, gameID uuid.UUID, kind string, payload []byte) error {
	body := pqtype.NullRawMessage{RawMessage: payload, Valid: len(payload) > 0}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin event write: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO game_events (id, game_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		uuid.New(), gameID, kind, body); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := notify(ctx, tx, gameID, gamesync.TopicEventInserted); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
