package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/mleroy14/chickenhunt/internal/models"
	"github.com/rs/zerolog/log"
)

// ApplyPotOperation runs one ledger operation in a single transaction. The
// previous amount is read under a row lock and the new amount is computed
// here, so concurrent operations from different clients serialize and no
// client's cached balance ever enters the calculation.
func (r *Repository) ApplyPotOperation(ctx context.Context, gameID uuid.UUID, op models.PotOperation, amount int, reason string) (*models.PotTransaction, error) {
	if !op.Valid() {
		return nil, &gamesync.ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", op)}
	}
	if op != models.PotOpReset && amount <= 0 {
		return nil, &gamesync.ValidationError{Field: "amount", Reason: "amount must be positive"}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin pot operation: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous, initial int
	err = tx.QueryRow(ctx,
		`SELECT pot_current, pot_initial FROM games WHERE id = $1 FOR UPDATE`,
		gameID).Scan(&previous, &initial)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &gamesync.NotFoundError{Entity: "game", ID: gameID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("lock pot row: %w", err)
	}

	var next int
	switch op {
	case models.PotOpAdd:
		next = previous + amount
	case models.PotOpSubtract:
		next = previous - amount
		if next < 0 {
			return nil, &gamesync.ValidationError{Field: "amount", Reason: fmt.Sprintf("pot holds %d, cannot subtract %d", previous, amount)}
		}
	case models.PotOpSet:
		next = amount
	case models.PotOpReset:
		next = initial
	}

	txn := models.PotTransaction{
		ID:             uuid.New(),
		GameID:         gameID,
		Operation:      op,
		Amount:         amount,
		PreviousAmount: previous,
		NewAmount:      next,
		Reason:         reason,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO pot_transactions (id, game_id, operation, amount, previous_amount, new_amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING created_at`,
		txn.ID, txn.GameID, txn.Operation, txn.Amount,
		txn.PreviousAmount, txn.NewAmount, txn.Reason).Scan(&txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert pot transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE games SET pot_current = $2, updated_at = now()
		WHERE id = $1`, gameID, next); err != nil {
		return nil, fmt.Errorf("update pot balance: %w", err)
	}

	if err := notify(ctx, tx, gameID, gamesync.TopicGameUpdated); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pot operation: %w", err)
	}

	log.Info().
		Str("game_id", gameID.String()).
		Str("operation", string(op)).
		Int("previous", previous).
		Int("new", next).
		Msg("pot operation applied")
	return &txn, nil
}
