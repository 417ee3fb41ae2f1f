package gamesync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/models"
	"github.com/rs/zerolog/log"
)

// The mutation operations. Every operation performs the remote call first,
// applies the matching optimistic update on success, stamps the grace
// window, and emits a system announcement describing the effect. Callers
// may retry after a transient failure: the authoritative outcome lives on
// the remote side and the optimistic copy is reconciled against it.

// StartGame moves LOBBY -> IN_PROGRESS. The requirement that a chicken team
// is already assigned is validated remotely; it is a cross-client invariant
// the local snapshot cannot settle.
func (e *Engine) StartGame(ctx context.Context) error {
	e.mu.Lock()
	cur := e.snap.Game.Status
	gameID := e.gameID
	e.mu.Unlock()

	if err := validateTransition(cur, models.GameStatusInProgress); err != nil {
		return err
	}

	game, err := e.backend.WriteStatus(ctx, gameID, models.GameStatusInProgress, e.cfg.Actor, nil)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	e.mu.Lock()
	e.snap.Game.Status = models.GameStatusInProgress
	e.snap.Game.StartedAt = game.StartedAt
	if e.snap.Game.StartedAt == nil {
		e.snap.Game.StartedAt = &now
	}
	e.hidingTimer.Reset(int(e.cfg.HidingDuration.Seconds()))
	e.syncTimersLocked()
	e.markLocalMutationLocked()
	e.mu.Unlock()

	e.announce(ctx, models.NewMessage{
		Sender:  models.SystemSender,
		Content: fmt.Sprintf("The game is on! The chicken has %s to find a hiding spot.", FormatClock(int(e.cfg.HidingDuration.Seconds()))),
	})
	e.notify()
	return nil
}

// Hide moves IN_PROGRESS -> CHICKEN_HIDDEN using the chicken's currently
// selected bar. If the remote write fails the engine still applies the
// local transition: a stuck hiding phase blocks every participant, so this
// one operation trades consistency for availability. The divergence is
// flagged via Degraded and corrected by the next resync.
func (e *Engine) Hide(ctx context.Context) error {
	e.mu.Lock()
	cur := e.snap.Game.Status
	gameID := e.gameID
	e.mu.Unlock()

	if err := validateTransition(cur, models.GameStatusChickenHidden); err != nil {
		return err
	}

	_, err := e.backend.WriteStatus(ctx, gameID, models.GameStatusChickenHidden, e.cfg.Actor, nil)
	now := e.clock.Now()

	e.mu.Lock()
	if err != nil {
		log.Warn().Err(err).
			Str("game_id", gameID.String()).
			Msg("remote hide failed, applying local-only transition")
		e.degraded = true
	}
	e.snap.Game.Status = models.GameStatusChickenHidden
	e.snap.Game.HiddenAt = &now
	e.huntTimer.Reset(int(e.cfg.HuntDuration.Seconds()))
	e.syncTimersLocked()
	e.markLocalMutationLocked()
	e.mu.Unlock()

	e.announce(ctx, models.NewMessage{
		Sender:  models.SystemSender,
		Content: fmt.Sprintf("The chicken is hidden! Hunters, you have %s.", FormatClock(int(e.cfg.HuntDuration.Seconds()))),
	})
	e.notify()
	return nil
}

// ValidateChallenge decides a pending submission. The decision is terminal;
// re-validating an already-decided submission fails. The announcement needs
// submission context (team name, challenge title); if that context is
// missing the message is skipped with a log, but the status write has
// already been attempted regardless.
func (e *Engine) ValidateChallenge(ctx context.Context, submissionID uuid.UUID, approve bool) error {
	e.mu.Lock()
	sub := e.snap.submissionByID(submissionID)
	if sub == nil {
		e.mu.Unlock()
		return &NotFoundError{Entity: "submission", ID: submissionID.String()}
	}
	if sub.Status.Terminal() {
		status := sub.Status
		e.mu.Unlock()
		return &PreconditionError{Reason: fmt.Sprintf("submission already %s", status)}
	}
	challengeID := sub.ChallengeID
	teamID := sub.TeamID
	e.mu.Unlock()

	target := models.SubmissionStatusRejected
	if approve {
		target = models.SubmissionStatusApproved
	}

	if _, err := e.backend.WriteSubmissionStatus(ctx, submissionID, target); err != nil {
		return err
	}

	e.mu.Lock()
	var teamName, challengeTitle string
	var points int
	if sub := e.snap.submissionByID(submissionID); sub != nil {
		sub.Status = target
	}
	if team := e.snap.teamByID(teamID); team != nil {
		teamName = team.Name
		if approve {
			team.ChallengesCompleted++
			if ch := e.snap.challengeByID(challengeID); ch != nil {
				team.Score += ch.Points
			}
		}
	}
	if ch := e.snap.challengeByID(challengeID); ch != nil {
		challengeTitle = ch.Title
		points = ch.Points
	}
	e.markLocalMutationLocked()
	e.mu.Unlock()

	if teamName == "" || challengeTitle == "" {
		log.Warn().
			Str("submission_id", submissionID.String()).
			Msg("submission context missing, skipping announcement")
	} else {
		content := fmt.Sprintf("Challenge %q by team %s was rejected.", challengeTitle, teamName)
		if approve {
			content = fmt.Sprintf("Team %s completed challenge %q (+%d points)!", teamName, challengeTitle, points)
		}
		e.announce(ctx, models.NewMessage{Sender: models.SystemSender, Content: content})
	}
	e.notify()
	return nil
}

// MarkTeamFound flips a team's found flag. The flag is monotonic, so
// re-invoking on an already-found team is a no-op and the operation is
// idempotent end to end.
func (e *Engine) MarkTeamFound(ctx context.Context, teamID uuid.UUID) error {
	e.mu.Lock()
	team := e.snap.teamByID(teamID)
	if team == nil {
		e.mu.Unlock()
		return &NotFoundError{Entity: "team", ID: teamID.String()}
	}
	if team.FoundChicken {
		e.mu.Unlock()
		return nil
	}
	team.FoundChicken = true
	teamName := team.Name
	e.markLocalMutationLocked()
	e.mu.Unlock()

	if err := e.backend.UpdateTeamFound(ctx, teamID); err != nil {
		// The flag is monotonic and convergent; keep the local flip and
		// let the resync settle it.
		log.Warn().Err(err).Str("team_id", teamID.String()).Msg("remote found-flag write failed")
	}

	e.announce(ctx, models.NewMessage{
		Sender:  models.SystemSender,
		Content: fmt.Sprintf("Team %s found the chicken!", teamName),
	})
	e.notify()
	return nil
}

// ChangeBar relocates the chicken to another bar. A hidden party cannot
// relocate, so outside IN_PROGRESS this is a silent no-op rather than an
// error.
func (e *Engine) ChangeBar(ctx context.Context, barID uuid.UUID) error {
	e.mu.Lock()
	if e.snap.Game.Status != models.GameStatusInProgress {
		e.mu.Unlock()
		return nil
	}
	bar := e.snap.barByID(barID)
	gameID := e.gameID
	e.mu.Unlock()
	if bar == nil {
		return &NotFoundError{Entity: "bar", ID: barID.String()}
	}

	if err := e.backend.UpdateTeamBar(ctx, gameID, barID); err != nil {
		return &RemoteUnavailableError{Op: "change bar", Err: err}
	}

	e.mu.Lock()
	id := barID
	e.snap.Game.CurrentBarID = &id
	e.markLocalMutationLocked()
	e.mu.Unlock()
	e.notify()
	return nil
}

// SendClue appends a clue message from the chicken.
func (e *Engine) SendClue(ctx context.Context, text string) error {
	return e.createMessage(ctx, models.NewMessage{
		Sender:  e.cfg.Actor,
		Content: text,
		IsClue:  true,
	})
}

// SendMessage appends a plain chat message.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	return e.createMessage(ctx, models.NewMessage{
		Sender:  e.cfg.Actor,
		Content: text,
	})
}

// ToggleChallengeActive flips a challenge's active flag locally and pairs
// the flip with a remote write.
func (e *Engine) ToggleChallengeActive(ctx context.Context, challengeID uuid.UUID) error {
	e.mu.Lock()
	ch := e.snap.challengeByID(challengeID)
	if ch == nil {
		e.mu.Unlock()
		return &NotFoundError{Entity: "challenge", ID: challengeID.String()}
	}
	ch.Active = !ch.Active
	active := ch.Active
	e.markLocalMutationLocked()
	e.mu.Unlock()

	if err := e.backend.UpdateChallengeActive(ctx, challengeID, active); err != nil {
		log.Warn().Err(err).Str("challenge_id", challengeID.String()).Msg("remote challenge toggle failed")
	}
	e.notify()
	return nil
}

// UpdatePot executes one atomic ledger operation. The local pot value only
// ever advances to what the returned transaction states; the client never
// derives a new amount from its own cached previous amount, so two
// concurrent spenders cannot compound.
func (e *Engine) UpdatePot(ctx context.Context, op models.PotOperation, amount int, reason string) error {
	if !op.Valid() {
		return &ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", op)}
	}
	if op != models.PotOpReset && amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	e.mu.Lock()
	gameID := e.gameID
	e.mu.Unlock()

	txn, err := e.backend.ApplyPotOperation(ctx, gameID, op, amount, reason)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.snap.Game.PotCurrent = txn.NewAmount
	if op == models.PotOpReset {
		e.snap.Game.PotInitial = txn.NewAmount
	}
	e.snap.PotLog = append(e.snap.PotLog, *txn)
	e.markLocalMutationLocked()
	e.mu.Unlock()

	signed := txn.NewAmount - txn.PreviousAmount
	e.announce(ctx, models.NewMessage{
		Sender:     models.SystemSender,
		Content:    fmt.Sprintf("Pot %s: %s (now %d)", op, reason, txn.NewAmount),
		IsPotEvent: true,
		Amount:     signed,
	})
	e.notify()
	return nil
}

// ApplyPotPreset executes a named preset operation.
func (e *Engine) ApplyPotPreset(ctx context.Context, name string) error {
	preset, ok := e.presets[name]
	if !ok {
		return &NotFoundError{Entity: "pot preset", ID: name}
	}
	return e.UpdatePot(ctx, preset.Operation, preset.Amount, preset.Reason)
}

// RemoveBar soft-removes a bar from the active candidate set and records a
// bar-removal message. The bar stays addressable from history.
func (e *Engine) RemoveBar(ctx context.Context, barID uuid.UUID, reason string) error {
	e.mu.Lock()
	bar := e.snap.barByID(barID)
	gameID := e.gameID
	e.mu.Unlock()
	if bar == nil {
		return &NotFoundError{Entity: "bar", ID: barID.String()}
	}

	if err := e.backend.RemoveBar(ctx, gameID, barID); err != nil {
		return &RemoteUnavailableError{Op: "remove bar", Err: err}
	}

	e.mu.Lock()
	barName := ""
	for i := range e.snap.Bars {
		if e.snap.Bars[i].ID == barID {
			removed := e.snap.Bars[i]
			removed.Removed = true
			barName = removed.Name
			e.snap.RemovedBars = append(e.snap.RemovedBars, removed)
			e.snap.Bars = append(e.snap.Bars[:i], e.snap.Bars[i+1:]...)
			break
		}
	}
	e.markLocalMutationLocked()
	e.mu.Unlock()

	id := barID
	content := fmt.Sprintf("Bar %s is out of the game.", barName)
	if reason != "" {
		content = fmt.Sprintf("Bar %s is out of the game: %s", barName, reason)
	}
	e.announce(ctx, models.NewMessage{
		Sender:       models.SystemSender,
		Content:      content,
		IsBarRemoval: true,
		BarID:        &id,
	})
	e.notify()
	return nil
}

// FinishGame moves CHICKEN_HIDDEN -> FINISHED with the aggregated final
// statistics attached. This is a terminal, consequential action: any remote
// failure propagates to the caller unmodified, and no local state changes
// until the remote write succeeds.
func (e *Engine) FinishGame(ctx context.Context) error {
	e.mu.Lock()
	cur := e.snap.Game.Status
	gameID := e.gameID
	stats := make([]models.TeamStats, 0, len(e.snap.Teams))
	for _, t := range e.snap.Teams {
		stats = append(stats, t.Stats())
	}
	e.mu.Unlock()

	if err := validateTransition(cur, models.GameStatusFinished); err != nil {
		return err
	}

	game, err := e.backend.WriteStatus(ctx, gameID, models.GameStatusFinished, e.cfg.Actor, map[string]any{
		"final_stats": stats,
	})
	if err != nil {
		return err
	}

	now := e.clock.Now()
	e.mu.Lock()
	e.snap.Game.Status = models.GameStatusFinished
	e.snap.Game.EndedAt = game.EndedAt
	if e.snap.Game.EndedAt == nil {
		e.snap.Game.EndedAt = &now
	}
	e.syncTimersLocked()
	e.markLocalMutationLocked()
	e.mu.Unlock()

	if payload, err := json.Marshal(stats); err == nil {
		if err := e.backend.CreateEvent(ctx, gameID, "game_finished", payload); err != nil {
			log.Warn().Err(err).Msg("final stats event write failed")
		}
	}
	e.announce(ctx, models.NewMessage{
		Sender:  models.SystemSender,
		Content: "The hunt is over. Thanks for playing!",
	})
	e.notify()
	return nil
}

// createMessage persists a message and applies the optimistic append.
func (e *Engine) createMessage(ctx context.Context, msg models.NewMessage) error {
	e.mu.Lock()
	gameID := e.gameID
	e.mu.Unlock()

	created, err := e.backend.CreateMessage(ctx, gameID, msg)
	if err != nil {
		return &RemoteUnavailableError{Op: "create message", Err: err}
	}

	e.mu.Lock()
	e.snap.insertMessage(*created)
	e.markLocalMutationLocked()
	e.mu.Unlock()
	e.notify()
	return nil
}

// announce is the best-effort flavor of createMessage used for synthetic
// system messages: a failed announcement is logged, never propagated.
func (e *Engine) announce(ctx context.Context, msg models.NewMessage) {
	if err := e.createMessage(ctx, msg); err != nil {
		log.Warn().Err(err).Str("content", msg.Content).Msg("announcement failed")
	}
}
