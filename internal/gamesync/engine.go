package gamesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mleroy14/chickenhunt/internal/models"
	"github.com/rs/zerolog/log"
)

// Config holds the engine's tunables.
type Config struct {
	// PollInterval is how often the reconciler re-reads the status field.
	PollInterval time.Duration
	// GraceWindow is how long after a local mutation the poll path must
	// skip applying a status that could contradict the optimistic value.
	GraceWindow time.Duration
	// HidingDuration is how long the hidden party has to pick a bar once
	// the game starts. On expiry the engine force-hides.
	HidingDuration time.Duration
	// HuntDuration is the hunt-phase clock started when the chicken hides.
	HuntDuration time.Duration
	// Actor is the participant name used for writes and announcements.
	Actor string
	// Clock is the time source. Tests inject a clockwork.FakeClock.
	Clock clockwork.Clock
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:   5 * time.Second,
		GraceWindow:    2 * time.Second,
		HidingDuration: 30 * time.Minute,
		HuntDuration:   2 * time.Hour,
		Actor:          models.SystemSender,
		Clock:          clockwork.NewRealClock(),
	}
}

// Engine is the client-side synchronization and timing engine for one game
// session. It owns the local snapshot, reconciles the push and poll change
// sources against it, drives the two phase clocks, and exposes the mutation
// operations. It is instantiable per session; all state lives on the
// struct, nothing is package-global.
type Engine struct {
	backend Backend
	feed    Feed
	clock   clockwork.Clock
	cfg     Config
	presets map[string]models.PotPreset

	mu      sync.Mutex
	gameID  uuid.UUID
	snap    Snapshot
	loading bool
	lastErr error
	// degraded marks the availability-over-consistency fallback after a
	// failed remote hide; cleared by the next successful resync.
	degraded bool
	// lastLocalUpdate stamps every optimistic apply; the poll reconciler
	// compares it against now on every tick. This is the grace-window
	// rule: a time-boxed priority, not a lock.
	lastLocalUpdate time.Time
	hidingTimer     Countdown
	huntTimer       Countdown

	subs     map[Topic]Subscription
	resyncCh chan struct{}
	updates  chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
}

// New creates an engine for the given collaborators. Start must be called
// before the engine does anything.
func New(backend Backend, feed Feed, cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = DefaultConfig().GraceWindow
	}
	if cfg.Actor == "" {
		cfg.Actor = models.SystemSender
	}
	return &Engine{
		backend:  backend,
		feed:     feed,
		clock:    cfg.Clock,
		cfg:      cfg,
		presets:  models.DefaultPotPresets(),
		subs:     make(map[Topic]Subscription),
		resyncCh: make(chan struct{}, 1),
		updates:  make(chan struct{}, 1),
	}
}

// Start performs the initial load, establishes the change-feed
// subscriptions, and launches the event loop. It is the explicit lifecycle
// entry point; Stop tears everything down again.
func (e *Engine) Start(ctx context.Context, gameID uuid.UUID) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started for game %s", e.gameID)
	}
	e.gameID = gameID
	e.loading = true
	e.mu.Unlock()

	if err := e.Refetch(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Lock()
	e.cancel = cancel
	e.started = true
	e.hidingTimer.Reset(int(e.cfg.HidingDuration.Seconds()))
	e.huntTimer.Reset(int(e.cfg.HuntDuration.Seconds()))
	e.syncTimersLocked()
	e.mu.Unlock()

	if err := e.subscribeAll(runCtx, gameID); err != nil {
		cancel()
		e.teardown()
		return err
	}

	e.wg.Add(1)
	go e.run(runCtx)

	log.Info().
		Str("game_id", gameID.String()).
		Dur("poll_interval", e.cfg.PollInterval).
		Dur("grace_window", e.cfg.GraceWindow).
		Msg("sync engine started")
	return nil
}

// Stop cancels the poll loop, both clocks, and every subscription. It is
// safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.hidingTimer.Stop()
	e.huntTimer.Stop()
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.teardown()
	log.Info().Str("game_id", e.gameID.String()).Msg("sync engine stopped")
}

func (e *Engine) teardown() {
	e.mu.Lock()
	subs := e.subs
	e.subs = make(map[Topic]Subscription)
	e.mu.Unlock()
	for topic, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("topic", string(topic)).Msg("unsubscribe failed")
		}
	}
}

// subscribeAll establishes one subscription per topic, keyed by topic so a
// repeated Start/stop cycle can never stack duplicate listeners.
func (e *Engine) subscribeAll(ctx context.Context, gameID uuid.UUID) error {
	for _, topic := range AllTopics() {
		e.mu.Lock()
		_, exists := e.subs[topic]
		e.mu.Unlock()
		if exists {
			continue
		}
		sub, err := e.feed.Subscribe(ctx, gameID, topic, e.onFeedEvent)
		if err != nil {
			return &RemoteUnavailableError{Op: "subscribe " + string(topic), Err: err}
		}
		e.mu.Lock()
		e.subs[topic] = sub
		e.mu.Unlock()
	}
	return nil
}

// run is the event loop: one-second clock ticks, poll ticks, and coalesced
// resync requests all serialize here.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	sec := e.clock.NewTicker(time.Second)
	defer sec.Stop()
	poll := e.clock.NewTicker(e.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sec.Chan():
			e.onSecond(ctx)
		case <-poll.Chan():
			e.onPoll(ctx)
		case <-e.resyncCh:
			if err := e.Refetch(ctx); err != nil {
				log.Error().Err(err).Msg("resync failed")
			}
		}
	}
}

// onFeedEvent handles any change-feed delivery by scheduling a full
// resynchronization. Requests coalesce: many notifications in one interval
// cost one refetch.
func (e *Engine) onFeedEvent(topic Topic) {
	log.Debug().Str("topic", string(topic)).Msg("change-feed notification")
	select {
	case e.resyncCh <- struct{}{}:
	default:
	}
}

// onSecond advances whichever phase clock is relevant for the current
// status. The guard is evaluated here, at fire time, so a tick can never
// act on a phase the game has already left.
func (e *Engine) onSecond(ctx context.Context) {
	e.mu.Lock()
	if e.lastErr != nil {
		// Halted: never count down against stale or partial data.
		e.mu.Unlock()
		return
	}
	var forceHide bool
	switch e.snap.Game.Status {
	case models.GameStatusLobby, models.GameStatusFinished:
		// No clock runs in these phases.
	case models.GameStatusInProgress:
		forceHide = e.hidingTimer.Tick()
	case models.GameStatusChickenHidden:
		if e.huntTimer.Tick() {
			log.Info().Str("game_id", e.gameID.String()).Msg("hunt clock expired")
		}
	}
	e.mu.Unlock()

	if forceHide {
		// The hidden party ran out of time picking a spot; hide them
		// where they stand so the game cannot deadlock.
		log.Warn().Str("game_id", e.gameID.String()).Msg("hiding clock expired, forcing hide")
		if err := e.Hide(ctx); err != nil {
			log.Error().Err(err).Msg("forced hide failed")
		}
	}
	e.notify()
}

// onPoll is the poll reconciler tick. It skips entirely inside the grace
// window after a local mutation so an in-flight edit is never visibly
// reverted by a read that predates its remote effect.
func (e *Engine) onPoll(ctx context.Context) {
	e.mu.Lock()
	if e.withinGraceLocked() {
		e.mu.Unlock()
		log.Debug().Msg("poll skipped inside grace window")
		return
	}
	gameID := e.gameID
	e.mu.Unlock()

	status, err := e.backend.FetchGameStatus(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Msg("status poll failed")
		return
	}

	e.mu.Lock()
	// A mutation may have landed while the fetch was in flight.
	if e.withinGraceLocked() {
		e.mu.Unlock()
		return
	}
	if status == e.snap.Game.Status {
		e.mu.Unlock()
		return
	}
	log.Info().
		Str("local", string(e.snap.Game.Status)).
		Str("remote", string(status)).
		Msg("poll observed status change")
	e.snap.Game.Status = status
	e.syncTimersLocked()
	e.mu.Unlock()

	// The narrow poll only carries status; fetch the rest.
	e.onFeedEvent(TopicGameUpdated)
	e.notify()
}

func (e *Engine) withinGraceLocked() bool {
	return !e.lastLocalUpdate.IsZero() &&
		e.clock.Now().Sub(e.lastLocalUpdate) < e.cfg.GraceWindow
}

// Refetch reloads everything from the backend and replaces the snapshot
// wholesale. It is the reconcile step: the one writer allowed to overwrite
// optimistic values, because what it writes is authoritative.
func (e *Engine) Refetch(ctx context.Context) error {
	e.mu.Lock()
	gameID := e.gameID
	existing := append([]models.Message(nil), e.snap.Messages...)
	e.mu.Unlock()

	rel, err := e.backend.FetchGameSnapshot(ctx, gameID)
	if err != nil {
		e.failLoad("fetch game snapshot", err)
		return &RemoteUnavailableError{Op: "fetch game snapshot", Err: err}
	}
	challenges, err := e.backend.FetchChallenges(ctx)
	if err != nil {
		e.failLoad("fetch challenges", err)
		return &RemoteUnavailableError{Op: "fetch challenges", Err: err}
	}
	submissions, err := e.backend.FetchSubmissions(ctx, gameID)
	if err != nil {
		e.failLoad("fetch submissions", err)
		return &RemoteUnavailableError{Op: "fetch submissions", Err: err}
	}
	messages, err := e.backend.FetchMessages(ctx, gameID)
	if err != nil {
		e.failLoad("fetch messages", err)
		return &RemoteUnavailableError{Op: "fetch messages", Err: err}
	}

	e.mu.Lock()
	e.snap = Snapshot{
		Game:        rel.Game,
		Teams:       rel.Teams,
		Challenges:  challenges,
		Submissions: submissions,
		Messages:    mergeMessages(existing, messages),
		Bars:        rel.Bars,
		RemovedBars: rel.RemovedBars,
		PotLog:      rel.PotLog,
	}
	e.loading = false
	e.lastErr = nil
	e.degraded = false
	e.syncTimersLocked()
	e.mu.Unlock()
	e.notify()
	return nil
}

// failLoad records a read failure. Timers halt rather than run against
// stale data; the consumer sees the error state.
func (e *Engine) failLoad(op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("snapshot load failed")
	e.mu.Lock()
	e.lastErr = &RemoteUnavailableError{Op: op, Err: err}
	e.loading = false
	e.hidingTimer.Stop()
	e.huntTimer.Stop()
	e.mu.Unlock()
	e.notify()
}

// syncTimersLocked starts and stops the phase clocks to match the current
// status. Countdown.Start is idempotent, so calling this on every
// reconcile is safe.
func (e *Engine) syncTimersLocked() {
	switch e.snap.Game.Status {
	case models.GameStatusLobby:
		e.hidingTimer.Stop()
		e.huntTimer.Stop()
	case models.GameStatusInProgress:
		e.huntTimer.Stop()
		e.hidingTimer.Start()
	case models.GameStatusChickenHidden:
		e.hidingTimer.Stop()
		e.huntTimer.Start()
	case models.GameStatusFinished:
		e.hidingTimer.Stop()
		e.huntTimer.Stop()
	}
}

// markLocalMutationLocked stamps the grace window after an optimistic apply.
func (e *Engine) markLocalMutationLocked() {
	e.lastLocalUpdate = e.clock.Now()
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// State returns a copy of the current snapshot.
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone()
}

// Loading reports whether the initial load is still in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Err returns the current read-failure state, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Degraded reports whether the engine is running on a local-only hide
// transition that the remote side has not confirmed.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// HidingClock and HuntClock expose the display strings for the two clocks.
func (e *Engine) HidingClock() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hidingTimer.Clock()
}

func (e *Engine) HuntClock() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.huntTimer.Clock()
}

// Updates signals (coalescing) whenever the snapshot may have changed.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}
