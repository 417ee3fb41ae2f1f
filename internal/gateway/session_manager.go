package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/rs/zerolog/log"
)

// SessionManager owns one running engine per game. All clients of a game
// share the session; its snapshot is pushed through the connection manager
// whenever the engine reports a change.
type SessionManager struct {
	backend gamesync.Backend
	feed    gamesync.Feed
	cfg     gamesync.Config
	cm      *ConnectionManager

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

type session struct {
	engine *gamesync.Engine
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSessionManager(backend gamesync.Backend, feed gamesync.Feed, cfg gamesync.Config, cm *ConnectionManager) *SessionManager {
	return &SessionManager{
		backend:  backend,
		feed:     feed,
		cfg:      cfg,
		cm:       cm,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Acquire returns the engine for a game, starting a session on first use.
func (sm *SessionManager) Acquire(ctx context.Context, gameID uuid.UUID) (*gamesync.Engine, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.sessions[gameID]; ok {
		return s.engine, nil
	}

	engine := gamesync.New(sm.backend, sm.feed, sm.cfg)
	if err := engine.Start(ctx, gameID); err != nil {
		return nil, fmt.Errorf("start game session: %w", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s := &session{engine: engine, cancel: cancel, done: make(chan struct{})}
	sm.sessions[gameID] = s

	go sm.watch(watchCtx, gameID, s)

	log.Info().Str("game_id", gameID.String()).Msg("game session started")
	return engine, nil
}

// Engine returns the running engine for a game, or nil when no session
// exists.
func (sm *SessionManager) Engine(gameID uuid.UUID) *gamesync.Engine {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[gameID]; ok {
		return s.engine
	}
	return nil
}

// watch forwards every engine update to the game's connection pool.
func (sm *SessionManager) watch(ctx context.Context, gameID uuid.UUID, s *session) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.engine.Updates():
			sm.cm.BroadcastState(gameID, buildStateEvent(s.engine))
		}
	}
}

// Release stops one game's session.
func (sm *SessionManager) Release(gameID uuid.UUID) {
	sm.mu.Lock()
	s, ok := sm.sessions[gameID]
	if ok {
		delete(sm.sessions, gameID)
	}
	sm.mu.Unlock()

	if !ok {
		return
	}
	s.cancel()
	s.engine.Stop()
	<-s.done
	log.Info().Str("game_id", gameID.String()).Msg("game session stopped")
}

// StopAll shuts down every session. Used on server shutdown.
func (sm *SessionManager) StopAll() {
	sm.mu.Lock()
	sessions := make(map[uuid.UUID]*session, len(sm.sessions))
	for id, s := range sm.sessions {
		sessions[id] = s
	}
	sm.sessions = make(map[uuid.UUID]*session)
	sm.mu.Unlock()

	for id, s := range sessions {
		s.cancel()
		s.engine.Stop()
		<-s.done
		log.Info().Str("game_id", id.String()).Msg("game session stopped")
	}
}
