package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/mleroy14/chickenhunt/internal/models"
	"github.com/rs/zerolog/log"
)

// Handler exposes the game operations over HTTP and the live state over
// WebSocket. Every mutation goes through the game's shared engine so all
// connected clients see the same snapshot.
type Handler struct {
	sessions *SessionManager
	cm       *ConnectionManager
}

func NewHandler(sessions *SessionManager, cm *ConnectionManager) *Handler {
	return &Handler{sessions: sessions, cm: cm}
}

// RegisterRoutes registers every gateway route on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/game", h.handleGameConnection)
	mux.HandleFunc("GET /ws/stats", h.handleConnectionStats)

	mux.HandleFunc("GET /games/{id}/state", h.handleState)
	mux.HandleFunc("POST /games/{id}/start", h.handleStart)
	mux.HandleFunc("POST /games/{id}/hide", h.handleHide)
	mux.HandleFunc("POST /games/{id}/finish", h.handleFinish)
	mux.HandleFunc("POST /games/{id}/teams/{teamID}/found", h.handleTeamFound)
	mux.HandleFunc("POST /games/{id}/bar", h.handleChangeBar)
	mux.HandleFunc("POST /games/{id}/bars/{barID}/remove", h.handleRemoveBar)
	mux.HandleFunc("POST /games/{id}/clue", h.handleClue)
	mux.HandleFunc("POST /games/{id}/message", h.handleMessage)
	mux.HandleFunc("POST /games/{id}/pot", h.handlePot)
	mux.HandleFunc("POST /games/{id}/pot/preset", h.handlePotPreset)
	mux.HandleFunc("POST /games/{id}/submissions/{submissionID}/validate", h.handleValidate)
	mux.HandleFunc("POST /games/{id}/challenges/{challengeID}/toggle", h.handleToggleChallenge)
}

// handleGameConnection upgrades a client to WebSocket and sends the
// current state immediately so the client never renders empty.
func (h *Handler) handleGameConnection(w http.ResponseWriter, r *http.Request) {
	gameIDStr := r.URL.Query().Get("game_id")
	if gameIDStr == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}
	gameID, err := uuid.Parse(gameIDStr)
	if err != nil {
		http.Error(w, "invalid game_id format", http.StatusBadRequest)
		return
	}

	engine, err := h.sessions.Acquire(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.cm.UpgradeConnection(w, r, gameID)
	if err != nil {
		return
	}

	data, err := json.Marshal(buildStateEvent(engine))
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal initial state")
		return
	}
	select {
	case conn.Send <- data:
	default:
	}
}

func (h *Handler) handleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cm.GetConnectionStats())
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, buildStateEvent(engine))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.StartGame(r.Context())
	})
}

func (h *Handler) handleHide(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.Hide(r.Context())
	})
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.FinishGame(r.Context())
	})
}

func (h *Handler) handleTeamFound(w http.ResponseWriter, r *http.Request) {
	teamID, err := uuid.Parse(r.PathValue("teamID"))
	if err != nil {
		http.Error(w, "invalid team id", http.StatusBadRequest)
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.MarkTeamFound(r.Context(), teamID)
	})
}

func (h *Handler) handleChangeBar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BarID uuid.UUID `json:"barId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.ChangeBar(r.Context(), body.BarID)
	})
}

func (h *Handler) handleRemoveBar(w http.ResponseWriter, r *http.Request) {
	barID, err := uuid.Parse(r.PathValue("barID"))
	if err != nil {
		http.Error(w, "invalid bar id", http.StatusBadRequest)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.RemoveBar(r.Context(), barID, body.Reason)
	})
}

func (h *Handler) handleClue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.SendClue(r.Context(), body.Text)
	})
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.SendMessage(r.Context(), body.Text)
	})
}

func (h *Handler) handlePot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Operation models.PotOperation `json:"operation"`
		Amount    int                 `json:"amount"`
		Reason    string              `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.UpdatePot(r.Context(), body.Operation, body.Amount, body.Reason)
	})
}

func (h *Handler) handlePotPreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preset string `json:"preset"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.ApplyPotPreset(r.Context(), body.Preset)
	})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	submissionID, err := uuid.Parse(r.PathValue("submissionID"))
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}
	var body struct {
		Approve bool `json:"approve"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.ValidateChallenge(r.Context(), submissionID, body.Approve)
	})
}

func (h *Handler) handleToggleChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID, err := uuid.Parse(r.PathValue("challengeID"))
	if err != nil {
		http.Error(w, "invalid challenge id", http.StatusBadRequest)
		return
	}
	h.mutate(w, r, func(e *gamesync.Engine) error {
		return e.ToggleChallengeActive(r.Context(), challengeID)
	})
}

// engine resolves the game's engine from the path, starting a session if
// none is running yet.
func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*gamesync.Engine, bool) {
	gameID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return nil, false
	}
	engine, err := h.sessions.Acquire(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return engine, true
}

// mutate runs one engine operation and replies with the resulting state.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(*gamesync.Engine) error) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := op(engine); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildStateEvent(engine))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validation *gamesync.ValidationError
	var notFound *gamesync.NotFoundError
	var precondition *gamesync.PreconditionError
	var transition *gamesync.InvalidTransitionError
	var unavailable *gamesync.RemoteUnavailableError

	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &precondition), errors.As(err, &transition):
		status = http.StatusConflict
	case errors.As(err, &unavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
