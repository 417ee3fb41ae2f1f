package gateway

import (
	"time"

	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/mleroy14/chickenhunt/internal/models"
)

// StateEvent is the payload pushed to every client of a game whenever the
// engine's snapshot changes. Clients render from this alone.
type StateEvent struct {
	Type        string                  `json:"type"`
	Timestamp   time.Time               `json:"timestamp"`
	Game        models.Game             `json:"game"`
	Teams       []models.Team           `json:"teams"`
	Challenges  []models.Challenge      `json:"challenges"`
	Submissions []models.Submission     `json:"submissions"`
	Messages    []models.Message        `json:"messages"`
	Bars        []models.Bar            `json:"bars"`
	RemovedBars []models.Bar            `json:"removedBars"`
	PotLog      []models.PotTransaction `json:"potLog"`
	HidingClock string                  `json:"hidingClock"`
	HuntClock   string                  `json:"huntClock"`
	Loading     bool                    `json:"loading"`
	Degraded    bool                    `json:"degraded"`
	Error       string                  `json:"error,omitempty"`
}

// buildStateEvent assembles the client payload from one engine read.
func buildStateEvent(e *gamesync.Engine) StateEvent {
	snap := e.State()
	ev := StateEvent{
		Type:        "state",
		Timestamp:   time.Now().UTC(),
		Game:        snap.Game,
		Teams:       snap.Teams,
		Challenges:  snap.Challenges,
		Submissions: snap.Submissions,
		Messages:    snap.Messages,
		Bars:        snap.Bars,
		RemovedBars: snap.RemovedBars,
		PotLog:      snap.PotLog,
		HidingClock: e.HidingClock(),
		HuntClock:   e.HuntClock(),
		Loading:     e.Loading(),
		Degraded:    e.Degraded(),
	}
	if err := e.Err(); err != nil {
		ev.Error = err.Error()
	}
	return ev
}
