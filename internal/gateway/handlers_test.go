package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/mleroy14/chickenhunt/internal/models"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &gamesync.ValidationError{Field: "amount", Reason: "must be positive"}, http.StatusBadRequest},
		{"not found", &gamesync.NotFoundError{Entity: "bar", ID: "x"}, http.StatusNotFound},
		{"precondition", &gamesync.PreconditionError{Reason: "already decided"}, http.StatusConflict},
		{"transition", &gamesync.InvalidTransitionError{From: models.GameStatusLobby, To: models.GameStatusFinished}, http.StatusConflict},
		{"unavailable", &gamesync.RemoteUnavailableError{Op: "hide", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestWriteErrorWrappedErrors(t *testing.T) {
	wrapped := &gamesync.RemoteUnavailableError{
		Op:  "finish game",
		Err: errors.New("connection refused"),
	}
	rec := httptest.NewRecorder()
	writeError(rec, wrapped)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
