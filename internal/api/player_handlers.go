package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/player"
)

func (s *Server) playerFor(r *http.Request) *player.Player {
	return s.Players.Get(r.Context(), learnerFromContext(r.Context()).ID)
}

// respond writes the player's snapshot, or the error when the action failed.
func respond(w http.ResponseWriter, r *http.Request, p *player.Player, err error) {
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p.Snapshot())
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	respond(w, r, p, nil)
}

type enterRequest struct {
	Hour  *int `json:"hour"`
	Index int  `json:"index"`
}

func (s *Server) handlePlayerEnter(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if req.Hour == nil {
		handleError(w, r, errors.NewValidationError("hour", "is required"))
		return
	}
	p := s.playerFor(r)
	respond(w, r, p, p.Enter(r.Context(), *req.Hour, req.Index))
}

func (s *Server) handlePlayerResume(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	respond(w, r, p, p.Resume(r.Context()))
}

func (s *Server) handlePlayerNext(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	respond(w, r, p, p.Next(r.Context()))
}

func (s *Server) handlePlayerPrev(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	respond(w, r, p, p.Prev(r.Context()))
}

type audioDurationRequest struct {
	Seconds float64 `json:"seconds"`
}

// handleAudioDuration always answers with the snapshot; durations the player cannot use
// are ignored rather than rejected.
func (s *Server) handleAudioDuration(w http.ResponseWriter, r *http.Request) {
	var req audioDurationRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	p := s.playerFor(r)
	p.ReportAudioDuration(r.Context(), req.Seconds)
	respond(w, r, p, nil)
}

func (s *Server) handleMarkTab(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	respond(w, r, p, p.MarkTab(r.Context(), chi.URLParam(r, "tab")))
}

func (s *Server) handleCompleteBlock(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	respond(w, r, p, p.CompleteBlock(r.Context()))
}

func (s *Server) handleToggleAutoAdvance(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	p.ToggleAutoAdvance(r.Context())
	respond(w, r, p, nil)
}

func (s *Server) handleToggleDevMode(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	_, err := p.ToggleDevMode(r.Context())
	respond(w, r, p, err)
}

// handleHeartbeat lets a shell without an event stream report that the learner is still
// there.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.playerFor(r)
	w.WriteHeader(http.StatusNoContent)
}

// handlePlayerEvents streams snapshots. The learner counts as present while it is open.
func (s *Server) handlePlayerEvents(w http.ResponseWriter, r *http.Request) {
	p := s.playerFor(r)
	release := p.Watch(r.Context())
	defer release()
	s.Hub.Serve(w, r, p.LearnerID(), p.Snapshot())
}
