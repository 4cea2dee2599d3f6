package api

import (
	"net/http"

	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
)

type courseHour struct {
	content.Hour
	Summary models.HourSummary `json:"summary"`
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	learner := learnerFromContext(r.Context())
	summaries, err := s.Players.Progress(learner.ID).HourSummaries(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}

	outline := s.Source.Outline()
	hours := make([]courseHour, 0, len(outline.Hours))
	for i, h := range outline.Hours {
		ch := courseHour{Hour: h}
		if i < len(summaries) {
			ch.Summary = summaries[i]
		}
		hours = append(hours, ch)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"title":   outline.Title,
		"learner": learner,
		"hours":   hours,
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	learner := learnerFromContext(r.Context())
	hour, err := s.Players.Progress(learner.ID).ResumeHour(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"hour": hour})
}

func (s *Server) handleHour(w http.ResponseWriter, r *http.Request) {
	learner := learnerFromContext(r.Context())
	hour, err := hourParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	progress := s.Players.Progress(learner.ID)
	ctx := r.Context()

	formatted, err := progress.FormattedTimeForHour(ctx, hour)
	if err != nil {
		handleError(w, r, err)
		return
	}
	remaining, err := progress.RemainingTimeForHour(ctx, hour)
	if err != nil {
		handleError(w, r, err)
		return
	}
	complete, err := progress.IsHourComplete(ctx, hour)
	if err != nil {
		handleError(w, r, err)
		return
	}
	live, err := progress.LiveSecondsForHour(ctx, hour)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"hour":              hour,
		"formatted_time":    formatted,
		"remaining_seconds": remaining,
		"time_complete":     complete,
		"live_seconds":      live,
	})
}

// handleCompleteHour reports a refused completion as 409 so the shell can tell the
// learner how much time is still required.
func (s *Server) handleCompleteHour(w http.ResponseWriter, r *http.Request) {
	learner := learnerFromContext(r.Context())
	hour, err := hourParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	progress := s.Players.Progress(learner.ID)

	completed, err := progress.CompleteHour(r.Context(), hour)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !completed {
		remaining, err := progress.RemainingTimeForHour(r.Context(), hour)
		if err != nil {
			handleError(w, r, err)
			return
		}
		body := errorBody(errors.FromDomain(errors.ErrHourIncomplete))
		body["completed"] = false
		body["remaining_seconds"] = remaining
		writeJSON(w, r, http.StatusConflict, body)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"completed": true, "hour": hour})
}

// handleResetProgress closes the learner's player first so no open session is written
// back over the cleared ledger.
func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	learner := learnerFromContext(r.Context())
	log := logger.FromContext(r.Context())

	if err := s.Players.Remove(r.Context(), learner.ID); err != nil {
		log.Warn("failed to close player before reset: %v", err)
	}
	if err := s.Players.Progress(learner.ID).Reset(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"reset": true})
}
