package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
)

type studentRequest struct {
	Name    string `json:"name"`
	License string `json:"license"`
	Email   string `json:"email"`
}

func (req studentRequest) info() models.StudentInfo {
	return models.StudentInfo{Name: req.Name, License: req.License, Email: req.Email}
}

func studentOf(l *models.Learner) models.StudentInfo {
	return models.StudentInfo{Name: l.Name, License: l.License, Email: l.Email}
}

func (s *Server) handleListLearners(w http.ResponseWriter, r *http.Request) {
	learners, err := s.Learners.ListLearners(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	current := ""
	if c, err := r.Cookie(learnerCookieName); err == nil {
		current = c.Value
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"learners": learners,
		"current":  current,
	})
}

func (s *Server) handleCreateLearner(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	learner, err := s.Learners.CreateLearner(r.Context(), req.info())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Players.Progress(learner.ID).SetStudentInfo(r.Context(), studentOf(learner)); err != nil {
		log.Error("learner %s created but student info not recorded on ledger: %v", learner.ID, err)
		handleError(w, r, err)
		return
	}

	s.setLearnerCookie(w, learner.ID)
	writeJSON(w, r, http.StatusCreated, learner)
}

func (s *Server) handleSelectLearner(w http.ResponseWriter, r *http.Request) {
	learner, err := s.Learners.GetLearner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	s.setLearnerCookie(w, learner.ID)
	writeJSON(w, r, http.StatusOK, learner)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	learner := learnerFromContext(r.Context())
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Learners.UpdateStudent(r.Context(), learner.ID, req.info()); err != nil {
		handleError(w, r, err)
		return
	}
	updated, err := s.Learners.GetLearner(r.Context(), learner.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Players.Progress(learner.ID).SetStudentInfo(r.Context(), studentOf(updated)); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}
