package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/learners", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		r.Get("/", s.handleListLearners)
		r.Post("/", s.handleCreateLearner)
		r.Post("/{id}/select", s.handleSelectLearner)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.learnerMiddleware)

		// SSE needs a flushable writer, which the timeout handler does not provide.
		r.Get("/player/events", s.handlePlayerEvents)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(timeout))

			r.Get("/course", s.handleCourse)
			r.Get("/resume", s.handleResume)
			r.Put("/student", s.handleUpdateStudent)
			r.Get("/hours/{hour}", s.handleHour)
			r.Post("/hours/{hour}/complete", s.handleCompleteHour)
			r.Post("/progress/reset", s.handleResetProgress)

			r.Route("/player", func(r chi.Router) {
				r.Get("/state", s.handlePlayerState)
				r.Post("/heartbeat", s.handleHeartbeat)
				r.Post("/enter", s.handlePlayerEnter)
				r.Post("/resume", s.handlePlayerResume)
				r.Post("/next", s.handlePlayerNext)
				r.Post("/prev", s.handlePlayerPrev)
				r.Post("/audio-duration", s.handleAudioDuration)
				r.Post("/tabs/{tab}", s.handleMarkTab)
				r.Post("/auto-advance", s.handleToggleAutoAdvance)
				r.Post("/dev-mode", s.handleToggleDevMode)
				r.Post("/blocks/complete", s.handleCompleteBlock)
			})
		})
	})

	if s.ContentDir != "" {
		r.Handle("/content/*", http.StripPrefix("/content/", http.FileServer(http.Dir(s.ContentDir))))
	}
	return r
}
