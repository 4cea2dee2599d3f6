package api

import (
	"context"
	"time"

	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/player"
	"github.com/vytor/ceplayer/internal/services"
	"github.com/vytor/ceplayer/internal/sse"
)

// ReadyCheck is one dependency probed by /ready.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	Learners    services.LearnerService
	Players     *player.Registry
	Source      *content.Source
	Hub         *sse.Hub
	ContentDir  string
	ReadyChecks []ReadyCheck
	// RequestTimeout bounds every JSON endpoint; the event stream is exempt.
	RequestTimeout time.Duration
	// SecureCookies marks the learner cookie Secure when served over HTTPS.
	SecureCookies bool
}
