package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/tellergate/tellergate/internal/session"
)

// Sweeper expires idle sessions in the background, independent of request
// handling. It takes the same per-session lock as the orchestrator, so a
// sweep never races an in-flight execution.
type Sweeper struct {
	orch *Orchestrator
	cron *robfigcron.Cron
}

// NewSweeper creates a Sweeper over orch.
func NewSweeper(orch *Orchestrator) *Sweeper {
	return &Sweeper{orch: orch, cron: robfigcron.New()}
}

// Start arms the sweep schedule and blocks until ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", sw.orch.opts.SweepInterval)
	if _, err := sw.cron.AddFunc(spec, sw.SweepOnce); err != nil {
		return fmt.Errorf("sweeper: schedule %q: %w", spec, err)
	}

	sw.cron.Start()
	slog.Info("sweeper: started", "interval", sw.orch.opts.SweepInterval,
		"idleTimeout", sw.orch.opts.IdleTimeout)

	<-ctx.Done()
	<-sw.cron.Stop().Done()
	return ctx.Err()
}

// SweepOnce expires every ACTIVE session idle past the timeout.
func (sw *Sweeper) SweepOnce() {
	start := time.Now()
	expired := 0

	sw.orch.store.Each(func(s *session.Session) {
		s.Lock()
		defer s.Unlock()
		if s.Status != session.StatusActive || !s.IdleSince(sw.orch.opts.IdleTimeout) {
			return
		}
		sw.orch.terminate(s, session.StatusExpired)
		if err := sw.orch.store.Save(s); err != nil {
			slog.Error("sweeper: save failed", "session", s.ID, "err", err)
		}
		expired++
	})

	if expired > 0 {
		slog.Info("sweeper: pass complete", "expired", expired, "took", time.Since(start))
	}
}
