package server

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sweep deletes sessions older than the retention window on every tick,
// whether or not either party is still connected. A party still online past
// the window gets "Session not found" on its next message and restarts.
// Runs until the context is cancelled; a bad tick never stops the next one.
func (s *Server) Sweep(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(retention)
		}
	}
}

func (s *Server) sweepOnce(retention time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("session sweep failed")
		}
	}()

	if n := s.Sessions.PurgeOlderThan(retention, s.Sessions.Now()); n > 0 {
		sessionsPurged.Add(float64(n))
		log.WithField("purged", n).Info("purged expired sessions")
	}
	sessionsActive.Set(float64(s.Sessions.Len()))
}
