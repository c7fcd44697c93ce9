package app

import (
	"context"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/rs/zerolog/log"
)

// Heartbeat probes every tracked session once per interval. A session that
// did not acknowledge the previous probe is reaped, so a dead peer is
// detected within two intervals.
type Heartbeat struct {
	interval time.Duration
	sessions *Registry
	reap     func(*core.Session)
	onTick   func()
}

func NewHeartbeat(interval time.Duration, sessions *Registry, reap func(*core.Session)) *Heartbeat {
	return &Heartbeat{interval: interval, sessions: sessions, reap: reap}
}

// Run ticks until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Tick()
			if h.onTick != nil {
				h.onTick()
			}
		}
	}
}

// Tick runs one probe round and returns how many sessions were probed and
// how many were reaped.
func (h *Heartbeat) Tick() (probed, reaped int) {
	for _, s := range h.sessions.Snapshot() {
		if !s.Probe() {
			log.Info().Str("module", "app.heartbeat").Str("sid", string(s.ID())).Msg("no pong, reaping session")
			h.reap(s)
			reaped++
			continue
		}
		if err := s.Ping(); err != nil {
			log.Debug().Err(err).Str("module", "app.heartbeat").Str("sid", string(s.ID())).Msg("ping failed")
		}
		probed++
	}
	return probed, reaped
}
