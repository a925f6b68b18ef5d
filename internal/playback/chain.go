package playback

import (
	"github.com/rs/zerolog"

	"belltower/internal/domain"
)

// Chain tries backends in priority order with per-backend failure isolation.
// First success wins; lower-priority backends are never started redundantly.
type Chain struct {
	backends []Backend
	log      zerolog.Logger
}

func NewChain(log zerolog.Logger, backends ...Backend) *Chain {
	return &Chain{backends: backends, log: log}
}

// DefaultChain is the embedded mixer followed by the platform's external
// players.
func DefaultChain(log zerolog.Logger) *Chain {
	backends := append([]Backend{NewMixer()}, DefaultPlayers()...)
	return NewChain(log, backends...)
}

func (c *Chain) Backends() []Backend { return c.backends }

// Play dispatches the track to the first backend that can take it. Never
// panics and never blocks for the clip duration; an exhausted chain is a
// logged missed bell, not a crash.
func (c *Chain) Play(track domain.Track) Outcome {
	attempted := false
	for _, b := range c.backends {
		if !b.Ready(track.Path) {
			c.log.Debug().Str("backend", b.Name()).Str("track", track.Path).
				Msg("backend not ready, skipping")
			continue
		}
		attempted = true
		if err := b.Start(track.Path); err != nil {
			c.log.Warn().Err(err).Str("backend", b.Name()).Str("track", track.Path).
				Msg("backend failed to start")
			continue
		}
		c.log.Info().Str("backend", b.Name()).Str("track", track.Path).
			Msg("playback started")
		return Started
	}
	if !attempted {
		return BackendUnavailable
	}
	return PlaybackFailed
}

// Stop silences backends that are still rendering, for graceful shutdown.
func (c *Chain) Stop() {
	for _, b := range c.backends {
		if s, ok := b.(interface{ Stop() }); ok {
			s.Stop()
		}
	}
}
