package playback

import "github.com/rs/zerolog"

// Probe logs each backend's availability and returns how many are usable.
// Missing audio tools don't prevent startup; they only narrow the chain.
func Probe(log zerolog.Logger, c *Chain) int {
	usable := 0
	for _, b := range c.Backends() {
		if b.Available() {
			log.Info().Str("backend", b.Name()).Msg("audio backend available")
			usable++
		} else {
			log.Warn().Str("backend", b.Name()).Msg("audio backend unavailable")
		}
	}
	if usable == 0 {
		log.Error().Msg("no usable audio backend detected, bells will be silent")
	}
	return usable
}
