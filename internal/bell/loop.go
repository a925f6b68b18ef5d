package bell

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"belltower/internal/domain"
	"belltower/internal/playback"
)

// Storage is the read-only slice of the persistence layer the loop needs.
// All mutation happens in the admin process.
type Storage interface {
	ListActiveSchedules(ctx context.Context) ([]domain.Schedule, error)
	ListExceptionsForDate(ctx context.Context, day domain.Date) ([]domain.Exception, error)
	GetTrack(ctx context.Context, id string) (domain.Track, error)
}

// Player dispatches a track to an audio backend. Play must start playback
// without blocking for the clip duration.
type Player interface {
	Play(track domain.Track) playback.Outcome
}

type Clock func() time.Time

type Config struct {
	// Interval is the polling cadence. Must be at most Window or exact
	// matches can be skipped. Defaults to 1s.
	Interval time.Duration
	// Window is the match window passed to Resolve. Defaults to 1s
	// (second-exact matching).
	Window time.Duration
	Clock  Clock
	Logger zerolog.Logger
}

// Loop is the top-level control loop: tick once per interval, resolve due
// bells, dedup through the tracker, dispatch winners to the player.
type Loop struct {
	storage  Storage
	tracker  *Tracker
	player   Player
	interval time.Duration
	window   time.Duration
	now      Clock
	log      zerolog.Logger

	lastDay domain.Date
}

func NewLoop(storage Storage, tracker *Tracker, player Player, cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Loop{
		storage:  storage,
		tracker:  tracker,
		player:   player,
		interval: cfg.Interval,
		window:   cfg.Window,
		now:      cfg.Clock,
		log:      cfg.Logger,
	}
}

// Run blocks until ctx is canceled. Returns an error only for fatal startup
// conditions; per-tick failures are logged transients and the loop keeps
// ticking.
func (l *Loop) Run(ctx context.Context) error {
	today := domain.DateOf(l.now())
	if _, err := l.storage.ListActiveSchedules(ctx); err != nil {
		return fmt.Errorf("schedule storage unreachable: %w", err)
	}
	if err := l.tracker.Prime(ctx, today); err != nil {
		return fmt.Errorf("load today's occurrences: %w", err)
	}
	l.lastDay = today

	l.log.Info().
		Dur("interval", l.interval).
		Dur("window", l.window).
		Msg("bell loop started")

	for {
		start := l.now()
		l.tick(ctx, start)

		// Sleep for the remainder of the interval so tick processing
		// doesn't accumulate drift past an exact-second match.
		sleep := l.interval - l.now().Sub(start)
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			l.log.Info().Msg("bell loop stopped")
			return nil
		case <-time.After(sleep):
		}
	}
}

func (l *Loop) tick(ctx context.Context, now time.Time) {
	today := domain.DateOf(now)
	if today != l.lastDay {
		if n, err := l.tracker.PurgeStale(ctx, today); err != nil {
			l.log.Error().Err(err).Msg("purge stale occurrences")
		} else if n > 0 {
			l.log.Debug().Int("purged", n).Str("date", today.String()).Msg("day rollover")
		}
		l.lastDay = today
	}

	schedules, err := l.storage.ListActiveSchedules(ctx)
	if err != nil {
		l.log.Error().Err(err).Msg("list schedules")
		return
	}
	if len(schedules) == 0 {
		return
	}
	exceptions, err := l.storage.ListExceptionsForDate(ctx, today)
	if err != nil {
		l.log.Error().Err(err).Msg("list exceptions")
		return
	}

	due := Resolve(now, schedules, NewDayFilter(today, exceptions), l.window)
	for _, s := range due {
		if l.tracker.HasFired(s.ID, today) {
			continue
		}
		l.ring(ctx, s)
		// A failed playback still counts as attempted: no same-day retry,
		// so a broken track or device can't cause a failure storm.
		if err := l.tracker.MarkFired(ctx, s.ID, today, domain.TimeOfDayOf(now)); err != nil {
			l.log.Error().Err(err).Str("schedule", s.ID).Msg("persist occurrence")
		}
	}
}

func (l *Loop) ring(ctx context.Context, s domain.Schedule) {
	if s.TrackID == nil {
		l.log.Warn().Str("schedule", s.ID).Str("name", s.Name).
			Msg("bell due but no track assigned")
		return
	}
	track, err := l.storage.GetTrack(ctx, *s.TrackID)
	if err != nil {
		l.log.Error().Err(err).Str("schedule", s.ID).Str("track", *s.TrackID).
			Msg("missed bell: track lookup failed")
		return
	}

	l.log.Info().
		Str("schedule", s.ID).
		Str("name", s.Name).
		Str("at", s.At.String()).
		Str("track", track.Name).
		Msg("ringing bell")

	switch outcome := l.player.Play(track); outcome {
	case playback.Started:
	default:
		l.log.Error().
			Str("schedule", s.ID).
			Str("track", track.Path).
			Stringer("outcome", outcome).
			Msg("missed bell: playback failed")
	}
}
