package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"belltower/internal/bell"
	"belltower/internal/playback"
	"belltower/internal/store"
)

func main() {
	var (
		dbPath        = flag.String("db", "belltower.db", "SQLite DB path")
		poll          = flag.Duration("poll", time.Second, "polling cadence")
		window        = flag.Duration("match-window", time.Second, "how long past its scheduled second a bell may still ring")
		strict        = flag.Bool("strict", false, "exit nonzero if no audio backend is usable at startup")
		skipPreflight = flag.Bool("skip-preflight", false, "skip the startup audio backend probe")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if *poll > *window {
		log.Warn().Dur("poll", *poll).Dur("window", *window).
			Msg("poll interval exceeds match window, bells may be skipped")
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", *dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	repo := store.NewSQLiteRepo(db)

	chain := playback.DefaultChain(log.Logger)
	if *skipPreflight {
		log.Warn().Msg("audio backend preflight skipped")
	} else if usable := playback.Probe(log.Logger, chain); usable == 0 && *strict {
		log.Fatal().Msg("no usable audio backend and strict mode requested")
	}

	tracker := bell.NewTracker(repo, log.Logger)
	loop := bell.NewLoop(repo, tracker, chain, bell.Config{
		Interval: *poll,
		Window:   *window,
		Logger:   log.Logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	err = loop.Run(ctx)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	chain.Stop()
	if err != nil {
		log.Error().Err(err).Msg("bell loop failed")
		os.Exit(1)
	}
}
