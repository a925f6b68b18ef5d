package playback

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// PlayerBackend spawns an external audio player as a detached process.
// The loop never waits on playback completion; the process is only reaped.
type PlayerBackend struct {
	bin    string
	args   []string
	exts   []string // empty = any format the player claims
	settle time.Duration
}

func NewPlayerBackend(bin string, args []string, exts ...string) *PlayerBackend {
	return &PlayerBackend{bin: bin, args: args, exts: exts, settle: 200 * time.Millisecond}
}

func (p *PlayerBackend) Name() string { return p.bin }

func (p *PlayerBackend) Available() bool {
	_, err := exec.LookPath(p.bin)
	return err == nil
}

func (p *PlayerBackend) Ready(path string) bool {
	if len(p.exts) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		match := false
		for _, e := range p.exts {
			if e == ext {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return p.Available()
}

// Start launches the player and returns once it survives a short settle
// window. An immediate nonzero exit counts as a start failure so the chain
// can fall through to the next backend.
func (p *PlayerBackend) Start(path string) error {
	args := append(append([]string(nil), p.args...), path)
	cmd := exec.Command(p.bin, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s exited immediately: %w", p.bin, err)
		}
		return nil
	case <-time.After(p.settle):
		return nil
	}
}

// DefaultPlayers is the platform's external player ladder, most specific
// player first.
func DefaultPlayers() []Backend {
	if runtime.GOOS == "darwin" {
		return []Backend{NewPlayerBackend("afplay", nil)}
	}
	return []Backend{
		NewPlayerBackend("aplay", nil, ".wav"),
		NewPlayerBackend("mpg123", []string{"-q"}, ".mp3"),
		NewPlayerBackend("ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}),
		NewPlayerBackend("cvlc", []string{"--play-and-exit", "--no-video"}),
	}
}
