package playback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// deviceRate is the fixed output sample rate. Every track is resampled to it
// so the device never needs reinitializing between formats.
const deviceRate = beep.SampleRate(44100)

// Mixer plays tracks through the embedded beep speaker. Preferred backend:
// no subprocess spawn, lowest latency. Initialization is lazy and a failed
// init is retried on the next call rather than cached.
type Mixer struct {
	mu     sync.Mutex
	inited bool
}

func NewMixer() *Mixer { return &Mixer{} }

func (m *Mixer) Name() string { return "mixer" }

func (m *Mixer) ensureInit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inited {
		return nil
	}
	if err := speaker.Init(deviceRate, deviceRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	m.inited = true
	return nil
}

func (m *Mixer) Available() bool { return m.ensureInit() == nil }

func (m *Mixer) Ready(path string) bool {
	return decoderFor(path) != nil && m.Available()
}

// Start queues the track on the speaker. speaker.Play returns immediately;
// rendering happens on the speaker's own goroutine.
func (m *Mixer) Start(path string) error {
	decode := decoderFor(path)
	if decode == nil {
		return fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	streamer, format, err := decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	var out beep.Streamer = streamer
	if format.SampleRate != deviceRate {
		out = beep.Resample(4, format.SampleRate, deviceRate, streamer)
	}
	speaker.Play(beep.Seq(out, beep.Callback(func() {
		streamer.Close()
		f.Close()
	})))
	return nil
}

// Stop silences anything still rendering.
func (m *Mixer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inited {
		speaker.Clear()
	}
}

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

func decoderFor(path string) decodeFunc {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) }
	case ".wav":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) }
	case ".ogg", ".oga":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) }
	case ".flac":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) }
	}
	return nil
}

// SupportedFormat reports whether the embedded decoders know the extension.
func SupportedFormat(path string) bool { return decoderFor(path) != nil }

// TrackDuration decodes a file header and reports the clip length in
// seconds. Best-effort: duration is informational metadata only.
func TrackDuration(path string) (float64, error) {
	decode := decoderFor(path)
	if decode == nil {
		return 0, fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	streamer, format, err := decode(f)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	n := streamer.Len()
	if n <= 0 {
		return 0, nil
	}
	return format.SampleRate.D(n).Seconds(), nil
}
