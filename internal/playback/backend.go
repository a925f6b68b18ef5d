package playback

// Outcome is the result of one dispatch through the backend chain.
type Outcome int

const (
	// Started: a backend accepted the track and playback began.
	Started Outcome = iota
	// BackendUnavailable: no backend's prerequisite was met; nothing was
	// attempted.
	BackendUnavailable
	// PlaybackFailed: at least one backend attempted the track and every
	// attempt failed.
	PlaybackFailed
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case BackendUnavailable:
		return "backend_unavailable"
	case PlaybackFailed:
		return "playback_failed"
	default:
		return "unknown"
	}
}

// Backend is one concrete way of producing audio output.
//
// Available and Ready are re-evaluated on every call: a backend that failed
// or went missing earlier is probed again, never marked unavailable for good.
type Backend interface {
	Name() string
	// Available reports whether the backend's prerequisite is met right now
	// (library initializable, executable on PATH).
	Available() bool
	// Ready additionally checks the backend can handle this file's format.
	Ready(path string) bool
	// Start begins playback and returns once it is underway. It must not
	// block for the duration of the clip.
	Start(path string) error
}
