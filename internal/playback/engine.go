// Package playback runs a streaming playback session: it owns the playback
// state, feeds it through the buffering evaluator and drives the player
// engine accordingly.
package playback

// Engine is the media player being driven. Implementations must be safe to
// call from the session goroutine while their event goroutine runs.
type Engine interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(percent int) error
	SetSubtitleDelay(seconds float64) error

	// Events is closed when the engine goes away.
	Events() <-chan Event

	Close() error
}

// EventKind identifies an engine event.
type EventKind int

const (
	// EventPosition carries the playback head in Seconds.
	EventPosition EventKind = iota
	// EventDuration carries the media duration in Seconds once metadata loads.
	EventDuration
	// EventEnded reports end of file.
	EventEnded
	// EventExited reports the player process is gone; Err is set if it failed.
	EventExited
)

func (k EventKind) String() string {
	switch k {
	case EventPosition:
		return "position"
	case EventDuration:
		return "duration"
	case EventEnded:
		return "ended"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event is a notification from the engine.
type Event struct {
	Kind    EventKind
	Seconds float64
	Err     error
}
