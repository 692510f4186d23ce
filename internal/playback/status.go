package playback

import (
	"fmt"
	"time"

	"popcorn/internal/media"
)

// State is the user-visible playback state.
type State int

const (
	StatePaused State = iota
	StatePlaying
	StateBuffering
	StateEnded
)

func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Status is a read-only view of a session for display.
type Status struct {
	Title         string
	Type          media.MediaType
	State         State
	Position      float64
	Duration      float64
	Availability  *media.PieceAvailability // nil before the first snapshot
	Volume        int                      // percent
	SubtitleDelay time.Duration
	Subtitle      string // active cue text, empty when none
}

// Progress returns the playback head as a fraction in [0, 1].
func (st Status) Progress() float64 {
	if st.Duration <= 0 {
		return 0
	}
	return clamp(st.Position/st.Duration, 0, 1)
}

func (s *Session) status() Status {
	st := Status{
		Title:         s.title,
		Type:          s.state.Type,
		Position:      s.state.PositionSeconds,
		Duration:      s.state.TotalDurationSeconds,
		Volume:        s.volumePercent(),
		SubtitleDelay: s.subDelay,
	}

	switch {
	case s.ended:
		st.State = StateEnded
	case s.state.IsPausedForBuffering:
		st.State = StateBuffering
	case s.playing:
		st.State = StatePlaying
	default:
		st.State = StatePaused
	}

	if s.haveSnap {
		snap := s.snap
		st.Availability = &snap
	}

	pos := time.Duration(s.state.PositionSeconds * float64(time.Second))
	if cue, ok := s.subs.ActiveAt(pos, s.subDelay); ok {
		st.Subtitle = cue.Text()
	}
	return st
}

// FormatClock formats seconds as H:MM:SS or M:SS.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
