// Package buffering decides when a streaming playback session must pause to
// wait for downloaded pieces and when it may resume.
//
// The decision functions are pure: they read a piece availability snapshot
// and a playback state and never mutate either. Callers own the state and
// must serialize updates to it.
package buffering

import (
	"errors"
	"fmt"

	"popcorn/internal/media"
)

// DefaultFraction is the minimum buffer used for trailers and other media.
const DefaultFraction = 0.03

var (
	ErrNoPieces        = errors.New("snapshot has no pieces")
	ErrPieceRange      = errors.New("available piece run out of range")
	ErrUnknownDuration = errors.New("media duration unknown")
	ErrPositionRange   = errors.New("playback position out of range")
)

// Policy holds the configured minimum buffer fractions.
type Policy struct {
	MovieFraction float64
	ShowFraction  float64
}

// NewPolicy builds a Policy from percentages (e.g. 3 for 3%).
func NewPolicy(moviePercent, showPercent float64) Policy {
	return Policy{
		MovieFraction: moviePercent / 100,
		ShowFraction:  showPercent / 100,
	}
}

// MinBufferFraction returns how far, as a fraction of the stream, the
// downloaded run must lead the playback head for the given media type.
func (p Policy) MinBufferFraction(t media.MediaType) float64 {
	switch t {
	case media.Movie:
		return p.MovieFraction
	case media.Show:
		return p.ShowFraction
	default:
		return DefaultFraction
	}
}

// Evaluator applies a Policy to availability snapshots.
type Evaluator struct {
	Policy Policy
}

// New returns an Evaluator for the policy.
func New(p Policy) Evaluator {
	return Evaluator{Policy: p}
}

// Validate checks the preconditions of ShouldPauseForBuffering and
// ShouldResumeFromBuffering. The decision functions assume it passed.
func Validate(snap media.PieceAvailability, state media.PlaybackState) error {
	if snap.TotalPieces <= 0 {
		return ErrNoPieces
	}
	if !snap.Valid() {
		return fmt.Errorf("%w: start=%d end=%d total=%d", ErrPieceRange,
			snap.StartAvailablePiece, snap.EndAvailablePiece, snap.TotalPieces)
	}
	if !state.DurationKnown() {
		return ErrUnknownDuration
	}
	if state.PositionSeconds < 0 || state.PositionSeconds > state.TotalDurationSeconds {
		return fmt.Errorf("%w: %.2fs of %.2fs", ErrPositionRange,
			state.PositionSeconds, state.TotalDurationSeconds)
	}
	return nil
}

// ShouldPauseForBuffering reports whether playback at state.PositionSeconds
// would run into pieces that are not downloaded yet.
func (e Evaluator) ShouldPauseForBuffering(snap media.PieceAvailability, state media.PlaybackState) bool {
	minBuffer := e.Policy.MinBufferFraction(state.Type)
	play := state.PlayFraction()
	startFrac := snap.StartFraction()
	endFrac := snap.EndFraction()

	var aheadShort bool
	if 1-play <= minBuffer {
		aheadShort = endFrac < 1
	} else {
		aheadShort = play+minBuffer > endFrac
	}

	return play < startFrac || aheadShort
}

// ShouldResumeFromBuffering reports whether the downloaded run now leads the
// playback head far enough to leave a buffering pause. It asks for more
// margin than ShouldPauseForBuffering so the two do not oscillate.
func (e Evaluator) ShouldResumeFromBuffering(snap media.PieceAvailability, state media.PlaybackState) bool {
	minBuffer := e.Policy.MinBufferFraction(state.Type)
	play := state.PlayFraction()
	startFrac := snap.StartFraction()
	endFrac := snap.EndFraction()

	var bufferedAhead bool
	if 1-endFrac <= minBuffer {
		bufferedAhead = endFrac == 1
	} else {
		bufferedAhead = play+minBuffer < endFrac
	}

	return play > startFrac && bufferedAhead
}

// Decision is the action a caller should take after Step.
type Decision int

const (
	Hold Decision = iota
	Pause
	Resume
)

func (d Decision) String() string {
	switch d {
	case Hold:
		return "hold"
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	default:
		return "unknown"
	}
}

// Step runs the check that applies to the state's buffering flag and returns
// the next state. A buffering-paused state is only ever resumed; a playing
// state is only ever paused.
func (e Evaluator) Step(snap media.PieceAvailability, state media.PlaybackState) (media.PlaybackState, Decision) {
	if state.IsPausedForBuffering {
		if e.ShouldResumeFromBuffering(snap, state) {
			state.IsPausedForBuffering = false
			return state, Resume
		}
		return state, Hold
	}
	if e.ShouldPauseForBuffering(snap, state) {
		state.IsPausedForBuffering = true
		return state, Pause
	}
	return state, Hold
}
