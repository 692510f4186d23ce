package buffering

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popcorn/internal/media"
)

func movieState(pos float64) media.PlaybackState {
	return media.PlaybackState{Type: media.Movie, TotalDurationSeconds: 100, PositionSeconds: pos}
}

func run(start, end int) media.PieceAvailability {
	return media.PieceAvailability{TotalPieces: 100, StartAvailablePiece: start, EndAvailablePiece: end}
}

func TestMinBufferFraction(t *testing.T) {
	p := NewPolicy(3, 5)

	tests := []struct {
		typ  media.MediaType
		want float64
	}{
		{media.Movie, 0.03},
		{media.Show, 0.05},
		{media.Trailer, DefaultFraction},
		{media.Other, DefaultFraction},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, p.MinBufferFraction(tt.typ), 1e-12)
		})
	}
}

func TestFullyBufferedNeverPauses(t *testing.T) {
	snap := run(0, 100)
	for _, policy := range []Policy{NewPolicy(3, 5), NewPolicy(10, 10), NewPolicy(25, 1)} {
		e := New(policy)
		for _, typ := range []media.MediaType{media.Movie, media.Show, media.Trailer, media.Other} {
			for pos := 0; pos <= 100; pos++ {
				state := media.PlaybackState{Type: typ, TotalDurationSeconds: 100, PositionSeconds: float64(pos)}
				assert.False(t, e.ShouldPauseForBuffering(snap, state),
					"policy=%+v type=%s pos=%d", policy, typ, pos)
			}
		}
	}
}

func TestPauseWhenBufferTooShort(t *testing.T) {
	e := New(NewPolicy(10, 10))
	assert.True(t, e.ShouldPauseForBuffering(run(0, 50), movieState(45)))
}

func TestResumeWhenBufferGrows(t *testing.T) {
	e := New(NewPolicy(10, 10))
	state := movieState(45)
	state.IsPausedForBuffering = true

	assert.False(t, e.ShouldResumeFromBuffering(run(0, 50), state))
	assert.True(t, e.ShouldResumeFromBuffering(run(0, 70), state))
}

func TestPauseWhenBehindAvailableRun(t *testing.T) {
	e := New(NewPolicy(3, 5))
	// Seeked back before the first downloaded piece.
	assert.True(t, e.ShouldPauseForBuffering(run(40, 90), movieState(20)))
	assert.False(t, e.ShouldPauseForBuffering(run(40, 90), movieState(50)))
}

func TestResumeRequiresHeadInsideRun(t *testing.T) {
	e := New(NewPolicy(3, 5))
	state := movieState(40)
	state.IsPausedForBuffering = true

	assert.False(t, e.ShouldResumeFromBuffering(run(40, 90), state), "head on the run start is not inside it")
	assert.True(t, e.ShouldResumeFromBuffering(run(39, 90), state))
}

func TestFullyDownloadedNearEnd(t *testing.T) {
	snap := run(10, 100)
	for _, pct := range []float64{1, 5, 10, 50, 90} {
		t.Run(fmt.Sprintf("%.0f%%", pct), func(t *testing.T) {
			e := New(NewPolicy(pct, pct))
			state := movieState(98)
			assert.False(t, e.ShouldPauseForBuffering(snap, state))

			state.IsPausedForBuffering = true
			assert.True(t, e.ShouldResumeFromBuffering(snap, state))
		})
	}
}

func TestNearEndPartialDownloadPauses(t *testing.T) {
	e := New(NewPolicy(5, 5))
	// Head is within the minimum buffer of the end, so anything short of a
	// complete download pauses.
	assert.True(t, e.ShouldPauseForBuffering(run(0, 99), movieState(97)))

	state := movieState(90)
	state.IsPausedForBuffering = true
	// Run end is within the minimum buffer of the stream end but incomplete.
	assert.False(t, e.ShouldResumeFromBuffering(run(0, 99), state))
}

func TestDecisionsArePure(t *testing.T) {
	e := New(NewPolicy(10, 10))
	snap := run(0, 50)
	state := movieState(45)

	first := e.ShouldPauseForBuffering(snap, state)
	second := e.ShouldPauseForBuffering(snap, state)
	assert.Equal(t, first, second)
	assert.False(t, state.IsPausedForBuffering)
	assert.Equal(t, run(0, 50), snap)
}

func TestTrailerUsesFixedThreshold(t *testing.T) {
	e := New(NewPolicy(50, 50))
	snap := run(0, 50)

	trailer := media.PlaybackState{Type: media.Trailer, TotalDurationSeconds: 100, PositionSeconds: 45}
	other := trailer
	other.Type = media.Other

	assert.False(t, e.ShouldPauseForBuffering(snap, trailer))
	assert.False(t, e.ShouldPauseForBuffering(snap, other))
	assert.True(t, e.ShouldPauseForBuffering(snap, movieState(45)))

	trailer.PositionSeconds = 48
	assert.True(t, e.ShouldPauseForBuffering(snap, trailer))
}

func TestStep(t *testing.T) {
	e := New(NewPolicy(10, 10))

	state, d := e.Step(run(0, 50), movieState(45))
	assert.Equal(t, Pause, d)
	assert.True(t, state.IsPausedForBuffering)

	state, d = e.Step(run(0, 52), state)
	assert.Equal(t, Hold, d)
	assert.True(t, state.IsPausedForBuffering)

	state, d = e.Step(run(0, 70), state)
	assert.Equal(t, Resume, d)
	assert.False(t, state.IsPausedForBuffering)

	state, d = e.Step(run(0, 70), state)
	assert.Equal(t, Hold, d)
	assert.False(t, state.IsPausedForBuffering)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		snap    media.PieceAvailability
		state   media.PlaybackState
		wantErr error
	}{
		{"ok", run(0, 50), movieState(10), nil},
		{"no pieces", media.PieceAvailability{}, movieState(10), ErrNoPieces},
		{"end before start", run(60, 50), movieState(10), ErrPieceRange},
		{"end past total", run(0, 101), movieState(10), ErrPieceRange},
		{"negative start", run(-1, 10), movieState(10), ErrPieceRange},
		{"unknown duration", run(0, 50), media.PlaybackState{Type: media.Movie}, ErrUnknownDuration},
		{"position past end", run(0, 50), movieState(101), ErrPositionRange},
		{"negative position", run(0, 50), movieState(-1), ErrPositionRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.snap, tt.state)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
