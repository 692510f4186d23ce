package playback

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"popcorn/internal/buffering"
	"popcorn/internal/media"
	"popcorn/internal/subtitle"
)

const (
	volumeStep        = 0.05
	subtitleDelayStep = time.Second
)

// CommandKind identifies a user command.
type CommandKind int

const (
	CmdTogglePlay CommandKind = iota
	CmdSeek                   // absolute, Seconds
	CmdSeekBy                 // relative, Seconds
	CmdVolumeUp
	CmdVolumeDown
	CmdSubtitleDelayUp
	CmdSubtitleDelayDown
	CmdQuit
)

// Command is a user request sent to a running session.
type Command struct {
	Kind    CommandKind
	Seconds float64
}

// Options configures a session.
type Options struct {
	Title         string
	Type          media.MediaType
	StartPosition float64 // the engine must already be positioned here
	Volume        int     // percent
	Subtitles     *subtitle.Track
}

// Result summarizes a finished session.
type Result struct {
	Position float64
	Duration float64
	Ended    bool
}

// Session serializes every change to the playback state on the goroutine
// running Run. Availability snapshots, engine events and user commands all
// arrive on channels.
type Session struct {
	id      string
	title   string
	engine  Engine
	eval    buffering.Evaluator
	feed    <-chan media.PieceAvailability
	subs    *subtitle.Track
	logger  *logrus.Entry
	cmds    chan Command
	updates chan Status
	done    chan struct{}

	state    media.PlaybackState
	snap     media.PieceAvailability
	haveSnap bool
	playing  bool
	ended    bool
	volume   float64
	subDelay time.Duration
}

// New creates a session. feed may be nil for media that is not downloading,
// such as trailers streamed directly.
func New(engine Engine, eval buffering.Evaluator, feed <-chan media.PieceAvailability, opts Options, logger *logrus.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		title:  opts.Title,
		engine: engine,
		eval:   eval,
		feed:   feed,
		subs:   opts.Subtitles,
		logger: logger.WithFields(logrus.Fields{
			"session": id,
			"type":    opts.Type.String(),
		}),
		cmds:    make(chan Command, 16),
		updates: make(chan Status, 1),
		done:    make(chan struct{}),
		state: media.PlaybackState{
			Type:            opts.Type,
			PositionSeconds: opts.StartPosition,
		},
		volume: clamp(float64(opts.Volume)/100, 0, 1),
	}
}

// ID returns the session identifier used in log fields.
func (s *Session) ID() string { return s.id }

// Send queues a command. It returns immediately once the session has stopped.
func (s *Session) Send(cmd Command) {
	select {
	case s.cmds <- cmd:
	case <-s.done:
	}
}

// Updates delivers the latest status after every change. Older statuses are
// dropped if the reader falls behind. The channel is closed when Run returns.
func (s *Session) Updates() <-chan Status {
	return s.updates
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives the session until the media ends, the engine exits, a quit
// command arrives or ctx is cancelled. Cancellation returns ctx.Err()
// alongside the result reached so far.
func (s *Session) Run(ctx context.Context) (Result, error) {
	defer close(s.done)
	defer close(s.updates)

	s.logger.WithField("title", s.title).Info("starting playback")

	if err := s.engine.SetVolume(s.volumePercent()); err != nil {
		s.logger.WithError(err).Warn("setting volume")
	}
	s.play()
	s.publish()

	events := s.engine.Events()
	feed := s.feed

	for {
		select {
		case <-ctx.Done():
			return s.result(), ctx.Err()

		case snap, ok := <-feed:
			if !ok {
				s.logger.Debug("availability feed closed")
				feed = nil
				continue
			}
			s.onAvailability(snap)

		case ev, ok := <-events:
			if !ok {
				return s.result(), nil
			}
			switch ev.Kind {
			case EventPosition:
				s.onPosition(ev.Seconds)
			case EventDuration:
				s.state.TotalDurationSeconds = ev.Seconds
			case EventEnded:
				s.ended = true
				s.playing = false
				s.publish()
				s.logger.Info("playback reached end of file")
				return s.result(), nil
			case EventExited:
				if ev.Err != nil {
					return s.result(), fmt.Errorf("player exited: %w", ev.Err)
				}
				return s.result(), nil
			}

		case cmd := <-s.cmds:
			if cmd.Kind == CmdQuit {
				return s.result(), nil
			}
			s.onCommand(cmd)
		}

		s.publish()
	}
}

func (s *Session) onAvailability(snap media.PieceAvailability) {
	s.snap = snap
	s.haveSnap = true
	if s.state.IsPausedForBuffering {
		s.evaluate(s.state)
	}
}

func (s *Session) onPosition(pos float64) {
	if s.state.IsPausedForBuffering || pos == s.state.PositionSeconds {
		return
	}
	candidate := s.state.AtPosition(pos)
	if s.evaluate(candidate) == buffering.Hold {
		s.state = candidate
	}
}

// evaluate runs the buffering step for candidate and performs the resulting
// engine side effect. It holds when the preconditions are not met yet, e.g.
// before the first snapshot or before the duration is known.
func (s *Session) evaluate(candidate media.PlaybackState) buffering.Decision {
	if !s.haveSnap {
		return buffering.Hold
	}
	if err := buffering.Validate(s.snap, candidate); err != nil {
		s.logger.WithError(err).Debug("skipping buffering check")
		return buffering.Hold
	}

	next, decision := s.eval.Step(s.snap, candidate)
	switch decision {
	case buffering.Pause:
		s.state = next
		s.logger.WithFields(s.bufferFields()).Info("pausing to buffer")
		if err := s.engine.Pause(); err != nil {
			s.logger.WithError(err).Warn("pausing player")
		}
		s.playing = false
	case buffering.Resume:
		s.state = next
		s.logger.WithFields(s.bufferFields()).Info("buffer recovered, resuming")
		if err := s.engine.Seek(s.state.PositionSeconds); err != nil {
			s.logger.WithError(err).Warn("seeking player")
		}
		s.play()
	}
	return decision
}

func (s *Session) onCommand(cmd Command) {
	switch cmd.Kind {
	case CmdTogglePlay:
		switch {
		case s.state.IsPausedForBuffering:
			s.logger.Debug("ignoring play while buffering")
		case s.playing:
			s.pause()
		default:
			s.play()
		}
	case CmdSeek:
		s.seek(cmd.Seconds)
	case CmdSeekBy:
		s.seek(s.state.PositionSeconds + cmd.Seconds)
	case CmdVolumeUp:
		s.setVolume(s.volume + volumeStep)
	case CmdVolumeDown:
		s.setVolume(s.volume - volumeStep)
	case CmdSubtitleDelayUp:
		s.setSubtitleDelay(s.subDelay + subtitleDelayStep)
	case CmdSubtitleDelayDown:
		s.setSubtitleDelay(s.subDelay - subtitleDelayStep)
	}
}

// seek moves the playback head. While buffering the player is left alone:
// the held position moves and the resume check runs against it.
func (s *Session) seek(pos float64) {
	pos = math.Max(pos, 0)
	if s.state.DurationKnown() {
		pos = math.Min(pos, s.state.TotalDurationSeconds)
	}

	if s.state.IsPausedForBuffering {
		s.state.PositionSeconds = pos
		s.evaluate(s.state)
		return
	}

	candidate := s.state.AtPosition(pos)
	if s.evaluate(candidate) != buffering.Hold {
		return
	}
	s.state = candidate
	if err := s.engine.Seek(pos); err != nil {
		s.logger.WithError(err).Warn("seeking player")
		return
	}
	s.play()
}

func (s *Session) play() {
	if s.state.IsPausedForBuffering {
		return
	}
	if err := s.engine.Play(); err != nil {
		s.logger.WithError(err).Warn("starting player")
		return
	}
	s.playing = true
}

func (s *Session) pause() {
	if err := s.engine.Pause(); err != nil {
		s.logger.WithError(err).Warn("pausing player")
		return
	}
	s.playing = false
}

func (s *Session) setVolume(v float64) {
	s.volume = clamp(v, 0, 1)
	if err := s.engine.SetVolume(s.volumePercent()); err != nil {
		s.logger.WithError(err).Warn("setting volume")
	}
}

// setSubtitleDelay shifts cue lookup to position+d. mpv's sub-delay moves
// subtitles the other way, so it receives the negated value.
func (s *Session) setSubtitleDelay(d time.Duration) {
	s.subDelay = d
	s.logger.WithField("delay_ms", d.Milliseconds()).Debug("subtitle delay changed")
	if err := s.engine.SetSubtitleDelay(-d.Seconds()); err != nil {
		s.logger.WithError(err).Warn("setting subtitle delay")
	}
}

func (s *Session) volumePercent() int {
	return int(math.Round(s.volume * 100))
}

func (s *Session) bufferFields() logrus.Fields {
	return logrus.Fields{
		"position": fmt.Sprintf("%.1f", s.state.PositionSeconds),
		"duration": fmt.Sprintf("%.1f", s.state.TotalDurationSeconds),
		"start":    s.snap.StartAvailablePiece,
		"end":      s.snap.EndAvailablePiece,
		"total":    s.snap.TotalPieces,
	}
}

func (s *Session) result() Result {
	return Result{
		Position: s.state.PositionSeconds,
		Duration: s.state.TotalDurationSeconds,
		Ended:    s.ended,
	}
}

// publish replaces any unread status with the current one. Only the Run
// goroutine sends, so the drain cannot race another sender.
func (s *Session) publish() {
	st := s.status()
	select {
	case <-s.updates:
	default:
	}
	s.updates <- st
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
