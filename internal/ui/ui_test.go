package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popcorn/internal/media"
	"popcorn/internal/playback"
)

type fakeController struct {
	sent    []playback.Command
	updates chan playback.Status
}

func newFakeController() *fakeController {
	return &fakeController{updates: make(chan playback.Status, 4)}
}

func (f *fakeController) Send(cmd playback.Command)       { f.sent = append(f.sent, cmd) }
func (f *fakeController) Updates() <-chan playback.Status { return f.updates }

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		key  string
		want playback.Command
	}{
		{" ", playback.Command{Kind: playback.CmdTogglePlay}},
		{"up", playback.Command{Kind: playback.CmdVolumeUp}},
		{"down", playback.Command{Kind: playback.CmdVolumeDown}},
		{"left", playback.Command{Kind: playback.CmdSeekBy, Seconds: -10}},
		{"right", playback.Command{Kind: playback.CmdSeekBy, Seconds: 10}},
		{"g", playback.Command{Kind: playback.CmdSubtitleDelayDown}},
		{"h", playback.Command{Kind: playback.CmdSubtitleDelayUp}},
		{"q", playback.Command{Kind: playback.CmdQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ctrl := newFakeController()
			m := newModel(ctrl)
			update(t, m, key(tt.key))
			require.Len(t, ctrl.sent, 1)
			assert.Equal(t, tt.want, ctrl.sent[0])
		})
	}
}

func TestUnboundKeyShowsHelpOnly(t *testing.T) {
	ctrl := newFakeController()
	m := newModel(ctrl)
	m.showHelp = false

	m, cmd := update(t, m, key("x"))
	assert.Empty(t, ctrl.sent)
	assert.True(t, m.showHelp)
	assert.NotNil(t, cmd, "a hide timer is scheduled")
}

func TestHelpHidesAfterTimeout(t *testing.T) {
	m := newModel(newFakeController())
	assert.True(t, m.showHelp)

	m, _ = update(t, m, key("x"))
	seq := m.helpSeq

	// A stale timer from an earlier key press is ignored.
	m, _ = update(t, m, hideHelpMsg{seq: seq - 1})
	assert.True(t, m.showHelp)

	m, _ = update(t, m, hideHelpMsg{seq: seq})
	assert.False(t, m.showHelp)
}

func TestStatusUpdatesView(t *testing.T) {
	ctrl := newFakeController()
	m := newModel(ctrl)
	assert.Contains(t, m.View(), "starting player")

	snap := media.PieceAvailability{TotalPieces: 100, EndAvailablePiece: 40}
	m, cmd := update(t, m, statusMsg{
		Title:         "Big Buck Bunny",
		Type:          media.Movie,
		State:         playback.StateBuffering,
		Position:      65,
		Duration:      600,
		Availability:  &snap,
		Volume:        80,
		SubtitleDelay: -time.Second,
		Subtitle:      "Hello there",
	})
	assert.NotNil(t, cmd, "keeps listening for updates")

	view := m.View()
	assert.Contains(t, view, "Big Buck Bunny")
	assert.Contains(t, view, "buffering")
	assert.Contains(t, view, "1:05 / 10:00")
	assert.Contains(t, view, "80%")
	assert.Contains(t, view, "-1.0s")
	assert.Contains(t, view, "Hello there")
	assert.Contains(t, view, "downloaded")
}

func TestWaitForStatus(t *testing.T) {
	ctrl := newFakeController()
	ctrl.updates <- playback.Status{Position: 3}
	close(ctrl.updates)

	msg := waitForStatus(ctrl.updates)()
	assert.Equal(t, statusMsg{Position: 3}, msg)

	msg = waitForStatus(ctrl.updates)()
	assert.Equal(t, sessionDoneMsg{}, msg)
}

func TestSessionDoneQuits(t *testing.T) {
	m := newModel(newFakeController())
	m, cmd := update(t, m, sessionDoneMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	updates := make(chan playback.Status, 4)
	updates <- playback.Status{State: playback.StatePlaying, Position: 1}
	updates <- playback.Status{State: playback.StatePlaying, Position: 2, Subtitle: "Hi"}
	updates <- playback.Status{State: playback.StateBuffering, Position: 3, Duration: 60}
	close(updates)

	Log(updates, logger)

	out := buf.String()
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("playback state changed")))
	assert.Contains(t, out, "state=buffering")
	assert.Contains(t, out, "duration=\"1:00\"")
	assert.Contains(t, out, "msg=Hi")
}
