// Package ui renders the playback status in the terminal and turns key
// presses into session commands.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"popcorn/internal/playback"
)

// helpTimeout is how long key help stays visible after the last key press.
const helpTimeout = 3 * time.Second

const seekStep = 10 // seconds

// Controller is the part of a playback session the view talks to.
type Controller interface {
	Send(playback.Command)
	Updates() <-chan playback.Status
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bb9af7")).
			Bold(true)

	playingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0af68"))

	bufferingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f7768e")).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0caf5")).
			Italic(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89"))
)

type statusMsg playback.Status

type sessionDoneMsg struct{}

// hideHelpMsg hides the key help unless a newer key press rescheduled it.
type hideHelpMsg struct{ seq int }

type model struct {
	ctrl      Controller
	status    playback.Status
	hasStatus bool
	bar       progress.Model
	showHelp  bool
	helpSeq   int
	quitting  bool
}

func newModel(ctrl Controller) model {
	return model{
		ctrl:     ctrl,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		showHelp: true,
	}
}

// Run shows the status view until the session stops.
func Run(ctrl Controller) error {
	p := tea.NewProgram(newModel(ctrl))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running status view: %w", err)
	}
	return nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func waitForStatus(updates <-chan playback.Status) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return sessionDoneMsg{}
		}
		return statusMsg(st)
	}
}

func hideHelpAfter(seq int) tea.Cmd {
	return tea.Tick(helpTimeout, func(time.Time) tea.Msg {
		return hideHelpMsg{seq: seq}
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForStatus(m.ctrl.Updates()), hideHelpAfter(m.helpSeq))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = playback.Status(msg)
		m.hasStatus = true
		return m, waitForStatus(m.ctrl.Updates())

	case sessionDoneMsg:
		m.quitting = true
		return m, tea.Quit

	case hideHelpMsg:
		if msg.seq == m.helpSeq {
			m.showHelp = false
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-20, 80))
		return m, nil

	case tea.KeyMsg:
		if cmd, ok := keyCommand(msg.String()); ok {
			m.ctrl.Send(cmd)
		}
		m.showHelp = true
		m.helpSeq++
		return m, hideHelpAfter(m.helpSeq)
	}
	return m, nil
}

// keyCommand maps a key to the session command it triggers.
func keyCommand(key string) (playback.Command, bool) {
	switch key {
	case " ", "space", "p":
		return playback.Command{Kind: playback.CmdTogglePlay}, true
	case "up", "+", "=":
		return playback.Command{Kind: playback.CmdVolumeUp}, true
	case "down", "-":
		return playback.Command{Kind: playback.CmdVolumeDown}, true
	case "left":
		return playback.Command{Kind: playback.CmdSeekBy, Seconds: -seekStep}, true
	case "right":
		return playback.Command{Kind: playback.CmdSeekBy, Seconds: seekStep}, true
	case "g":
		return playback.Command{Kind: playback.CmdSubtitleDelayDown}, true
	case "h":
		return playback.Command{Kind: playback.CmdSubtitleDelayUp}, true
	case "q", "ctrl+c", "esc":
		return playback.Command{Kind: playback.CmdQuit}, true
	}
	return playback.Command{}, false
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if !m.hasStatus {
		return dimStyle.Render("starting player...") + "\n"
	}

	st := m.status
	var b strings.Builder

	title := st.Title
	if title == "" {
		title = "popcorn"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString(dimStyle.Render(" (" + st.Type.String() + ")"))
	b.WriteString("\n\n")

	b.WriteString(renderState(st.State))
	clock := playback.FormatClock(st.Position)
	if st.Duration > 0 {
		clock += " / " + playback.FormatClock(st.Duration)
	}
	fmt.Fprintf(&b, "  %s\n", clock)

	if st.Availability != nil {
		fmt.Fprintf(&b, "%s %s\n", m.bar.ViewAs(st.Availability.EndFraction()), dimStyle.Render("downloaded"))
	}

	fmt.Fprintf(&b, "%s %d%%", dimStyle.Render("volume"), st.Volume)
	if st.SubtitleDelay != 0 {
		fmt.Fprintf(&b, "   %s %+.1fs", dimStyle.Render("sub delay"), st.SubtitleDelay.Seconds())
	}
	b.WriteString("\n")

	if st.Subtitle != "" {
		b.WriteString("\n" + subtitleStyle.Render(st.Subtitle) + "\n")
	}

	if m.showHelp {
		b.WriteString("\n" + dimStyle.Render("space play/pause • ←/→ seek • ↑/↓ volume • g/h sub delay • q quit") + "\n")
	}
	return b.String()
}

func renderState(s playback.State) string {
	switch s {
	case playback.StatePlaying:
		return playingStyle.Render("▶ playing")
	case playback.StateBuffering:
		return bufferingStyle.Render("◌ buffering")
	case playback.StateEnded:
		return dimStyle.Render("■ ended")
	default:
		return pausedStyle.Render("❚❚ paused")
	}
}
