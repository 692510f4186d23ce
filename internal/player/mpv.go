package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"popcorn/internal/playback"
)

// Property observer IDs registered on attach.
const (
	observeTimePos = iota + 1
	observeDuration
)

// MPV drives an mpv process over its JSON IPC socket.
type MPV struct {
	conn   net.Conn
	logger *logrus.Logger

	writeMu sync.Mutex
	reqID   atomic.Int64

	events    chan playback.Event
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	cmd       *exec.Cmd
	socketDir string
}

var _ playback.Engine = (*MPV)(nil)

// Launch starts mpv for opts and connects to its IPC socket. The socket lives
// in a randomized temp dir to prevent symlink attacks. mpv starts paused; the
// session decides when playback begins.
func Launch(ctx context.Context, opts Options, logger *logrus.Logger) (*MPV, error) {
	binary, err := exec.LookPath(opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("player %q not found in PATH: %w", opts.Binary, err)
	}

	socketDir, err := os.MkdirTemp("", "popcorn-mpv-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir for mpv socket: %w", err)
	}
	socketPath := filepath.Join(socketDir, "socket")

	cmd := newCommand(binary, opts, socketPath)

	logger.WithField("args", cmd.Args).Debug("launching mpv")
	if err := cmd.Start(); err != nil {
		os.RemoveAll(socketDir)
		return nil, fmt.Errorf("starting mpv: %w", err)
	}

	conn, err := dialSocket(ctx, socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(socketDir)
		return nil, err
	}

	m := attach(conn, cmd, logger)
	m.socketDir = socketDir

	if err := m.observe(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// newCommand builds the mpv process. stdio stays detached since the terminal
// belongs to the status view, except that a "-" source reads our stdin.
func newCommand(binary string, opts Options, socketPath string) *exec.Cmd {
	cmd := exec.Command(binary, buildArgs(opts, socketPath)...)
	if opts.Source == "-" {
		cmd.Stdin = os.Stdin
	}
	return cmd
}

// dialSocket waits for mpv to create its IPC socket.
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	deadline := time.Now().Add(10 * time.Second)
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("connecting to mpv IPC socket: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// attach wraps an established IPC connection and starts reading events from
// it. When cmd is set, its exit is reported as EventExited. The events
// channel closes once both are done.
func attach(conn net.Conn, cmd *exec.Cmd, logger *logrus.Logger) *MPV {
	m := &MPV{
		conn:   conn,
		cmd:    cmd,
		logger: logger,
		events: make(chan playback.Event, 16),
		closed: make(chan struct{}),
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.readLoop()
	}()

	if cmd != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			err := cmd.Wait()
			m.emit(playback.Event{Kind: playback.EventExited, Err: exitError(err)})
		}()
	}

	go m.closeEventsWhenDone()
	return m
}

func (m *MPV) closeEventsWhenDone() {
	m.wg.Wait()
	close(m.events)
}

func (m *MPV) observe() error {
	if err := m.command("observe_property", observeTimePos, "time-pos"); err != nil {
		return fmt.Errorf("observing time-pos: %w", err)
	}
	if err := m.command("observe_property", observeDuration, "duration"); err != nil {
		return fmt.Errorf("observing duration: %w", err)
	}
	return nil
}

func (m *MPV) readLoop() {
	scanner := bufio.NewScanner(m.conn)
	for scanner.Scan() {
		ev, ok := parseEvent(scanner.Bytes())
		if !ok {
			continue
		}
		if !m.emit(ev) {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		m.logger.WithError(err).Debug("mpv IPC read failed")
	}
}

// emit delivers ev unless the engine has been closed.
func (m *MPV) emit(ev playback.Event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.closed:
		return false
	}
}

// ipcMessage covers both property-change events and command replies.
type ipcMessage struct {
	Event  string          `json:"event"`
	ID     int             `json:"id"`
	Name   string          `json:"name"`
	Data   json.RawMessage `json:"data"`
	Reason string          `json:"reason"`
	Error  string          `json:"error"`
}

// parseEvent converts one IPC line into a playback event.
func parseEvent(line []byte) (playback.Event, bool) {
	var msg ipcMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return playback.Event{}, false
	}

	switch msg.Event {
	case "property-change":
		var v *float64
		if len(msg.Data) == 0 || json.Unmarshal(msg.Data, &v) != nil || v == nil {
			return playback.Event{}, false
		}
		switch msg.Name {
		case "time-pos":
			return playback.Event{Kind: playback.EventPosition, Seconds: *v}, true
		case "duration":
			if *v <= 0 {
				return playback.Event{}, false
			}
			return playback.Event{Kind: playback.EventDuration, Seconds: *v}, true
		}
	case "end-file":
		if msg.Reason == "eof" {
			return playback.Event{Kind: playback.EventEnded}, true
		}
	}
	return playback.Event{}, false
}

// encodeCommand builds one IPC request line.
func encodeCommand(id int64, args ...any) ([]byte, error) {
	data, err := json.Marshal(map[string]any{
		"command":    args,
		"request_id": id,
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (m *MPV) command(args ...any) error {
	data, err := encodeCommand(m.reqID.Add(1), args...)
	if err != nil {
		return fmt.Errorf("encoding mpv command: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if _, err := m.conn.Write(data); err != nil {
		return fmt.Errorf("writing mpv command: %w", err)
	}
	return nil
}

func (m *MPV) setProperty(name string, value any) error {
	return m.command("set_property", name, value)
}

// Play implements playback.Engine.
func (m *MPV) Play() error { return m.setProperty("pause", false) }

// Pause implements playback.Engine.
func (m *MPV) Pause() error { return m.setProperty("pause", true) }

// Seek implements playback.Engine.
func (m *MPV) Seek(seconds float64) error {
	return m.command("seek", seconds, "absolute")
}

// SetVolume implements playback.Engine.
func (m *MPV) SetVolume(percent int) error { return m.setProperty("volume", percent) }

// SetSubtitleDelay implements playback.Engine.
func (m *MPV) SetSubtitleDelay(seconds float64) error {
	return m.setProperty("sub-delay", seconds)
}

// Events implements playback.Engine.
func (m *MPV) Events() <-chan playback.Event { return m.events }

// Close asks mpv to quit, then tears down the socket and temp dir.
func (m *MPV) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = m.command("quit")
		close(m.closed)
		err = m.conn.Close()

		if m.cmd != nil && m.cmd.Process != nil {
			waited := make(chan struct{})
			go func() {
				m.wg.Wait()
				close(waited)
			}()
			select {
			case <-waited:
			case <-time.After(3 * time.Second):
				m.cmd.Process.Kill()
			}
		}
		if m.socketDir != "" {
			os.RemoveAll(m.socketDir)
		}
	})
	return err
}

// exitError maps mpv's exit status to an error. mpv exits 4 when the user
// quits from its own window, which is a normal stop.
func exitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 4 {
		return nil
	}
	return err
}
