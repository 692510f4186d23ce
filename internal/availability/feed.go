// Package availability delivers piece availability snapshots from a
// download subsystem to a playback session.
package availability

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"popcorn/internal/httputil"
	"popcorn/internal/media"
)

// Feed produces snapshots until its source ends or the context is cancelled.
type Feed interface {
	// Run sends snapshots on out and closes it when done.
	Run(ctx context.Context, out chan<- media.PieceAvailability) error
}

// Start runs f on its own goroutine and returns the snapshot channel.
// Errors from the feed are logged.
func Start(ctx context.Context, f Feed, logger *logrus.Logger) <-chan media.PieceAvailability {
	out := make(chan media.PieceAvailability, 1)
	go func() {
		if err := f.Run(ctx, out); err != nil && ctx.Err() == nil {
			logger.WithError(err).Warn("availability feed stopped")
		}
	}()
	return out
}

// send delivers snap unless the context is done.
func send(ctx context.Context, out chan<- media.PieceAvailability, snap media.PieceAvailability) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

// ReaderFeed reads newline-delimited JSON snapshots, e.g. from stdin or a
// named pipe written by a torrent client hook.
type ReaderFeed struct {
	r      io.Reader
	logger *logrus.Logger
}

// NewReaderFeed creates a feed over r.
func NewReaderFeed(r io.Reader, logger *logrus.Logger) *ReaderFeed {
	return &ReaderFeed{r: r, logger: logger}
}

// Run implements Feed.
func (f *ReaderFeed) Run(ctx context.Context, out chan<- media.PieceAvailability) error {
	defer close(out)

	scanner := bufio.NewScanner(f.r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		snap, err := decode(line)
		if err != nil {
			f.logger.WithError(err).Debug("dropping availability line")
			continue
		}
		if !send(ctx, out, snap) {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading availability feed: %w", err)
	}
	return nil
}

// HTTPFeed polls a JSON status endpoint.
type HTTPFeed struct {
	client   *http.Client
	url      string
	interval time.Duration
	logger   *logrus.Logger
}

// NewHTTPFeed creates a polling feed. The URL must pass httputil.ValidateURL.
func NewHTTPFeed(client *http.Client, url string, interval time.Duration, logger *logrus.Logger) (*HTTPFeed, error) {
	if err := httputil.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("availability endpoint: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	return &HTTPFeed{client: client, url: url, interval: interval, logger: logger}, nil
}

// Run implements Feed. Failed polls are logged and retried on the next tick.
func (f *HTTPFeed) Run(ctx context.Context, out chan<- media.PieceAvailability) error {
	defer close(out)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var last media.PieceAvailability
	for {
		body, err := httputil.GetJSON(ctx, f.client, f.url)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.WithError(err).WithField("url", f.url).Debug("availability poll failed")
		default:
			snap, err := decode(body)
			if err != nil {
				f.logger.WithError(err).Debug("dropping availability response")
				break
			}
			// Skip unchanged snapshots.
			if snap == last {
				break
			}
			last = snap
			if !send(ctx, out, snap) {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func decode(data []byte) (media.PieceAvailability, error) {
	var snap media.PieceAvailability
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decoding snapshot: %w", err)
	}
	if !snap.Valid() {
		return snap, fmt.Errorf("invalid snapshot: start=%d end=%d total=%d",
			snap.StartAvailablePiece, snap.EndAvailablePiece, snap.TotalPieces)
	}
	return snap, nil
}
