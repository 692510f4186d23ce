package availability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popcorn/internal/media"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func collect(t *testing.T, ch <-chan media.PieceAvailability, n int) []media.PieceAvailability {
	t.Helper()
	var got []media.PieceAvailability
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case snap, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, snap)
		case <-timeout:
			t.Fatalf("timed out after %d of %d snapshots", len(got), n)
		}
	}
	return got
}

func TestReaderFeed(t *testing.T) {
	input := strings.Join([]string{
		`{"total_pieces":100,"start_available_piece":0,"end_available_piece":10}`,
		``,
		`not json`,
		`{"total_pieces":100,"start_available_piece":20,"end_available_piece":10}`,
		`{"total_pieces":0,"start_available_piece":0,"end_available_piece":0}`,
		`{"total_pieces":100,"start_available_piece":0,"end_available_piece":40}`,
	}, "\n")

	ch := Start(context.Background(), NewReaderFeed(strings.NewReader(input), quietLogger()), quietLogger())
	got := collect(t, ch, 3)

	require.Len(t, got, 2, "invalid lines are dropped and the channel closes at EOF")
	assert.Equal(t, 10, got[0].EndAvailablePiece)
	assert.Equal(t, 40, got[1].EndAvailablePiece)
}

func TestReaderFeedStopsOnCancel(t *testing.T) {
	input := `{"total_pieces":10,"start_available_piece":0,"end_available_piece":1}`

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan media.PieceAvailability)
	done := make(chan error, 1)
	go func() { done <- NewReaderFeed(strings.NewReader(input), quietLogger()).Run(ctx, out) }()

	// Nobody reads out, so the feed blocks on send until cancelled.
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
	_, open := <-out
	assert.False(t, open)
}

func TestHTTPFeed(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		switch {
		case n == 2:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		case n <= 3:
			fmt.Fprint(w, `{"total_pieces":50,"start_available_piece":0,"end_available_piece":5}`)
		default:
			fmt.Fprintf(w, `{"total_pieces":50,"start_available_piece":0,"end_available_piece":%d}`, min(int(n)+5, 50))
		}
	}))
	defer srv.Close()

	feed, err := NewHTTPFeed(srv.Client(), srv.URL+"/stats", 10*time.Millisecond, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := collect(t, Start(ctx, feed, quietLogger()), 2)
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].EndAvailablePiece)
	// The failed poll and the repeated snapshot are not forwarded.
	assert.Equal(t, 9, got[1].EndAvailablePiece)
}

func TestNewHTTPFeedValidation(t *testing.T) {
	_, err := NewHTTPFeed(http.DefaultClient, "http://example.com/stats", time.Second, quietLogger())
	assert.Error(t, err)

	_, err = NewHTTPFeed(http.DefaultClient, "https://example.com/stats", 0, quietLogger())
	assert.Error(t, err)
}
