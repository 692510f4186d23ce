// Package media defines shared types for the popcorn application.
package media

import (
	"fmt"
	"strings"
)

// MediaType selects the buffering policy applied to a stream.
type MediaType int

const (
	Movie MediaType = iota
	Show
	Trailer
	Other
)

func (m MediaType) String() string {
	switch m {
	case Movie:
		return "movie"
	case Show:
		return "show"
	case Trailer:
		return "trailer"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// ParseMediaType accepts the names produced by String plus a few aliases.
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies", "film":
		return Movie, nil
	case "show", "shows", "tv", "series", "episode":
		return Show, nil
	case "trailer":
		return Trailer, nil
	case "other", "":
		return Other, nil
	default:
		return Other, fmt.Errorf("unknown media type %q (valid: movie, show, trailer, other)", s)
	}
}

// PieceAvailability is a progress snapshot from the download subsystem:
// the contiguous run of downloaded pieces at the playback head.
type PieceAvailability struct {
	TotalPieces         int `json:"total_pieces"`
	StartAvailablePiece int `json:"start_available_piece"`
	EndAvailablePiece   int `json:"end_available_piece"`
}

// Valid reports whether 0 <= start <= end <= total and total > 0.
func (p PieceAvailability) Valid() bool {
	return p.TotalPieces > 0 &&
		p.StartAvailablePiece >= 0 &&
		p.StartAvailablePiece <= p.EndAvailablePiece &&
		p.EndAvailablePiece <= p.TotalPieces
}

// StartFraction is the start of the available run as a fraction of the stream.
func (p PieceAvailability) StartFraction() float64 {
	return float64(p.StartAvailablePiece) / float64(p.TotalPieces)
}

// EndFraction is the end of the available run as a fraction of the stream.
func (p PieceAvailability) EndFraction() float64 {
	return float64(p.EndAvailablePiece) / float64(p.TotalPieces)
}

// PlaybackState is the per-session playback state the buffering decision runs on.
type PlaybackState struct {
	Type                 MediaType
	TotalDurationSeconds float64 // 0 until media metadata loads
	PositionSeconds      float64
	IsPausedForBuffering bool
}

// DurationKnown reports whether the player has reported a usable duration.
func (s PlaybackState) DurationKnown() bool {
	return s.TotalDurationSeconds > 0
}

// PlayFraction is the playback head as a fraction of the total duration.
func (s PlaybackState) PlayFraction() float64 {
	return s.PositionSeconds / s.TotalDurationSeconds
}

// AtPosition returns a copy of the state with the head moved to pos.
func (s PlaybackState) AtPosition(pos float64) PlaybackState {
	s.PositionSeconds = pos
	return s
}

// Subtitle represents a subtitle track.
type Subtitle struct {
	Language string // e.g., "English"
	Label    string // Display label, e.g., "English - SDH"
	URL      string // Remote URL or local path to the subtitle file (SRT or VTT)
}

// HistoryEntry is a saved resume point.
type HistoryEntry struct {
	Path     string    // Media path or URL, the history key
	Title    string    // Display title
	Type     MediaType // Media type at the time of playback
	Position float64   // Last playback position in seconds
	Duration float64   // Total duration in seconds
	Updated  int64     // Unix seconds of the last save
}
