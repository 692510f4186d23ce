package ui

import (
	"github.com/sirupsen/logrus"

	"popcorn/internal/playback"
)

// Log reports state changes and subtitle lines instead of drawing the status
// view. It is used when stdout is not a terminal and returns once updates is
// closed.
func Log(updates <-chan playback.Status, logger *logrus.Logger) {
	var (
		last     playback.Status
		hasLast  bool
		lastCue  string
		lastSnap int
	)
	for st := range updates {
		if !hasLast || st.State != last.State {
			entry := logger.WithFields(logrus.Fields{
				"state":    st.State.String(),
				"position": playback.FormatClock(st.Position),
			})
			if st.Duration > 0 {
				entry = entry.WithField("duration", playback.FormatClock(st.Duration))
			}
			entry.Info("playback state changed")
		}

		if st.Availability != nil && st.Availability.EndAvailablePiece != lastSnap {
			lastSnap = st.Availability.EndAvailablePiece
			logger.WithFields(logrus.Fields{
				"start": st.Availability.StartAvailablePiece,
				"end":   st.Availability.EndAvailablePiece,
				"total": st.Availability.TotalPieces,
			}).Debug("availability")
		}

		if st.Subtitle != lastCue {
			lastCue = st.Subtitle
			if st.Subtitle != "" {
				logger.WithField("position", playback.FormatClock(st.Position)).Info(st.Subtitle)
			}
		}

		last, hasLast = st, true
	}
}
