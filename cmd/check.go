package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"popcorn/internal/buffering"
	"popcorn/internal/media"
)

var (
	flagCheckType     string
	flagCheckDuration float64
	flagCheckPosition float64
	flagCheckTotal    int
	flagCheckStart    int
	flagCheckEnd      int
	flagCheckPaused   bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the buffering decision for one snapshot",
	Long: `Check runs the buffering rules once against the given piece availability
and playback position, and prints whether playback would pause or resume.`,
	Args: cobra.NoArgs,
	RunE: checkRun,
}

func init() {
	f := checkCmd.Flags()
	f.StringVarP(&flagCheckType, "type", "t", "movie", "Media type: movie | show | trailer | other")
	f.Float64Var(&flagCheckDuration, "duration", 0, "Total duration in seconds")
	f.Float64Var(&flagCheckPosition, "position", 0, "Playback position in seconds")
	f.IntVar(&flagCheckTotal, "total", 0, "Total number of pieces")
	f.IntVar(&flagCheckStart, "start", 0, "First piece of the available run")
	f.IntVar(&flagCheckEnd, "end", 0, "Last piece of the available run")
	f.BoolVar(&flagCheckPaused, "paused", false, "Playback is currently paused for buffering")
	checkCmd.MarkFlagRequired("duration")
	checkCmd.MarkFlagRequired("total")
}

func checkRun(cmd *cobra.Command, args []string) error {
	mediaType, err := media.ParseMediaType(flagCheckType)
	if err != nil {
		return err
	}

	snap := media.PieceAvailability{
		TotalPieces:         flagCheckTotal,
		StartAvailablePiece: flagCheckStart,
		EndAvailablePiece:   flagCheckEnd,
	}
	state := media.PlaybackState{
		Type:                 mediaType,
		TotalDurationSeconds: flagCheckDuration,
		PositionSeconds:      flagCheckPosition,
		IsPausedForBuffering: flagCheckPaused,
	}

	policy := buffering.NewPolicy(cfg.MinimumMovieBuffering, cfg.MinimumShowBuffering)
	return printCheck(cmd.OutOrStdout(), buffering.New(policy), snap, state)
}

// printCheck writes the inputs as fractions and the resulting decision.
func printCheck(w io.Writer, eval buffering.Evaluator, snap media.PieceAvailability, state media.PlaybackState) error {
	if err := buffering.Validate(snap, state); err != nil {
		return fmt.Errorf("cannot evaluate: %w", err)
	}

	_, decision := eval.Step(snap, state)

	fmt.Fprintf(w, "play:       %.4f\n", state.PlayFraction())
	fmt.Fprintf(w, "available:  %.4f - %.4f\n", snap.StartFraction(), snap.EndFraction())
	fmt.Fprintf(w, "min buffer: %.4f (%s)\n", eval.Policy.MinBufferFraction(state.Type), state.Type)
	fmt.Fprintf(w, "pause:      %t\n", eval.ShouldPauseForBuffering(snap, state))
	fmt.Fprintf(w, "resume:     %t\n", eval.ShouldResumeFromBuffering(snap, state))
	fmt.Fprintf(w, "decision:   %s\n", decision)
	return nil
}
