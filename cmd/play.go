package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"popcorn/internal/availability"
	"popcorn/internal/buffering"
	"popcorn/internal/config"
	"popcorn/internal/history"
	"popcorn/internal/httputil"
	"popcorn/internal/media"
	"popcorn/internal/playback"
	"popcorn/internal/player"
	"popcorn/internal/subtitle"
	"popcorn/internal/ui"
)

var (
	flagType     string
	flagFeed     string
	flagSubs     string
	flagTitle    string
	flagContinue bool
)

var playCmd = &cobra.Command{
	Use:   "play <media>",
	Short: "Play a file or URL, pausing whenever playback outruns the download",
	Long: `Play starts mpv on the given file or URL and watches piece availability
from --feed: a newline-delimited JSON file or FIFO, "-" for stdin, or an
HTTP(S) status endpoint that is polled. Each snapshot looks like

  {"total_pieces":1200,"start_available_piece":0,"end_available_piece":480}

Without a feed the media is played as-is.`,
	Args: cobra.ExactArgs(1),
	RunE: playRun,
}

func init() {
	f := playCmd.Flags()
	f.StringVarP(&flagType, "type", "t", "movie", "Media type: movie | show | trailer | other")
	f.StringVarP(&flagFeed, "feed", "f", "", "Piece availability source: file, - or URL")
	f.StringVarP(&flagSubs, "subs", "s", "", "Subtitle file or URL")
	f.StringVar(&flagTitle, "title", "", "Title to display")
	f.BoolVarP(&flagContinue, "continue", "c", false, "Auto-resume from history")
}

func playRun(cmd *cobra.Command, args []string) error {
	source := args[0]
	mediaType, err := media.ParseMediaType(flagType)
	if err != nil {
		return err
	}
	if source == "-" && flagFeed == "-" {
		return fmt.Errorf("media and feed cannot both read stdin")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key := historyKey(source)
	title := flagTitle
	if title == "" {
		title = defaultTitle(source)
	}

	store := openHistory()
	if store != nil {
		defer store.Close()
	}

	var startPos float64
	if flagContinue && store != nil {
		if e, err := store.Get(key); err == nil {
			startPos = e.Position
			debugf("resuming from position: %.0fs", startPos)
		} else if !errors.Is(err, history.ErrNotFound) {
			debugf("reading history failed: %v", err)
		}
	}

	// Handle subtitles
	var (
		subFile string
		track   *subtitle.Track
	)
	if !flagNoSubs {
		if sub := pickSubtitle(source); sub != nil {
			tmpDir, err := subtitle.NewTempDir()
			if err == nil {
				defer tmpDir.Cleanup()
				subFile, track, err = tmpDir.Load(ctx, *sub)
				if err != nil {
					debugf("subtitle load failed: %v", err)
					subFile, track = "", nil // Continue without subs
				} else {
					debugf("subtitle file: %s (%d cues)", subFile, len(track.Cues))
				}
			}
		}
	}

	feed, closeFeed, err := openFeed(ctx, flagFeed)
	if err != nil {
		return err
	}
	defer closeFeed()

	engine, err := player.Launch(ctx, player.Options{
		Binary:   cfg.Player,
		Source:   source,
		Title:    title,
		StartPos: startPos,
		Volume:   cfg.Volume,
		SubFile:  subFile,
	}, logger)
	if err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	defer engine.Close()

	eval := buffering.New(buffering.NewPolicy(cfg.MinimumMovieBuffering, cfg.MinimumShowBuffering))
	session := playback.New(engine, eval, feed, playback.Options{
		Title:         title,
		Type:          mediaType,
		StartPosition: startPos,
		Volume:        cfg.Volume,
		Subtitles:     track,
	}, logger)
	debugf("session %s: %s (%s)", session.ID(), source, mediaType)

	viewDone := make(chan error, 1)
	if ui.IsTerminal(os.Stdout) {
		// Log lines would tear the status view; keep only errors unless debugging.
		if !cfg.Debug {
			logger.SetLevel(logrus.ErrorLevel)
		}
		go func() { viewDone <- ui.Run(session) }()
	} else {
		go func() {
			ui.Log(session.Updates(), logger)
			viewDone <- nil
		}()
	}

	res, runErr := session.Run(ctx)
	engine.Close()
	viewErr := <-viewDone

	if store != nil {
		saveHistory(store, media.HistoryEntry{
			Path:     key,
			Title:    title,
			Type:     mediaType,
			Position: res.Position,
			Duration: res.Duration,
		}, res.Ended)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("playback failed: %w", runErr)
	}
	return viewErr
}

// openFeed starts the availability source named by spec. An empty spec
// returns a nil channel, which never delivers.
func openFeed(ctx context.Context, spec string) (<-chan media.PieceAvailability, func(), error) {
	noop := func() {}
	switch {
	case spec == "":
		return nil, noop, nil
	case spec == "-":
		return availability.Start(ctx, availability.NewReaderFeed(os.Stdin, logger), logger), noop, nil
	case httputil.IsRemote(spec):
		f, err := availability.NewHTTPFeed(httputil.NewClient(), spec, cfg.FeedInterval.Duration, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("availability feed: %w", err)
		}
		return availability.Start(ctx, f, logger), noop, nil
	default:
		file, err := os.Open(spec)
		if err != nil {
			return nil, noop, fmt.Errorf("opening availability feed: %w", err)
		}
		return availability.Start(ctx, availability.NewReaderFeed(file, logger), logger), func() { file.Close() }, nil
	}
}

// pickSubtitle returns the --subs file, or the best sidecar file for a local
// media file.
func pickSubtitle(source string) *media.Subtitle {
	if flagSubs != "" {
		return &media.Subtitle{URL: flagSubs, Label: filepath.Base(flagSubs)}
	}
	if source == "-" || httputil.IsRemote(source) {
		return nil
	}
	subs, err := subtitle.Sidecars(source)
	if err != nil {
		debugf("looking for subtitles: %v", err)
		return nil
	}
	if best := subtitle.BestMatch(subs, cfg.SubsLanguage); best != nil {
		return best
	}
	// An untagged "<name>.srt" is used when no language matches.
	for _, s := range subs {
		if s.Language == "" {
			return &s
		}
	}
	return nil
}

// historyKey identifies media across runs: absolute paths for local files,
// the URL otherwise.
func historyKey(source string) string {
	if source == "-" || httputil.IsRemote(source) || strings.Contains(source, "://") {
		return source
	}
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return source
}

func defaultTitle(source string) string {
	switch {
	case source == "-":
		return "stdin"
	case strings.Contains(source, "://"):
		return httputil.FilenameFromURL(source, source)
	default:
		return filepath.Base(source)
	}
}

func openHistory() *history.Store {
	if !cfg.History {
		return nil
	}
	path, err := config.HistoryPath()
	if err != nil {
		debugf("history path: %v", err)
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		debugf("opening history failed: %v", err)
		return nil
	}
	return store
}

// saveHistory records where playback stopped. Finished media is dropped so
// --continue starts it from the beginning.
func saveHistory(store *history.Store, entry media.HistoryEntry, ended bool) {
	var err error
	if ended || entry.Path == "-" {
		err = store.Remove(entry.Path)
	} else {
		err = store.Save(entry)
	}
	if err != nil {
		debugf("saving history failed: %v", err)
	}
}
