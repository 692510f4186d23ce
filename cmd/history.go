package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"popcorn/internal/config"
	"popcorn/internal/history"
	"popcorn/internal/playback"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved playback positions",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <media>",
	Short: "Forget the saved position for a file or URL",
	Args:  cobra.ExactArgs(1),
	RunE:  historyRmRun,
}

func init() {
	historyCmd.AddCommand(historyRmCmd)
}

func openHistoryStore() (*history.Store, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return store, nil
}

func historyRun(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	items := history.FormatForDisplay(entries)
	for i, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", items[i], playback.FormatClock(e.Position), e.Path)
	}
	return w.Flush()
}

func historyRmRun(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	key := historyKey(args[0])
	if _, err := store.Get(key); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := store.Remove(key); err != nil {
		return err
	}
	debugf("removed %s from history", key)
	return nil
}
