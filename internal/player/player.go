// Package player launches and controls the external media player.
// All invocations use exec.Command with explicit argument slices; nothing is
// passed through a shell.
package player

import (
	"fmt"
	"strings"
)

// Options describes what to play and how to start the player.
type Options struct {
	Binary   string  // mpv binary name or path
	Source   string  // file path, URL or "-" for stdin
	Title    string  // shown in the player window
	StartPos float64 // seconds
	Volume   int     // percent
	SubFile  string  // local subtitle file, optional
}

// buildArgs returns the mpv argument list for opts.
func buildArgs(opts Options, socketPath string) []string {
	args := []string{
		"--input-ipc-server=" + socketPath,
		"--pause",
		"--really-quiet",
		"--no-terminal",
		fmt.Sprintf("--volume=%d", opts.Volume),
	}

	if opts.Title != "" {
		args = append(args, "--force-media-title="+opts.Title)
	}
	if opts.StartPos > 0 {
		args = append(args, fmt.Sprintf("--start=+%.0f", opts.StartPos))
	}
	if opts.SubFile != "" {
		args = append(args, "--sub-file="+opts.SubFile)
	}

	// "--" ends option parsing so a source starting with a dash is not
	// read as a flag, except for mpv's own "-" stdin marker.
	if opts.Source == "-" || !strings.HasPrefix(opts.Source, "-") {
		return append(args, "--", opts.Source)
	}
	return append(args, "--", "./"+opts.Source)
}
