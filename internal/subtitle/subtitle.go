// Package subtitle handles subtitle track selection, parsing and timing.
// Remote files are fetched into a randomized temp directory instead of a
// predictable path.
package subtitle

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"popcorn/internal/httputil"
	"popcorn/internal/media"
)

// maxFileSize caps downloaded subtitle files.
const maxFileSize = 10 * 1024 * 1024

// Filter returns subtitles matching the preferred language (case-insensitive).
func Filter(subtitles []media.Subtitle, language string) []media.Subtitle {
	if language == "" {
		return subtitles
	}

	lang := strings.ToLower(language)
	var matched []media.Subtitle

	for _, sub := range subtitles {
		if strings.Contains(strings.ToLower(sub.Language), lang) ||
			strings.Contains(strings.ToLower(sub.Label), lang) {
			matched = append(matched, sub)
		}
	}

	return matched
}

// BestMatch returns the best matching subtitle for the given language.
// Prefers a non-SDH match, then the first match.
func BestMatch(subtitles []media.Subtitle, language string) *media.Subtitle {
	filtered := Filter(subtitles, language)
	if len(filtered) == 0 {
		return nil
	}

	lang := strings.ToLower(language)

	for _, sub := range filtered {
		label := strings.ToLower(sub.Label)
		if strings.Contains(label, lang) && !strings.Contains(label, "sdh") {
			return &sub
		}
	}

	return &filtered[0]
}

// TempDir manages a secure temporary directory for subtitle files.
type TempDir struct {
	path   string
	client *http.Client
}

// NewTempDir creates a randomized temporary directory for subtitle files.
func NewTempDir() (*TempDir, error) {
	dir, err := os.MkdirTemp("", "popcorn-subs-*")
	if err != nil {
		return nil, fmt.Errorf("creating subtitle temp dir: %w", err)
	}
	return &TempDir{path: dir, client: httputil.NewClient()}, nil
}

// Cleanup removes the temporary directory and all contents.
func (t *TempDir) Cleanup() {
	if t.path != "" {
		os.RemoveAll(t.path)
	}
}

// Download fetches a subtitle file to the temp directory and returns the local path.
func (t *TempDir) Download(ctx context.Context, sub media.Subtitle) (string, error) {
	if err := httputil.ValidateURL(sub.URL); err != nil {
		return "", fmt.Errorf("invalid subtitle URL: %w", err)
	}

	localPath := filepath.Join(t.path, httputil.FilenameFromURL(sub.URL, "subtitle.vtt"))

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("creating subtitle file: %w", err)
	}
	defer f.Close()

	if err := httputil.Download(ctx, t.client, sub.URL, f, maxFileSize); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("downloading subtitle: %w", err)
	}

	return localPath, nil
}

// Load returns a local file path for sub, downloading it when remote, and
// its parsed cues.
func (t *TempDir) Load(ctx context.Context, sub media.Subtitle) (string, *Track, error) {
	path := sub.URL
	if httputil.IsRemote(sub.URL) {
		var err error
		path, err = t.Download(ctx, sub)
		if err != nil {
			return "", nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("opening subtitle file: %w", err)
	}
	defer f.Close()

	track, err := Parse(f)
	if err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return path, track, nil
}
