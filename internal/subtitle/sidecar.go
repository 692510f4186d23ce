package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"popcorn/internal/media"
)

var languageCodes = map[string]string{
	"en": "English", "eng": "English",
	"es": "Spanish", "spa": "Spanish",
	"fr": "French", "fre": "French", "fra": "French",
	"de": "German", "ger": "German", "deu": "German",
	"it": "Italian", "ita": "Italian",
	"pt": "Portuguese", "por": "Portuguese",
	"nl": "Dutch", "dut": "Dutch",
	"ru": "Russian", "rus": "Russian",
	"ja": "Japanese", "jpn": "Japanese",
	"zh": "Chinese", "chi": "Chinese",
}

// Sidecars lists subtitle files stored next to a local media file, named
// like "Movie.srt", "Movie.en.srt" or "Movie.English.SDH.vtt".
func Sidecars(mediaPath string) ([]media.Subtitle, error) {
	dir := filepath.Dir(mediaPath)
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing subtitles: %w", err)
	}

	var subs []media.Subtitle
	for _, e := range entries {
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if e.IsDir() || (ext != ".srt" && ext != ".vtt") {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if base != stem && !strings.HasPrefix(base, stem+".") {
			continue
		}

		tags := strings.Split(strings.TrimPrefix(strings.TrimPrefix(base, stem), "."), ".")
		lang := sidecarLanguage(tags[0])
		subs = append(subs, media.Subtitle{
			Language: lang,
			Label:    strings.TrimSpace(lang + " " + strings.Join(tags[1:], " ")),
			URL:      filepath.Join(dir, name),
		})
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].URL < subs[j].URL })
	return subs, nil
}

// sidecarLanguage expands a language code tag to its name.
func sidecarLanguage(tag string) string {
	if name, ok := languageCodes[strings.ToLower(tag)]; ok {
		return name
	}
	return tag
}
