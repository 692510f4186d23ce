package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Cue is one timed subtitle entry.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Lines []string
}

// Text joins the cue lines with newlines.
func (c Cue) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Track is a parsed subtitle file, cues ordered by start time.
type Track struct {
	Cues []Cue
}

// ActiveAt returns the cue shown at position+delay. A positive delay shows
// subtitles earlier relative to the picture.
func (t *Track) ActiveAt(position, delay time.Duration) (Cue, bool) {
	if t == nil {
		return Cue{}, false
	}
	at := position + delay
	for _, c := range t.Cues {
		if c.Start <= at && c.End > at {
			return c, true
		}
		if c.Start > at {
			break
		}
	}
	return Cue{}, false
}

// Parse reads SRT or WebVTT cues. Blocks without a timing line (headers,
// NOTE and STYLE blocks, SRT indices on their own) are skipped.
func Parse(r io.Reader) (*Track, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		track   Track
		cur     *Cue
		lineNum int
	)
	flush := func() {
		if cur != nil && len(cur.Lines) > 0 {
			track.Cues = append(track.Cues, *cur)
		}
		cur = nil
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if strings.Contains(line, "-->") {
			flush()
			start, end, err := parseTiming(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			cur = &Cue{Start: start, End: end}
			continue
		}

		if cur == nil {
			continue
		}
		if text := StripMarkup(line); text != "" {
			cur.Lines = append(cur.Lines, text)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading subtitles: %w", err)
	}

	sort.SliceStable(track.Cues, func(i, j int) bool {
		return track.Cues[i].Start < track.Cues[j].Start
	})
	return &track, nil
}

func parseTiming(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, "-->", 2)
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// VTT cue settings may follow the end timestamp.
	fields := strings.Fields(parts[1])
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("missing end timestamp")
	}
	end, err := parseTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("cue ends before it starts: %s", line)
	}
	return start, end, nil
}

// parseTimestamp accepts hh:mm:ss,mmm (SRT), hh:mm:ss.mmm and mm:ss.mmm (VTT).
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.Replace(s, ",", ".", 1)
	var frac string
	if i := strings.IndexByte(s, '.'); i != -1 {
		s, frac = s[:i], s[i+1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed timestamp %q", s)
	}

	var total time.Duration
	units := []time.Duration{time.Second, time.Minute, time.Hour}
	for i := range parts {
		part := parts[len(parts)-1-i]
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed timestamp component %q", part)
		}
		total += time.Duration(n) * units[i]
	}

	if frac != "" {
		for len(frac) < 3 {
			frac += "0"
		}
		ms, err := strconv.Atoi(frac[:3])
		if err != nil {
			return 0, fmt.Errorf("malformed milliseconds %q", frac)
		}
		total += time.Duration(ms) * time.Millisecond
	}
	return total, nil
}

// StripMarkup removes inline tags such as <i>, <b>, <u> and <font> from a
// subtitle line and decodes HTML entities.
func StripMarkup(line string) string {
	if !strings.ContainsAny(line, "<&") {
		return strings.TrimSpace(line)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(line))
	if err != nil {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(doc.Text())
}
