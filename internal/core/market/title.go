package market

import (
	"strings"
)

var titleSeparators = []string{" at ", " @ ", " vs. ", " vs ", " v. ", " v "}

// splitTitle parses "Buffalo at Houston Winner?" into ("Buffalo", "Houston").
// The first team is the away side for "at"/"@" titles.
func splitTitle(title string) (string, string, bool) {
	title = strings.TrimSpace(title)
	if i := strings.Index(title, ": "); i >= 0 {
		title = strings.TrimSpace(title[i+2:])
	}
	if title == "" {
		return "", "", false
	}
	lower := strings.ToLower(title)
	if len(lower) != len(title) {
		lower = title
	}
	for _, sep := range titleSeparators {
		idx := strings.Index(lower, sep)
		if idx < 0 {
			continue
		}
		t1 := strings.TrimSpace(title[:idx])
		t2 := stripOutcomeNoise(title[idx+len(sep):])
		if t1 != "" && t2 != "" {
			return t1, t2, true
		}
	}
	return "", "", false
}

// stripOutcomeNoise removes the trailing question/winner decoration that
// market titles and yes-subtitles carry around a team name.
func stripOutcomeNoise(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "?")
	for _, suffix := range []string{" winner", " to win", " wins", " win"} {
		if strings.HasSuffix(strings.ToLower(s), suffix) {
			s = s[:len(s)-len(suffix)]
			break
		}
	}
	return strings.TrimSpace(s)
}
