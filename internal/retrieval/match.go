// Package retrieval implements the tiered entry retrieval engine: it
// decides, on every narrative turn, which lorebook entries to inject into
// the prompt, in what priority order, and with what stickiness decay.
package retrieval

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Matches reports whether a token occurs in the haystack. Tokens shorter
// than two characters after trimming are rejected as too noisy. A direct
// substring check runs first so partial-word hits inside compound words
// still match; the word-boundary regex is the stricter fallback.
// Case-insensitive throughout.
func Matches(token, haystack string) bool {
	token = strings.TrimSpace(token)
	if utf8.RuneCountInString(token) < 2 {
		return false
	}
	if strings.Contains(strings.ToLower(haystack), strings.ToLower(token)) {
		return true
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(token) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(haystack)
}
