package chunker

import (
	"regexp"
	"strings"
)

// whitespace matches every Unicode space character; RE2's \s is ASCII only.
const whitespace = `\s\v\x{1c}-\x{1f}\x{85}\p{Z}`

var (
	blankLinesRe = regexp.MustCompile(`\n[` + whitespace + `]*\n`)
	spaceRunsRe  = regexp.MustCompile(`[ \t]{2,}`)
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}` + whitespace + `.,;:!?()\-]`)
)

// Normalize cleans raw extracted document text before chunking.
// Blank line runs collapse to a single empty line, horizontal space runs to a
// single space, characters other than letters, digits, whitespace and basic
// punctuation are dropped and the result is trimmed.
func Normalize(raw string) string {
	text := blankLinesRe.ReplaceAllString(raw, "\n\n")
	text = spaceRunsRe.ReplaceAllString(text, " ")
	text = disallowedRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
