package optimizer

import (
	"regexp"
	"strings"
)

var (
	fillerPhrases = regexp.MustCompile(`(?i)\b(?:could you please|i would like you to|i want you to|can you|please|kindly)\s+`)
	anySpace      = regexp.MustCompile(`\s+`)
)

// NormalizePrompt strips polite filler phrases and collapses whitespace.
func NormalizePrompt(prompt string) string {
	out := fillerPhrases.ReplaceAllString(prompt, "")
	out = anySpace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
