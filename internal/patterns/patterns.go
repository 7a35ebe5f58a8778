// Package patterns provides the shared normaliser and the ranked, grok-style field extractor
// used by both ticket pipelines.
package patterns

import (
	"regexp"
	"strings"
)

// Normalize collapses every run of whitespace (spaces, tabs, line breaks) into a single
// space and trims both ends. It is idempotent.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Blocks splits text at every match of start. Each block begins with its start marker and
// runs up to the next marker or the end of text; text before the first marker is dropped.
// Blocks stand in for look-ahead terminators, which RE2 does not support.
func Blocks(text string, start *regexp.Regexp) []string {
	locs := start.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, text[loc[0]:end])
	}
	return blocks
}
