package binder

import (
	"regexp"
	"strings"
)

var (
	paragraphBreak   = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceBoundary = regexp.MustCompile(`[.!?]+\s+`)
)

// splitScenes splits a story into scene fragments. Paragraphs separated by a
// blank line are scenes; text without any blank line is split on sentence
// boundaries instead. Fragments are trimmed and empty ones dropped.
func splitScenes(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	parts := paragraphBreak.Split(text, -1)
	if len(parts) == 1 {
		parts = sentenceBoundary.Split(text, -1)
	}

	scenes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			scenes = append(scenes, p)
		}
	}
	return scenes
}
