package pdfparse

import (
	"regexp"
	"strings"
)

var (
	unGarbageRe   = regexp.MustCompile(`<[/<]*\s*UN`)
	tripleSlashRe = regexp.MustCompile(`/\s*/\s*/`)
	spaceRunRe    = regexp.MustCompile(`[ \t]+`)
)

// Normalize reverses the character damage the PDF rasterizer introduces
// around the UN unit marker and collapses space runs. Newlines pass
// through untouched; replacement order matters, the literal fixes run
// before the catch-all bracket pattern.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "/<<UN", " / UN ")
	text = strings.ReplaceAll(text, "</<", " / ")
	text = strings.ReplaceAll(text, "<</", " / ")
	text = strings.ReplaceAll(text, "</", " /")

	text = unGarbageRe.ReplaceAllString(text, " UN ")
	text = tripleSlashRe.ReplaceAllString(text, " / ")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return text
}
