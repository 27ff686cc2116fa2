package ingestion

import (
	"regexp"
	"strings"
)

var (
	inlineSpace  = regexp.MustCompile(`\s+`)
	extraBlanks  = regexp.MustCompile(`\n\n\n+`)
	bulletPrefix = []string{"- ", "* ", "• ", "· "}
)

// CleanText normalizes extracted page or transcript text: LF line endings,
// collapsed inline whitespace, at most one blank line between blocks.
// Markdown headings and bullet items keep their markers.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\u00a0", " ")

	lines := strings.Split(content, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		cleanedLines = append(cleanedLines, cleanLine(line))
	}

	result := strings.Join(cleanedLines, "\n")
	result = extraBlanks.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}

	if isBulletLine(trimmed) {
		marker, rest, _ := strings.Cut(trimmed, " ")
		return marker + " " + inlineSpace.ReplaceAllString(strings.TrimSpace(rest), " ")
	}
	return inlineSpace.ReplaceAllString(trimmed, " ")
}

func isBulletLine(line string) bool {
	for _, p := range bulletPrefix {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
