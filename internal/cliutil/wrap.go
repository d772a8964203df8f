// Package cliutil holds helpers shared by the skipbench commands.
package cliutil

import (
	"strings"
	"unicode/utf8"
)

const (
	// Wrap is the number of characters to wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	return WrapWidth(text, Wrap)
}

// WrapWidth wraps text at width characters. A word longer than width gets a
// line of its own and is not split.
func WrapWidth(text string, width int) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := utf8.RuneCountInString(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > width {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}
