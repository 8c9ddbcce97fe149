package util

import "strings"

const (
	// MaxInputRows caps the textarea row count reported to clients.
	MaxInputRows = 10

	charsPerRow = 100
)

// InputRows returns the number of textarea rows needed for text: one row per
// line break plus one per hundred characters, starting at one and capped at
// MaxInputRows.
func InputRows(text string) int {
	rows := strings.Count(text, "\n") + len(text)/charsPerRow + 1
	if rows > MaxInputRows {
		return MaxInputRows
	}
	return rows
}
