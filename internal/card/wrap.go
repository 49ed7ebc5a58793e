package card

import "strings"

// Wrap breaks text into lines no wider than maxWidth according to measure,
// filling each line greedily. A single word wider than maxWidth gets a line
// of its own rather than being split.
func Wrap(text string, measure func(string) int, maxWidth int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if measure(candidate) <= maxWidth {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
