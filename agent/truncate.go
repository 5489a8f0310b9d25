package agent

import (
	"fmt"
	"strings"
)

// DefaultToolResultChars bounds the serialized result of a single tool
// call before it is wrapped in a tool message. Oversized results waste
// context and can starve later iterations.
const DefaultToolResultChars = 30000

// DefaultToolResultLines bounds the line count of a tool result after
// character truncation.
const DefaultToolResultLines = 400

// TruncateChars clips output to maxChars keeping the head and tail,
// with a notice marking how much was dropped from the middle.
func TruncateChars(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	half := maxChars / 2
	removed := len(output) - maxChars
	return output[:half] +
		fmt.Sprintf("\n\n[WARNING: Tool result was truncated. %d characters were removed from the middle. "+
			"Re-run the tool with more targeted parameters if you need the omitted parts.]\n\n",
			removed) +
		output[len(output)-half:]
}

// TruncateLines clips output to maxLines using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}
	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount
	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolResult applies character truncation first, then line
// truncation, using the default budgets.
func TruncateToolResult(output string) string {
	return TruncateLines(TruncateChars(output, DefaultToolResultChars), DefaultToolResultLines)
}
