package lang

import "strings"

// DedentBlock normalizes the content of a dedented string literal.
//
// A single newline immediately after the opening quote and a single newline
// followed by a whitespace-only line immediately before the closing quote are
// removed, then the remaining content is passed to [Dedent].
func DedentBlock(raw string) string {
	return Dedent(trimMarkers(raw))
}

func trimMarkers(s string) string {
	switch {
	case strings.HasPrefix(s, "\r\n"):
		s = s[2:]
	case strings.HasPrefix(s, "\n"):
		s = s[1:]
	}

	if i := strings.LastIndexByte(s, '\n'); i >= 0 && isBlank(s[i+1:]) {
		s = strings.TrimSuffix(s[:i], "\r")
	}

	return s
}

// Dedent removes the longest run of leading whitespace common to every
// non-blank line of s. Spaces and tabs each count as one character. Blank
// lines lose at most their own whitespace and remain blank. Dedent is
// idempotent.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")

	indent := -1

	for _, line := range lines {
		if isBlank(line) {
			continue
		}

		if n := leadingWhitespace(line); indent < 0 || n < indent {
			indent = n
		}
	}

	if indent <= 0 {
		return s
	}

	for i, line := range lines {
		lines[i] = line[min(indent, leadingWhitespace(line)):]
	}

	return strings.Join(lines, "\n")
}

func leadingWhitespace(line string) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}

	return n
}

func isBlank(line string) bool {
	return strings.Trim(line, " \t\r") == ""
}
