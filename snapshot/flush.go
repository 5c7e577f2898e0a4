// Package snapshot implements a lower-fidelity streaming strategy: text is
// revealed a few runes per frame and the whole document is re-rendered only
// at heuristic safe points, without block identity.
package snapshot

import (
	"regexp"
	"strings"
)

var tableSeparator = regexp.MustCompile(`^\s*\|?[-: ]+\|[-| :]+\|?\s*$`)

// longBuffer is the size above which a single trailing newline is a safe
// point, so long paragraphs do not wait for a blank line.
const longBuffer = 80

type tableState int

const (
	tableNone tableState = iota
	tableOpen
	tableEnded
)

// ShouldFlush reports whether buffer is at a point where rendering it will
// not show half-formed markdown: no open table or code fence, no unclosed
// emphasis or code span on the last line, and not in the middle of a list
// marker.
func ShouldFlush(buffer string) bool {
	switch detectTable(buffer) {
	case tableEnded:
		return true
	case tableOpen:
		return false
	}

	fences := strings.Count(buffer, "```")
	if fences%2 == 1 {
		return false
	}
	if fences > 0 && strings.HasSuffix(buffer, "\n") {
		return true
	}

	if hasUnclosedInline(buffer) {
		return false
	}
	if strings.HasSuffix(buffer, "\n- ") || strings.HasSuffix(buffer, "\n* ") {
		return false
	}
	if strings.HasSuffix(buffer, "\n\n") {
		return true
	}
	return len(buffer) > longBuffer && strings.HasSuffix(buffer, "\n")
}

func detectTable(buffer string) tableState {
	lines := strings.Split(buffer, "\n")
	in := false
	for i, line := range lines {
		prev := ""
		if i > 0 {
			prev = lines[i-1]
		}
		if !in && strings.Contains(prev, "|") && tableSeparator.MatchString(line) {
			in = true
			continue
		}
		if in && !strings.HasPrefix(strings.TrimSpace(line), "|") {
			in = false
		}
	}
	if in {
		return tableOpen
	}

	last := lines[len(lines)-1]
	prev := ""
	if len(lines) > 1 {
		prev = lines[len(lines)-2]
	}
	if strings.Contains(prev, "|") && !strings.HasPrefix(strings.TrimSpace(last), "|") {
		return tableEnded
	}
	return tableNone
}

// hasUnclosedInline reports an odd number of bold, italic or code-span
// markers on the last line.
func hasUnclosedInline(text string) bool {
	last := text[strings.LastIndexByte(text, '\n')+1:]

	var bold, italic, code int
	forRuns(last, '*', func(n int) {
		bold += n / 2
		if n == 1 {
			italic++
		}
	})
	forRuns(last, '`', func(n int) {
		code += min(n, 2)
	})
	return bold%2 == 1 || italic%2 == 1 || code%2 == 1
}

// forRuns calls fn with the length of every maximal run of c in s.
func forRuns(s string, c byte, fn func(n int)) {
	for i := 0; i < len(s); {
		if s[i] != c {
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] == c {
			j++
		}
		fn(j - i)
		i = j
	}
}
