package anthropic

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxEventSize bounds a single SSE line; large thinking deltas can exceed the
// bufio default.
const maxEventSize = 1 << 20

// sseReader splits a text/event-stream body into (event, data) pairs.
type sseReader struct {
	sc *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseReader{sc: sc}
}

// next returns the next event with a non-empty data field. Multiple data
// lines are joined with newlines. io.EOF is returned once the body is drained.
func (r *sseReader) next() (event, data string, err error) {
	var b strings.Builder
	for r.sc.Scan() {
		line := r.sc.Text()
		if line == "" {
			if b.Len() > 0 {
				return event, b.String(), nil
			}
			event = ""
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(value)
		}
		// Comments (empty field) and unknown fields are ignored.
	}
	if err := r.sc.Err(); err != nil {
		return "", "", fmt.Errorf("anthropic: read: %w", err)
	}
	if b.Len() > 0 {
		return event, b.String(), nil
	}
	return "", "", io.EOF
}
