package goldmark

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/util"
)

// maxEntityLen bounds the scan for the ';' closing an entity or numeric
// character reference.
const maxEntityLen = 32

// textRun renders first and the *ast.Text siblings that directly follow it
// as one sanitized string, so an escape sequence the parser split across
// nodes is stripped whole. Soft line breaks become a space and hard breaks
// a newline. Inside code spans (raw) backslash escapes and entities are
// kept literally. It returns the node after the run.
func textRun(first ast.Node, src []byte, raw bool) (string, ast.Node) {
	var sb strings.Builder
	c := first
	for ; c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			break
		}
		v := t.Segment.Value(src)
		if !raw && !t.IsRaw() {
			v = unescape(v)
		}
		sb.Write(v)
		if t.SoftLineBreak() {
			sb.WriteByte(' ')
		}
		if t.HardLineBreak() {
			sb.WriteByte('\n')
		}
	}
	return sanitize(sb.String()), c
}

// unescape removes backslash escapes before ASCII punctuation and resolves
// entity and numeric character references in a single pass, so an escaped
// ampersand is not resolved afterwards.
func unescape(b []byte) []byte {
	if bytes.IndexByte(b, '\\') < 0 && bytes.IndexByte(b, '&') < 0 {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '\\' && i+1 < len(b) && util.IsPunct(b[i+1]):
			out = append(out, b[i+1])
			i += 2
			continue
		case c == '&':
			if end := bytes.IndexByte(b[i:min(len(b), i+maxEntityLen)], ';'); end > 1 {
				ref := b[i : i+end+1]
				if res := util.ResolveNumericReferences(util.ResolveEntityNames(ref)); !bytes.Equal(res, ref) {
					out = append(out, res...)
					i += end + 1
					continue
				}
			}
		}
		out = append(out, c)
		i++
	}
	return out
}
