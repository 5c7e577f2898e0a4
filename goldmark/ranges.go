package goldmark

import (
	"bytes"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
)

// lineStarts returns, for each top-level node, the offset in src of the line
// on which the node begins, or -1 when the parse tree carries no position
// for it. Single-line nodes without positions (thematic breaks, empty ATX
// headings) are located by scanning back from the following node.
func lineStarts(nodes []ast.Node, src []byte) []int {
	out := make([]int, len(nodes))
	next := len(src)
	for i := len(nodes) - 1; i >= 0; i-- {
		off := -1
		if o, ok := firstOffset(nodes[i], src); ok {
			off = lineStart(src, o)
		} else if singleLine(nodes[i]) && next >= 0 {
			off = lastLine(src, next)
		}
		out[i] = off
		next = off
	}
	return out
}

// firstOffset returns a byte offset on the first source line of n.
func firstOffset(n ast.Node, src []byte) (int, bool) {
	switch n := n.(type) {
	case *ast.FencedCodeBlock:
		if n.Info != nil {
			return n.Info.Segment.Start, true
		}
		if n.Lines().Len() > 0 {
			// The opening fence is the line before the first body line.
			if ls := lineStart(src, n.Lines().At(0).Start); ls > 0 {
				return ls - 1, true
			}
		}
		return 0, false
	case *ast.Text:
		return n.Segment.Start, true
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start, true
	}
	if c := n.FirstChild(); c != nil {
		return firstOffset(c, src)
	}
	return 0, false
}

func singleLine(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.ThematicBreak:
		return true
	case *ast.Heading:
		return n.Lines().Len() == 0
	}
	return false
}

// lineStart returns the offset of the start of the line containing off.
func lineStart(src []byte, off int) int {
	off = min(max(off, 0), len(src))
	return bytes.LastIndexByte(src[:off], '\n') + 1
}

// lastLine returns the start of the last non-blank line ending before end,
// or -1 if there is none.
func lastLine(src []byte, end int) int {
	i := min(end, len(src))
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	if i == 0 {
		return -1
	}
	return lineStart(src, i-1)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// visibleLen returns the number of visible runes n renders to. Leaves with
// literal text count their runes, soft and hard line breaks count one, void
// nodes count zero and containers sum their children.
func visibleLen(n ast.Node, src []byte) int {
	switch n := n.(type) {
	case *ast.Text:
		w := utf8.RuneCountInString(sanitize(string(unescape(n.Segment.Value(src)))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w++
		}
		return w
	case *ast.String:
		return utf8.RuneCount(n.Value)
	case *ast.AutoLink:
		return utf8.RuneCount(n.Label(src))
	case *ast.RawHTML:
		w := 0
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			w += utf8.RuneCount(seg.Value(src))
		}
		return w
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		w := 0
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			w += utf8.RuneCount(line.Value(src))
		}
		return w
	case *ast.ThematicBreak, *ast.Image, *east.TaskCheckBox:
		return 0
	}
	w := 0
	raw := n.Kind() == ast.KindCodeSpan
	for c := n.FirstChild(); c != nil; {
		if _, ok := c.(*ast.Text); ok {
			var s string
			s, c = textRun(c, src, raw)
			w += utf8.RuneCountInString(s)
			continue
		}
		w += visibleLen(c, src)
		c = c.NextSibling()
	}
	return w
}
