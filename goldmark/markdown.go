// Package goldmark segments streamed markdown into blocks and renders them
// to ANSI-styled terminal output, using goldmark for parsing and lipgloss
// for styling.
package goldmark

import (
	"github.com/fwojciec/trickle"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs and list items are word-wrapped to width. Code blocks are
// rendered at full width without reflow.
func Render(source string, width int, theme trickle.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	src := []byte(source)
	doc := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser().Parse(text.NewReader(src))
	return newRenderer(theme).blocks(doc, src, width)
}

// RenderBlock renders a block produced by Segmenter without re-parsing it.
// Blocks from other segmenters render as empty strings.
func RenderBlock(b *trickle.Block, width int, theme trickle.Theme) string {
	n, ok := b.Node.(*Node)
	if !ok || n == nil || n.AST == nil {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	return newRenderer(theme).node(n.AST, n.Source, width)
}
