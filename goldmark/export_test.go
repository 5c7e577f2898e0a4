package goldmark

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// VisibleLen parses src in one shot and returns its visible-text length.
func VisibleLen(src string) int {
	b := []byte(src)
	doc := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser().Parse(text.NewReader(b))
	return visibleLen(doc, b)
}

var Sanitize = sanitize
