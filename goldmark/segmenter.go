package goldmark

import (
	"fmt"
	"log/slog"

	"github.com/fwojciec/trickle"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var _ trickle.Segmenter = (*Segmenter)(nil)

// Node is the value stored in trickle.Block.Node by the Segmenter. AST
// segments are offsets into Source, the slice of the stream that was parsed
// to produce it.
type Node struct {
	AST    ast.Node
	Source []byte
}

// Segmenter is a trickle.Segmenter backed by goldmark with GitHub Flavored
// Markdown extensions. Only the text after the last committed block is
// parsed on each call.
type Segmenter struct {
	parser parser.Parser
	logger *slog.Logger

	scope     string
	counter   int
	pendingID string

	cursor  int // byte offset where uncommitted text begins
	visible int // visible-text offset where uncommitted text begins
	stable  []*trickle.Block
	refs    []parser.Reference // link reference definitions in committed text

	lastLen    int
	lastStable int
	cached     []*trickle.Block
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithLogger sets the logger for restart and commit diagnostics.
func WithLogger(l *slog.Logger) SegmenterOption {
	return func(s *Segmenter) { s.logger = l }
}

// WithParser replaces the default GFM parser.
func WithParser(p parser.Parser) SegmenterOption {
	return func(s *Segmenter) { s.parser = p }
}

// NewSegmenter returns a Segmenter ready for a new stream.
func NewSegmenter(opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()
	}
	s.Reset()
	return s
}

// Reset discards all blocks and starts a new id scope, so ids from earlier
// generations never collide with new ones.
func (s *Segmenter) Reset() {
	s.scope = uuid.NewString()
	s.counter = 0
	s.pendingID = ""
	s.cursor = 0
	s.visible = 0
	s.stable = nil
	s.refs = nil
	s.lastLen = 0
	s.lastStable = 0
	s.cached = nil
}

// Process segments input, the whole stream received so far. Text shorter
// than the previous call's is treated as a restarted stream.
func (s *Segmenter) Process(input string) []*trickle.Block {
	if len(input) == s.lastLen {
		return s.cached
	}
	if len(input) < s.lastLen {
		s.logger.Warn("stream shrank, resetting segmenter",
			"previous_len", s.lastLen,
			"len", len(input),
			"cursor", s.cursor,
		)
		s.Reset()
	}
	s.lastLen = len(input)

	src := []byte(input[s.cursor:])
	pc := parser.NewContext()
	for _, ref := range s.refs {
		pc.AddReference(ref)
	}
	doc := s.parser.Parse(text.NewReader(src), parser.WithContext(pc))

	nodes := children(doc)
	starts := lineStarts(nodes, src)

	// Commit everything before the last node whose starting line is known.
	k := 0
	for i := len(nodes) - 1; i > 0; i-- {
		if starts[i] >= 0 {
			k = i
			break
		}
	}
	if k > 0 {
		s.commit(nodes[:k], starts[:k+1], src)
	}

	var pending *trickle.Block
	switch rest := nodes[k:]; {
	case len(rest) == 0:
	case len(rest) == 1:
		pending = s.pendingBlock(rest[0], src, len(input))
	case k == 0:
		pending = s.pendingBlock(doc, src, len(input))
	default:
		group := ast.NewDocument()
		for _, n := range rest {
			group.AppendChild(group, n)
		}
		pending = s.pendingBlock(group, src, len(input))
	}

	return s.result(pending)
}

func (s *Segmenter) commit(nodes []ast.Node, starts []int, src []byte) {
	bounds := make([]int, len(nodes)+1)
	bounds[0] = 0
	bounds[len(nodes)] = starts[len(nodes)]
	for i := len(nodes) - 1; i > 0; i-- {
		bounds[i] = starts[i]
		if bounds[i] < 0 {
			bounds[i] = bounds[i+1]
		}
	}

	base := s.cursor
	for i, n := range nodes {
		width := visibleLen(n, src)
		b := &trickle.Block{
			ID:     s.nextID("s"),
			Status: trickle.BlockStable,
			Node:   &Node{AST: n, Source: src},
			Range:  trickle.Range{Start: s.visible, End: s.visible + width},
			Source: trickle.Range{Start: base + bounds[i], End: base + bounds[i+1]},
		}
		s.stable = append(s.stable, b)
		s.visible += width
	}
	s.cursor = base + bounds[len(nodes)]
	s.pendingID = ""
	s.collectReferences(src[:bounds[len(nodes)]])

	s.logger.Debug("committed blocks",
		"count", len(nodes),
		"stable", len(s.stable),
		"cursor", s.cursor,
	)
}

// collectReferences records the link reference definitions in committed
// text so later parses of the remainder resolve them. The first definition
// of a label wins.
func (s *Segmenter) collectReferences(committed []byte) {
	pc := parser.NewContext()
	s.parser.Parse(text.NewReader(committed), parser.WithContext(pc))
	for _, ref := range pc.References() {
		if !s.hasReference(ref.Label()) {
			s.refs = append(s.refs, ref)
		}
	}
}

func (s *Segmenter) hasReference(label []byte) bool {
	for _, ref := range s.refs {
		if util.ToLinkReference(ref.Label()) == util.ToLinkReference(label) {
			return true
		}
	}
	return false
}

// pendingBlock builds the trailing block, which runs from the cursor to
// the end of the stream.
func (s *Segmenter) pendingBlock(n ast.Node, src []byte, end int) *trickle.Block {
	if s.pendingID == "" {
		s.pendingID = s.nextID("p")
	}
	return &trickle.Block{
		ID:     s.pendingID,
		Status: trickle.BlockPending,
		Node:   &Node{AST: n, Source: src},
		Range:  trickle.Range{Start: s.visible, End: s.visible + visibleLen(n, src)},
		Source: trickle.Range{Start: s.cursor, End: end},
	}
}

func (s *Segmenter) result(pending *trickle.Block) []*trickle.Block {
	n := len(s.stable)
	var out []*trickle.Block
	if n == s.lastStable && len(s.cached) == n+1 && pending != nil {
		out = append(s.cached[:n:n], pending)
	} else {
		out = make([]*trickle.Block, 0, n+1)
		out = append(out, s.stable...)
		if pending != nil {
			out = append(out, pending)
		}
	}
	s.lastStable = n
	s.cached = out
	return out
}

func (s *Segmenter) nextID(kind string) string {
	s.counter++
	return fmt.Sprintf("%s-%s%d", s.scope, kind, s.counter)
}

func children(n ast.Node) []ast.Node {
	var out []ast.Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, c)
	}
	return out
}
