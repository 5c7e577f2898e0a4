package goldmark_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fwojciec/trickle"
	"github.com/fwojciec/trickle/goldmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark/ast"
)

const richDoc = "# Heading\n\n" +
	"Intro with **bold**, `code` and Ünïcödé 日本.\n" +
	"Second line of the intro.\n\n" +
	"- item one\n" +
	"- item two\n" +
	"  - nested\n\n" +
	"```go\n" +
	"func main() {}\n" +
	"```\n\n" +
	"| a | b |\n" +
	"|---|---|\n" +
	"| 1 | 2 |\n\n" +
	"> quote\n\n" +
	"---\n\n" +
	"Final *para*."

// scope returns the id namespace of a block id.
func scope(id string) string {
	return id[:strings.LastIndex(id, "-")]
}

// snapshot captures a stable block's observable fields.
type snapshot struct {
	ptr    *trickle.Block
	id     string
	rng    trickle.Range
	source trickle.Range
	node   any
}

func snap(b *trickle.Block) snapshot {
	return snapshot{ptr: b, id: b.ID, rng: b.Range, source: b.Source, node: b.Node}
}

// checkInvariants asserts the block-list invariants for one Process result.
func checkInvariants(t *testing.T, input string, blocks []*trickle.Block) {
	t.Helper()
	if len(blocks) == 0 {
		return
	}
	assert.Equal(t, 0, blocks[0].Range.Start, "ranges start at zero")
	assert.Equal(t, 0, blocks[0].Source.Start, "sources start at zero")
	for i, b := range blocks {
		assert.LessOrEqual(t, b.Range.Start, b.Range.End)
		assert.LessOrEqual(t, b.Source.Start, b.Source.End)
		if i > 0 {
			assert.Equal(t, blocks[i-1].Range.End, b.Range.Start, "ranges contiguous at %d", i)
			assert.Equal(t, blocks[i-1].Source.End, b.Source.Start, "sources contiguous at %d", i)
		}
		if b.Status == trickle.BlockPending {
			assert.Equal(t, len(blocks)-1, i, "pending block must be last")
			assert.Equal(t, len(input), b.Source.End)
		}
		_, ok := b.Node.(*goldmark.Node)
		assert.True(t, ok)
	}
}

func TestSegmenter_ExampleScenario(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()

	first := seg.Process("# Title\n\nHello")
	require.Len(t, first, 2)
	assert.Equal(t, trickle.BlockStable, first[0].Status)
	assert.Equal(t, trickle.BlockPending, first[1].Status)
	assert.Equal(t, trickle.Range{Start: 0, End: 5}, first[0].Range)
	assert.Equal(t, trickle.Range{Start: 5, End: 10}, first[1].Range)
	assert.IsType(t, &ast.Heading{}, first[0].Node.(*goldmark.Node).AST)

	second := seg.Process("# Title\n\nHello world")
	require.Len(t, second, 2)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, first[1].ID, second[1].ID, "pending id persists while it grows")
	assert.Equal(t, trickle.BlockPending, second[1].Status)
	assert.Equal(t, trickle.Range{Start: 5, End: 16}, second[1].Range)

	third := seg.Process("# Title\n\nHello world\n\nMore")
	require.Len(t, third, 3)
	assert.Same(t, first[0], third[0])
	assert.Equal(t, trickle.BlockStable, third[1].Status)
	assert.Equal(t, trickle.BlockPending, third[2].Status)
	assert.NotEqual(t, second[1].ID, third[1].ID, "committed blocks get fresh ids")
	assert.NotEqual(t, second[1].ID, third[2].ID)
	assert.Equal(t, second[1].Range.End, third[2].Range.Start)
	assert.Equal(t, trickle.Range{Start: 5, End: 16}, third[1].Range)
	assert.Equal(t, trickle.Range{Start: 16, End: 20}, third[2].Range)
	assert.Equal(t, trickle.Range{Start: 9, End: 22}, third[1].Source)
	assert.Equal(t, trickle.Range{Start: 22, End: 26}, third[2].Source)
}

func TestSegmenter_Idempotent(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	a := seg.Process("para one\n\npara two")
	b := seg.Process("para one\n\npara two")

	require.Len(t, b, len(a))
	require.NotEmpty(t, a)
	assert.True(t, &a[0] == &b[0], "same backing slice")
	for i := range a {
		assert.Same(t, a[i], b[i])
	}
}

func TestSegmenter_EmptyInput(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	assert.Empty(t, seg.Process(""))
	assert.Empty(t, seg.Process("\n\n  \n"))
}

func TestSegmenter_IncrementalInvariants(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	stable := map[string]snapshot{}
	var prev []*trickle.Block

	for i := 1; i <= len(richDoc); i++ {
		if i < len(richDoc) && !utf8.RuneStart(richDoc[i]) {
			continue
		}
		input := richDoc[:i]
		blocks := seg.Process(input)
		checkInvariants(t, input, blocks)

		for j, b := range blocks {
			if b.Status != trickle.BlockStable {
				continue
			}
			if s, ok := stable[b.ID]; ok {
				assert.Equal(t, s, snap(b), "stable block %s changed", b.ID)
			} else {
				stable[b.ID] = snap(b)
			}
			// Stable blocks retained from the previous call keep identity.
			if j < len(prev) && prev[j].Status == trickle.BlockStable {
				assert.Same(t, prev[j], b)
			}
		}
		prev = blocks
	}

	final := seg.Process(richDoc)
	require.NotEmpty(t, final)
	assert.Equal(t, goldmark.VisibleLen(richDoc), final[len(final)-1].Range.End)
	assert.Len(t, final, 8)
	for _, b := range final[:len(final)-1] {
		assert.Equal(t, trickle.BlockStable, b.Status)
	}
}

func TestSegmenter_MatchesOneShotRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"rich document", richDoc},
		{"reference defined before use", "Intro.\n\n[ref]: https://example.com\n\nOther para.\n\nSee [ref] here."},
		{"first definition wins", "[a]: https://one.example\n\nText.\n\n[a]: https://two.example\n\nUse [a]."},
		{"escapes and entities", "Price \\*not bold\\* &amp; more &#35;1.\n\nNext `a\\*b`."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			theme := trickle.DefaultTheme()
			seg := goldmark.NewSegmenter()
			var blocks []*trickle.Block
			for i := 1; i <= len(tt.doc); i++ {
				if i < len(tt.doc) && !utf8.RuneStart(tt.doc[i]) {
					continue
				}
				blocks = seg.Process(tt.doc[:i])
			}

			parts := make([]string, 0, len(blocks))
			for _, b := range blocks {
				parts = append(parts, goldmark.RenderBlock(b, 80, theme))
			}
			assert.Equal(t, goldmark.Render(tt.doc, 80, theme), strings.Join(parts, "\n\n"))
		})
	}
}

func TestSegmenter_ReferencesResolveAfterCommit(t *testing.T) {
	t.Parallel()

	theme := trickle.DefaultTheme()
	seg := goldmark.NewSegmenter()
	doc := "[ref]: https://example.com\n\nOther para.\n\nSee [ref] here."
	for i := 1; i <= len(doc); i++ {
		seg.Process(doc[:i])
	}
	blocks := seg.Process(doc)
	last := goldmark.RenderBlock(blocks[len(blocks)-1], 80, theme)
	assert.Contains(t, last, "https://example.com")
	assert.NotContains(t, last, "[ref]")

	seg.Reset()
	blocks = seg.Process("See [ref] here.")
	assert.Contains(t, goldmark.RenderBlock(blocks[0], 80, theme), "[ref]")
}

func TestSegmenter_StructuralSharing(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	a := seg.Process("one\n\ntwo\n\nthr")
	b := seg.Process("one\n\ntwo\n\nthree")
	require.Len(t, a, 3)
	require.Len(t, b, 3)

	assert.Same(t, a[0], b[0])
	assert.Same(t, a[1], b[1])
	assert.NotSame(t, a[2], b[2])
	assert.Equal(t, a[2].ID, b[2].ID)
	assert.Equal(t, "thr", string(a[0].Node.(*goldmark.Node).Source[a[2].Source.Start:a[2].Source.End]))

	c := seg.Process("one\n\ntwo\n\nthree\n\nfour")
	require.Len(t, c, 4)
	assert.Same(t, a[0], c[0])
	assert.Same(t, a[1], c[1])
	assert.Equal(t, trickle.BlockStable, c[2].Status)
}

func TestSegmenter_OpenFenceStaysPending(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	blocks := seg.Process("```go\nfunc a() {\n\n# not a heading\n\nstill code")
	require.Len(t, blocks, 1)
	assert.Equal(t, trickle.BlockPending, blocks[0].Status)
	assert.IsType(t, &ast.FencedCodeBlock{}, blocks[0].Node.(*goldmark.Node).AST)

	blocks = seg.Process("```go\nfunc a() {\n\n# not a heading\n\nstill code\n```\n\nAfter")
	require.Len(t, blocks, 2)
	assert.Equal(t, trickle.BlockStable, blocks[0].Status)
	assert.IsType(t, &ast.FencedCodeBlock{}, blocks[0].Node.(*goldmark.Node).AST)
	assert.IsType(t, &ast.Paragraph{}, blocks[1].Node.(*goldmark.Node).AST)
}

func TestSegmenter_ThematicBreak(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	blocks := seg.Process("Para\n\n---\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, trickle.BlockStable, blocks[0].Status)
	assert.IsType(t, &ast.ThematicBreak{}, blocks[1].Node.(*goldmark.Node).AST)
	assert.Equal(t, 0, blocks[1].Range.Len(), "thematic break is zero width")
	assert.Equal(t, 4, blocks[1].Range.Start)

	blocks = seg.Process("Para\n\n---\n\nNext")
	require.Len(t, blocks, 3)
	assert.Equal(t, trickle.BlockStable, blocks[1].Status)
	assert.Equal(t, trickle.Range{Start: 6, End: 11}, blocks[1].Source)
	assert.Equal(t, trickle.Range{Start: 4, End: 8}, blocks[2].Range)
}

func TestSegmenter_UnpositionedTrailingNode(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()

	// An empty fenced block carries no source position, so nothing commits
	// and the pending block holds every parsed node.
	blocks := seg.Process("Para\n\n```\n```")
	require.Len(t, blocks, 1)
	assert.Equal(t, trickle.BlockPending, blocks[0].Status)
	assert.Equal(t, trickle.Range{Start: 0, End: 4}, blocks[0].Range)
	assert.Equal(t, 2, blocks[0].Node.(*goldmark.Node).AST.ChildCount())

	blocks = seg.Process("Para\n\n```\n```\n\nNext")
	require.Len(t, blocks, 3)
	assert.Equal(t, trickle.BlockStable, blocks[0].Status)
	assert.Equal(t, trickle.BlockStable, blocks[1].Status)
	assert.Equal(t, trickle.BlockPending, blocks[2].Status)
	checkInvariants(t, "Para\n\n```\n```\n\nNext", blocks)
}

func TestSegmenter_VisibleRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"plain text", "hello", 5},
		{"soft line break counts one", "a\nb", 3},
		{"markup is invisible", "**bold** and *it*", 11},
		{"code span", "`x := 1`", 6},
		{"fenced code counts body", "```\nab\ncd\n```", 6},
		{"inline html counts raw", "a <b>x</b>", 10},
		{"runes not bytes", "日本語", 3},
		{"image is void", "![alt](x.png)", 0},
		{"link counts label", "[click](https://example.com)", 5},
		{"autolink counts label", "<https://a.io>", 12},
		{"heading", "## Sub", 3},
		{"task checkbox is void", "- [x] done", 4},
		{"backslash escapes and entities", "a \\* b &amp; c", 9},
		{"numeric reference", "&#35;1", 2},
		{"code span keeps escapes", "`a\\*`", 3},
		{"escaped ampersand is literal", "\\&amp;", 5},
		{"escape sequences are invisible", "safe \x1b[31mred\x1b[0m text", 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			seg := goldmark.NewSegmenter()
			blocks := seg.Process(tt.input)
			require.Len(t, blocks, 1)
			assert.Equal(t, tt.want, blocks[0].Range.Len())
			assert.Equal(t, tt.want, goldmark.VisibleLen(tt.input))
		})
	}
}

func TestSegmenter_RestartOnShrink(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	seg := goldmark.NewSegmenter(goldmark.WithLogger(logger))

	before := seg.Process("# A\n\nBody text here")
	require.Len(t, before, 2)

	after := seg.Process("# B")
	require.Len(t, after, 1)
	assert.Equal(t, trickle.BlockPending, after[0].Status)
	assert.Equal(t, trickle.Range{Start: 0, End: 1}, after[0].Range)
	assert.NotEqual(t, scope(before[0].ID), scope(after[0].ID), "fresh id namespace")
	for _, b := range before {
		assert.NotEqual(t, b.ID, after[0].ID)
	}
	assert.Contains(t, logs.String(), "stream shrank")
}

func TestSegmenter_Reset(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	before := seg.Process("one\n\ntwo")
	seg.Reset()
	after := seg.Process("one\n\ntwo")

	require.Len(t, before, 2)
	require.Len(t, after, 2)
	assert.NotSame(t, before[0], after[0])
	assert.NotEqual(t, before[0].ID, after[0].ID)
	assert.NotEqual(t, scope(before[0].ID), scope(after[0].ID))
	assert.Equal(t, before[0].Range, after[0].Range)
}

func TestSegmenter_IDsIncrease(t *testing.T) {
	t.Parallel()

	seg := goldmark.NewSegmenter()
	var ids []string
	input := ""
	for _, part := range []string{"a\n\n", "b\n\n", "c\n\n", "d"} {
		input += part
		for _, b := range seg.Process(input) {
			ids = append(ids, b.ID)
		}
	}
	final := seg.Process(input)
	require.Len(t, final, 4)
	seen := map[string]bool{}
	for _, b := range final {
		assert.False(t, seen[b.ID], "duplicate id %s", b.ID)
		seen[b.ID] = true
		assert.Equal(t, scope(final[0].ID), scope(b.ID))
	}
	assert.NotEmpty(t, ids)
}
