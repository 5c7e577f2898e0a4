package trickle

// BlockStatus reports whether a block's content can still change.
type BlockStatus int

const (
	// BlockStable blocks are final until the segmenter is reset.
	BlockStable BlockStatus = iota
	// BlockPending is the trailing block, re-parsed as text arrives.
	BlockPending
)

func (s BlockStatus) String() string {
	switch s {
	case BlockStable:
		return "stable"
	case BlockPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Range is a half-open [Start, End) span.
type Range struct {
	Start int
	End   int
}

// Len returns the number of positions covered by r.
func (r Range) Len() int { return r.End - r.Start }

// Block is one top-level markdown construct of a streamed document.
//
// Range is expressed in visible-text coordinates (runes the reader sees,
// markup excluded) and Source is the byte span of the block's markdown in the
// processed text. Node is owned by the Segmenter implementation.
type Block struct {
	ID     string
	Status BlockStatus
	Node   any
	Range  Range
	Source Range
}

// Segmenter splits a growing markdown document into blocks.
//
// Process is called with the full text seen so far, which must extend the
// previous call's text unless Reset is called in between. Stable blocks in
// the result are the same pointers as in earlier results. At most one block
// is pending and it is always last.
type Segmenter interface {
	Process(text string) []*Block
	Reset()
}
