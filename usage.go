package trickle

// Usage tracks token consumption.
//
// Total input tokens = InputTokens + CacheReadTokens. Providers normalize
// their API-specific fields to this invariant and clamp derived values to
// zero.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}
