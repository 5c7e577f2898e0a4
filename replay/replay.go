// Package replay implements [trickle.Provider] by streaming markdown files
// from disk. Files are chosen round-robin from the glob matches and emitted
// in small randomly sized chunks with a jittered delay, which approximates
// the cadence of a live model without network access.
package replay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/trickle"
)

var _ trickle.Provider = (*Provider)(nil)

const (
	defaultDelay    = 30 * time.Millisecond
	defaultJitter   = 0.5
	defaultMinRunes = 1
	defaultMaxRunes = 8
)

// Provider replays files matched by doublestar patterns.
type Provider struct {
	files    []string
	delay    time.Duration
	jitter   float64
	minRunes int
	maxRunes int

	mu   sync.Mutex
	rng  *rand.Rand
	next int
}

// Option configures a [Provider].
type Option func(*Provider)

// WithDelay sets the mean pause before each chunk. Zero disables pauses.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// WithJitter sets the relative spread of the delay, in [0, 1].
func WithJitter(f float64) Option {
	return func(p *Provider) { p.jitter = min(max(f, 0), 1) }
}

// WithChunkRunes bounds the size of each emitted chunk in runes.
func WithChunkRunes(lo, hi int) Option {
	return func(p *Provider) {
		p.minRunes = max(lo, 1)
		p.maxRunes = max(hi, p.minRunes)
	}
}

// WithSeed makes chunking and delays deterministic.
func WithSeed(seed uint64) Option {
	return func(p *Provider) { p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// New resolves patterns and returns a Provider over the matching files,
// sorted and deduplicated. It fails when a pattern is malformed or nothing
// matches.
func New(patterns []string, opts ...Option) (*Provider, error) {
	var files []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("replay: invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("replay: %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	files = slices.Compact(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("replay: no files match %q", patterns)
	}

	p := &Provider{
		files:    files,
		delay:    defaultDelay,
		jitter:   defaultJitter,
		minRunes: defaultMinRunes,
		maxRunes: defaultMaxRunes,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Files returns the resolved file list.
func (p *Provider) Files() []string {
	return slices.Clone(p.files)
}

// Stream replays the next file. The request is only validated; its content
// does not influence what is played.
func (p *Provider) Stream(ctx context.Context, req trickle.Request) (trickle.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	p.mu.Lock()
	path := p.files[p.next]
	p.next = (p.next + 1) % len(p.files)
	seed := p.rng.Uint64()
	p.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	return &stream{
		ctx:    ctx,
		chunks: split(string(data), p.minRunes, p.maxRunes, rng),
		delays: p.delays(rng),
		state:  trickle.StreamStateNew,
	}, nil
}

// delays returns a generator of per-chunk pauses.
func (p *Provider) delays(rng *rand.Rand) func() time.Duration {
	return func() time.Duration {
		if p.delay <= 0 {
			return 0
		}
		f := 1 + p.jitter*(2*rng.Float64()-1)
		return time.Duration(float64(p.delay) * f)
	}
}

// split cuts s into chunks of lo..hi runes.
func split(s string, lo, hi int, rng *rand.Rand) []string {
	var out []string
	for s != "" {
		n := lo
		if hi > lo {
			n += rng.IntN(hi - lo + 1)
		}
		end := len(s)
		for i := range s {
			if n == 0 {
				end = i
				break
			}
			n--
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	return out
}
