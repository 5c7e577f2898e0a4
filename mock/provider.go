// Package mock provides test doubles for trickle interfaces using function
// fields, plus a synthetic frame clock.
package mock

import (
	"context"

	"github.com/fwojciec/trickle"
)

// Interface compliance check.
var _ trickle.Provider = (*Provider)(nil)

// Provider is a test double for trickle.Provider.
// Set StreamFn before calling Stream.
type Provider struct {
	StreamFn func(ctx context.Context, req trickle.Request) (trickle.Stream, error)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req trickle.Request) (trickle.Stream, error) {
	return p.StreamFn(ctx, req)
}
