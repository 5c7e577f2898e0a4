package trickle

import "context"

// Provider is a strategy pattern interface for LLM providers.
//
// Request is passed by value, but its Messages slice shares the caller's
// backing array. Providers must not modify existing elements.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
