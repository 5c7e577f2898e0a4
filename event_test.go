package trickle_test

import (
	"testing"

	"github.com/fwojciec/trickle"
	"github.com/stretchr/testify/assert"
)

func TestEventTextDelta_ImplementsEvent(t *testing.T) {
	t.Parallel()
	var e trickle.Event = trickle.EventTextDelta{Index: 0, Delta: "hello"}
	assert.NotNil(t, e)
}

func TestEventThinkingDelta_ImplementsEvent(t *testing.T) {
	t.Parallel()
	var e trickle.Event = trickle.EventThinkingDelta{Index: 0, Delta: "reasoning..."}
	assert.NotNil(t, e)
}

func TestEventTypeSwitch_Exhaustive(t *testing.T) {
	t.Parallel()
	events := []trickle.Event{
		trickle.EventTextDelta{Index: 0, Delta: "hello"},
		trickle.EventThinkingDelta{Index: 0, Delta: "reasoning"},
	}
	assert.Len(t, events, 2, "update slice and switch when adding new Event types")
	for _, e := range events {
		switch e.(type) {
		case trickle.EventTextDelta:
		case trickle.EventThinkingDelta:
		default:
			t.Fatalf("unexpected event type: %T", e)
		}
	}
}
