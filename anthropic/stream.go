package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/trickle"
)

var _ trickle.Stream = (*stream)(nil)

// stream implements [trickle.Stream] over an SSE response body.
type stream struct {
	ctx   context.Context
	body  io.ReadCloser
	sse   *sseReader
	state trickle.StreamState
	err   error
	msg   trickle.AssistantMessage
	// bufs accumulates text per content index; kinds records "text" or
	// "thinking" for each index seen in content_block_start.
	bufs  map[int]*strings.Builder
	kinds map[int]string
}

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	return &stream{
		ctx:   ctx,
		body:  body,
		sse:   newSSEReader(body),
		state: trickle.StreamStateNew,
		bufs:  make(map[int]*strings.Builder),
		kinds: make(map[int]string),
	}
}

// Next returns the next text or thinking delta. It returns io.EOF after
// message_stop.
func (s *stream) Next() (trickle.Event, error) {
	switch s.state {
	case trickle.StreamStateComplete:
		return nil, io.EOF
	case trickle.StreamStateError:
		return nil, s.err
	case trickle.StreamStateClosed:
		return nil, fmt.Errorf("anthropic: %w", trickle.ErrStreamClosed)
	}

	for {
		name, data, err := s.sse.next()
		if err != nil {
			s.fail(err)
			return nil, s.err
		}
		s.state = trickle.StreamStateStreaming

		var evt wireEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			s.fail(fmt.Errorf("anthropic: decode %s: %w", name, err))
			return nil, s.err
		}
		if evt.Type == "" {
			evt.Type = name
		}

		out, err := s.apply(evt)
		if err != nil {
			s.fail(err)
			return nil, s.err
		}
		if s.state == trickle.StreamStateComplete {
			return nil, io.EOF
		}
		if out != nil {
			return out, nil
		}
	}
}

// apply folds one wire event into the assembled message and returns the
// semantic event it produces, if any.
func (s *stream) apply(evt wireEvent) (trickle.Event, error) {
	switch evt.Type {
	case "message_start":
		if evt.Message != nil {
			s.usage(evt.Message.Usage)
		}
	case "content_block_start":
		if evt.ContentBlock == nil {
			return nil, fmt.Errorf("anthropic: content_block_start without block")
		}
		s.kinds[evt.Index] = evt.ContentBlock.Type
		s.bufs[evt.Index] = &strings.Builder{}
		switch evt.ContentBlock.Type {
		case "text":
			return s.appendDelta(evt.Index, evt.ContentBlock.Text)
		case "thinking":
			return s.appendDelta(evt.Index, evt.ContentBlock.Thinking)
		}
	case "content_block_delta":
		if evt.Delta == nil {
			return nil, nil
		}
		if _, ok := s.kinds[evt.Index]; !ok {
			return nil, fmt.Errorf("anthropic: delta for unknown block index %d", evt.Index)
		}
		switch evt.Delta.Type {
		case "text_delta":
			return s.appendDelta(evt.Index, evt.Delta.Text)
		case "thinking_delta":
			return s.appendDelta(evt.Index, evt.Delta.Thinking)
		}
	case "message_delta":
		if evt.Usage != nil {
			s.usage(*evt.Usage)
		}
		if evt.Delta != nil && evt.Delta.StopReason != nil {
			s.msg.RawStopReason = *evt.Delta.StopReason
			s.msg.StopReason = stopReason(*evt.Delta.StopReason)
		}
	case "message_stop":
		s.state = trickle.StreamStateComplete
	case "error":
		if evt.Error == nil {
			return nil, fmt.Errorf("anthropic: stream error")
		}
		return nil, fmt.Errorf("anthropic: %s: %s", evt.Error.Type, evt.Error.Message)
	}
	// ping, content_block_stop and unknown events carry nothing to surface.
	return nil, nil
}

func (s *stream) appendDelta(index int, delta string) (trickle.Event, error) {
	if delta == "" {
		return nil, nil
	}
	buf := s.bufs[index]
	buf.WriteString(delta)
	for len(s.msg.Content) <= index {
		s.msg.Content = append(s.msg.Content, nil)
	}
	if s.kinds[index] == "thinking" {
		s.msg.Content[index] = trickle.ThinkingBlock{Thinking: buf.String()}
		return trickle.EventThinkingDelta{Index: index, Delta: delta}, nil
	}
	s.msg.Content[index] = trickle.TextBlock{Text: buf.String()}
	return trickle.EventTextDelta{Index: index, Delta: delta}, nil
}

// usage normalizes API counters so InputTokens excludes cache reads.
func (s *stream) usage(u wireUsage) {
	if u.InputTokens != nil {
		s.msg.Usage.InputTokens = *u.InputTokens
		if u.CacheCreationInputTokens != nil {
			s.msg.Usage.InputTokens += *u.CacheCreationInputTokens
		}
	}
	if u.CacheReadInputTokens != nil {
		s.msg.Usage.CacheReadTokens = *u.CacheReadInputTokens
	}
	if u.OutputTokens > s.msg.Usage.OutputTokens {
		s.msg.Usage.OutputTokens = u.OutputTokens
	}
}

// State returns the current stream state.
func (s *stream) State() trickle.StreamState { return s.state }

// Message returns the message assembled so far. Content slots for blocks of
// other kinds are dropped.
func (s *stream) Message() (trickle.AssistantMessage, error) {
	if s.state == trickle.StreamStateNew {
		return trickle.AssistantMessage{}, fmt.Errorf("anthropic: %w", trickle.ErrStreamNotReady)
	}
	msg := s.msg
	msg.Content = make([]trickle.ContentBlock, 0, len(s.msg.Content))
	for _, b := range s.msg.Content {
		if b != nil {
			msg.Content = append(msg.Content, b)
		}
	}
	return msg, nil
}

// Close releases the response body. Closing a live stream marks the message
// aborted.
func (s *stream) Close() error {
	if s.state != trickle.StreamStateComplete && s.state != trickle.StreamStateError {
		s.state = trickle.StreamStateClosed
		s.msg.StopReason = trickle.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	return s.body.Close()
}

func (s *stream) fail(err error) {
	s.state = trickle.StreamStateError
	switch {
	case errors.Is(err, io.EOF):
		s.err = fmt.Errorf("anthropic: unexpected end of stream")
	default:
		s.err = err
	}
	if s.ctx.Err() != nil {
		s.msg.StopReason = trickle.StopAborted
		s.msg.RawStopReason = "aborted"
		return
	}
	s.msg.StopReason = trickle.StopError
	s.msg.RawStopReason = "error"
}

func stopReason(raw string) trickle.StopReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return trickle.StopEndTurn
	case "max_tokens":
		return trickle.StopLength
	default:
		return trickle.StopUnknown
	}
}
