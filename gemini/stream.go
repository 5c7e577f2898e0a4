package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/fwojciec/trickle"
	"google.golang.org/genai"
)

var _ trickle.Stream = (*stream)(nil)

// stream adapts the SDK's push iterator to the pull-based [trickle.Stream].
// One response chunk may hold several parts, so decoded events are queued.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	state   trickle.StreamState
	err     error
	msg     trickle.AssistantMessage
	queue   []trickle.Event
	buf     strings.Builder
	thought bool // kind of the current (last) content block
	finish  genai.FinishReason
}

func newStream(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	pull, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		pull:  pull,
		stop:  stop,
		state: trickle.StreamStateNew,
	}
}

// Next returns the next text or thinking delta, or io.EOF once the iterator
// is exhausted.
func (s *stream) Next() (trickle.Event, error) {
	for {
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue = s.queue[1:]
			return evt, nil
		}
		switch s.state {
		case trickle.StreamStateComplete:
			return nil, io.EOF
		case trickle.StreamStateError:
			return nil, s.err
		case trickle.StreamStateClosed:
			return nil, fmt.Errorf("gemini: %w", trickle.ErrStreamClosed)
		}

		if err := s.ctx.Err(); err != nil {
			s.fail(err)
			continue
		}
		resp, err, ok := s.pull()
		s.state = trickle.StreamStateStreaming
		switch {
		case !ok:
			s.complete()
		case err != nil:
			s.fail(err)
		default:
			s.apply(resp)
		}
	}
}

func (s *stream) apply(resp *genai.GenerateContentResponse) {
	if resp == nil {
		return
	}
	if u := resp.UsageMetadata; u != nil {
		cached := int(u.CachedContentTokenCount)
		s.msg.Usage = trickle.Usage{
			InputTokens:     max(int(u.PromptTokenCount)-cached, 0),
			OutputTokens:    int(u.CandidatesTokenCount + u.ThoughtsTokenCount),
			CacheReadTokens: cached,
		}
	}
	if len(resp.Candidates) == 0 {
		return
	}
	cand := resp.Candidates[0]
	if cand.FinishReason != "" {
		s.finish = cand.FinishReason
	}
	if cand.Content == nil {
		return
	}
	for _, p := range cand.Content.Parts {
		if p == nil || (p.Text == "" && !p.Thought) {
			continue
		}
		s.appendPart(p.Text, p.Thought)
	}
}

// appendPart grows the current block when the part has the same kind, and
// opens a new block otherwise. Empty thoughts open a block without an event.
func (s *stream) appendPart(text string, thought bool) {
	n := len(s.msg.Content)
	if n == 0 || s.thought != thought {
		s.msg.Content = append(s.msg.Content, nil)
		s.buf.Reset()
		s.thought = thought
		n++
	}
	s.buf.WriteString(text)
	index := n - 1
	if thought {
		s.msg.Content[index] = trickle.ThinkingBlock{Thinking: s.buf.String()}
	} else {
		s.msg.Content[index] = trickle.TextBlock{Text: s.buf.String()}
	}
	if text == "" {
		return
	}
	if thought {
		s.queue = append(s.queue, trickle.EventThinkingDelta{Index: index, Delta: text})
		return
	}
	s.queue = append(s.queue, trickle.EventTextDelta{Index: index, Delta: text})
}

func (s *stream) complete() {
	s.state = trickle.StreamStateComplete
	switch s.finish {
	case "", genai.FinishReasonStop:
		s.msg.StopReason = trickle.StopEndTurn
		s.msg.RawStopReason = "end_turn"
		if s.finish != "" {
			s.msg.RawStopReason = string(s.finish)
		}
	case genai.FinishReasonMaxTokens:
		s.msg.StopReason = trickle.StopLength
		s.msg.RawStopReason = string(s.finish)
	default:
		s.msg.StopReason = trickle.StopUnknown
		s.msg.RawStopReason = string(s.finish)
	}
}

func (s *stream) fail(err error) {
	s.state = trickle.StreamStateError
	s.err = fmt.Errorf("gemini: %w", err)
	if s.ctx.Err() != nil {
		s.msg.StopReason = trickle.StopAborted
		s.msg.RawStopReason = "aborted"
		return
	}
	s.msg.StopReason = trickle.StopError
	s.msg.RawStopReason = "error"
}

// State returns the current stream state.
func (s *stream) State() trickle.StreamState { return s.state }

// Message returns the message assembled so far.
func (s *stream) Message() (trickle.AssistantMessage, error) {
	if s.state == trickle.StreamStateNew {
		return trickle.AssistantMessage{}, fmt.Errorf("gemini: %w", trickle.ErrStreamNotReady)
	}
	msg := s.msg
	msg.Content = append([]trickle.ContentBlock(nil), s.msg.Content...)
	return msg, nil
}

// Close stops the underlying iterator. Closing a live stream marks the
// message aborted.
func (s *stream) Close() error {
	if s.state != trickle.StreamStateComplete && s.state != trickle.StreamStateError {
		s.state = trickle.StreamStateClosed
		s.msg.StopReason = trickle.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	s.queue = nil
	s.stop()
	return nil
}
