package replay

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fwojciec/trickle"
)

var _ trickle.Stream = (*stream)(nil)

type stream struct {
	ctx    context.Context
	chunks []string
	delays func() time.Duration
	pos    int
	buf    strings.Builder
	state  trickle.StreamState
	msg    trickle.AssistantMessage
	err    error
}

// Next waits for the chunk delay and returns the next text delta.
func (s *stream) Next() (trickle.Event, error) {
	switch s.state {
	case trickle.StreamStateComplete:
		return nil, io.EOF
	case trickle.StreamStateError:
		return nil, s.err
	case trickle.StreamStateClosed:
		return nil, fmt.Errorf("replay: %w", trickle.ErrStreamClosed)
	}
	s.state = trickle.StreamStateStreaming

	if s.pos == len(s.chunks) {
		s.state = trickle.StreamStateComplete
		s.msg.StopReason = trickle.StopEndTurn
		s.msg.RawStopReason = "end_turn"
		return nil, io.EOF
	}

	if err := s.wait(s.delays()); err != nil {
		s.state = trickle.StreamStateError
		s.err = fmt.Errorf("replay: %w", err)
		s.msg.StopReason = trickle.StopAborted
		s.msg.RawStopReason = "aborted"
		return nil, s.err
	}

	chunk := s.chunks[s.pos]
	s.pos++
	s.buf.WriteString(chunk)
	s.msg.Content = []trickle.ContentBlock{trickle.TextBlock{Text: s.buf.String()}}
	s.msg.Usage.OutputTokens = s.pos
	return trickle.EventTextDelta{Index: 0, Delta: chunk}, nil
}

func (s *stream) wait(d time.Duration) error {
	if d <= 0 {
		return s.ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *stream) State() trickle.StreamState { return s.state }

func (s *stream) Message() (trickle.AssistantMessage, error) {
	if s.state == trickle.StreamStateNew {
		return trickle.AssistantMessage{}, fmt.Errorf("replay: %w", trickle.ErrStreamNotReady)
	}
	return s.msg, nil
}

func (s *stream) Close() error {
	if s.state != trickle.StreamStateComplete && s.state != trickle.StreamStateError {
		s.state = trickle.StreamStateClosed
		s.msg.StopReason = trickle.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	return nil
}
