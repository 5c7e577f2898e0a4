package anthropic_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/trickle"
	"github.com/fwojciec/trickle/anthropic"
	"github.com/stretchr/testify/require"
)

// sseEvent is one server-sent event written by a test server.
type sseEvent struct {
	event string
	data  string
}

func sseHandler(events ...sseEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, evt := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.event, evt.data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func messageStart(input int) sseEvent {
	return sseEvent{"message_start", fmt.Sprintf(`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"m","stop_reason":null,"usage":{"input_tokens":%d,"output_tokens":1}}}`, input)}
}

func blockStart(index int, kind string) sseEvent {
	return sseEvent{"content_block_start", fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":%q}}`, index, kind)}
}

func textDelta(index int, text string) sseEvent {
	return sseEvent{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"text_delta","text":%q}}`, index, text)}
}

func thinkingDelta(index int, text string) sseEvent {
	return sseEvent{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"thinking_delta","thinking":%q}}`, index, text)}
}

func blockStop(index int) sseEvent {
	return sseEvent{"content_block_stop", fmt.Sprintf(`{"type":"content_block_stop","index":%d}`, index)}
}

func messageDelta(stop string, output int) sseEvent {
	return sseEvent{"message_delta", fmt.Sprintf(`{"type":"message_delta","delta":{"stop_reason":%q},"usage":{"output_tokens":%d}}`, stop, output)}
}

var messageStop = sseEvent{"message_stop", `{"type":"message_stop"}`}

func hello() trickle.Request {
	return trickle.Request{
		Messages: []trickle.Message{
			trickle.UserMessage{Content: []trickle.ContentBlock{trickle.TextBlock{Text: "Hi"}}},
		},
	}
}

func streamFrom(t *testing.T, h http.Handler, opts ...anthropic.Option) trickle.Stream {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := anthropic.New("test-key", append([]anthropic.Option{anthropic.WithBaseURL(srv.URL)}, opts...)...)
	s, err := client.Stream(context.Background(), hello())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func collect(t *testing.T, s trickle.Stream) []trickle.Event {
	t.Helper()
	var events []trickle.Event
	for {
		evt, err := s.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, evt)
	}
}
