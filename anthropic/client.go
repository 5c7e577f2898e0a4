package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fwojciec/trickle"
)

var _ trickle.Provider = (*Client)(nil)

// Client implements [trickle.Provider] for the Anthropic Messages API.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	thinkingBudget int
	logger         *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithThinking enables extended thinking with the given token budget.
// A budget of zero leaves thinking disabled.
func WithThinking(budget int) Option {
	return func(c *Client) { c.thinkingBudget = budget }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream sends a streaming request and returns a [trickle.Stream] over the
// response events.
func (c *Client) Stream(ctx context.Context, req trickle.Request) (trickle.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	body, err := json.Marshal(c.wireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	c.logger.Debug("anthropic request", "model", req.Model, "messages", len(req.Messages))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, httpError(resp)
	}
	return newStream(ctx, resp.Body), nil
}

func (c *Client) wireRequest(req trickle.Request) wireRequest {
	w := wireRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
		Messages:    wireMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if w.Model == "" {
		w.Model = defaultModel
	}
	if w.MaxTokens == 0 {
		w.MaxTokens = defaultMaxTokens
	}
	cc := &cacheControl{Type: "ephemeral"}
	w.CacheControl = cc
	if req.SystemPrompt != "" {
		w.System = []wireText{{Type: "text", Text: req.SystemPrompt, CacheControl: cc}}
	}
	if c.thinkingBudget > 0 {
		w.Thinking = &wireThinking{Type: "enabled", BudgetTokens: c.thinkingBudget}
		if w.MaxTokens <= c.thinkingBudget {
			w.MaxTokens = c.thinkingBudget + defaultMaxTokens
		}
		// Extended thinking rejects any temperature other than the default.
		w.Temperature = nil
	}
	return w
}

// wireMessages converts history to the wire format. Prior thinking is not
// replayed: it would need the signature the stream discards, and the API
// accepts turns without it.
func wireMessages(msgs []trickle.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, msg := range msgs {
		var blocks []trickle.ContentBlock
		switch m := msg.(type) {
		case trickle.UserMessage:
			blocks = m.Content
		case trickle.AssistantMessage:
			blocks = m.Content
		}
		var content []wireText
		for _, b := range blocks {
			if tb, ok := b.(trickle.TextBlock); ok && tb.Text != "" {
				content = append(content, wireText{Type: "text", Text: tb.Text})
			}
		}
		if len(content) == 0 {
			continue
		}
		out = append(out, wireMessage{Role: string(msg.Role()), Content: content})
	}
	return out
}

func httpError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var e wireErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Type == "" {
		return fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("anthropic: HTTP %d: %s: %s", resp.StatusCode, e.Error.Type, e.Error.Message)
}
