package gemini

import (
	"context"
	"fmt"

	"github.com/fwojciec/trickle"
	"google.golang.org/genai"
)

var _ trickle.Provider = (*Client)(nil)

// Client implements [trickle.Provider] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the default model ID used when a request names none.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{client: gc, model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream starts a streaming generation and returns a [trickle.Stream] over
// its parts.
func (c *Client) Stream(ctx context.Context, req trickle.Request) (trickle.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	seq := c.client.Models.GenerateContentStream(ctx, model, Contents(req.Messages), Config(req))
	return newStream(ctx, seq), nil
}

// Config builds the generation config for req. Thoughts are always requested
// so reasoning can be shown while it streams.
func Config(req trickle.Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		ThinkingConfig:  &genai.ThinkingConfig{IncludeThoughts: true},
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		cfg.Temperature = &temp
	}
	return cfg
}

// Contents converts conversation history to genai contents. Thinking parts
// are sent back as thoughts; messages left without parts are skipped.
func Contents(msgs []trickle.Message) []*genai.Content {
	var out []*genai.Content
	for _, msg := range msgs {
		var (
			role   string
			blocks []trickle.ContentBlock
		)
		switch m := msg.(type) {
		case trickle.UserMessage:
			role, blocks = "user", m.Content
		case trickle.AssistantMessage:
			role, blocks = "model", m.Content
		default:
			continue
		}
		var parts []*genai.Part
		for _, b := range blocks {
			switch bl := b.(type) {
			case trickle.TextBlock:
				parts = append(parts, &genai.Part{Text: bl.Text})
			case trickle.ThinkingBlock:
				parts = append(parts, &genai.Part{Text: bl.Thinking, Thought: true})
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}
