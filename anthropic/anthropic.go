// Package anthropic implements [trickle.Provider] for the Anthropic Messages
// API. Responses are consumed as server-sent events; only text and thinking
// content is surfaced.
package anthropic

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
	apiVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
)

// Request body.

type wireRequest struct {
	Model        string        `json:"model"`
	MaxTokens    int           `json:"max_tokens"`
	Stream       bool          `json:"stream"`
	System       []wireText    `json:"system,omitempty"`
	Messages     []wireMessage `json:"messages"`
	Temperature  *float64      `json:"temperature,omitempty"`
	Thinking     *wireThinking `json:"thinking,omitempty"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type wireThinking struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

type wireMessage struct {
	Role    string     `json:"role"`
	Content []wireText `json:"content"`
}

type wireText struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

// Streamed events. Each SSE data payload carries its own "type" so a single
// envelope decodes every event kind; unused fields stay zero.

type wireEvent struct {
	Type         string        `json:"type"`
	Index        int           `json:"index"`
	Message      *wireStart    `json:"message,omitempty"`
	ContentBlock *wireBlock    `json:"content_block,omitempty"`
	Delta        *wireDelta    `json:"delta,omitempty"`
	Usage        *wireUsage    `json:"usage,omitempty"`
	Error        *wireAPIError `json:"error,omitempty"`
}

type wireStart struct {
	ID    string    `json:"id"`
	Model string    `json:"model"`
	Usage wireUsage `json:"usage"`
}

type wireBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Thinking string `json:"thinking"`
}

// wireDelta covers both content_block_delta and message_delta payloads.
type wireDelta struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Thinking   string  `json:"thinking"`
	StopReason *string `json:"stop_reason"`
}

// Cache fields are nullable; message_delta may omit all but output_tokens.
type wireUsage struct {
	InputTokens              *int `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens"`
}

type wireAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wireErrorResponse is the body of a non-200 response.
type wireErrorResponse struct {
	Error wireAPIError `json:"error"`
}
