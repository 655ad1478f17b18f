package assistant

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is a provider-neutral completion request.
type LLMRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
}

// LLMClient completes a conversation with a language model.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
	// Provider names the backend for logs and metrics.
	Provider() string
}
