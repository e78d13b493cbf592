// Package ai holds the chat-completion contract, its providers, and the
// two-pass transcript normalization pipeline built on top of them.
package ai

import "context"

// ChatMessageRole defines the role of the message sender.
type ChatMessageRole string

const (
	ChatMessageRoleSystem    ChatMessageRole = "system"
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant"
)

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    ChatMessageRole
	Content string
}

// Completion is one model response. Truncated marks a response cut off
// by the output token limit; by contract that is a success with a
// warning, not a retryable failure.
type Completion struct {
	Content   string
	Truncated bool
}

// CompletionService is the narrow contract for the external
// chat-completion collaborator. The model identifier selects the tier.
type CompletionService interface {
	Complete(ctx context.Context, model string, messages []ChatMessage) (Completion, error)
	Name() string
}
