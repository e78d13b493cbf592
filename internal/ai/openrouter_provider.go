package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// OpenRouterProvider implements CompletionService against any
// OpenAI-compatible chat endpoint (OpenRouter by default).
type OpenRouterProvider struct {
	client    *openai.Client
	maxTokens int
}

// NewOpenRouterProvider creates a provider pointed at the given base URL.
func NewOpenRouterProvider(apiKey, baseURL string, maxTokens int) *OpenRouterProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenRouterProvider{
		client:    openai.NewClientWithConfig(cfg),
		maxTokens: maxTokens,
	}
}

func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// Complete sends the chat request to the named model. A response cut off
// at the token limit is returned with Truncated set rather than an error.
func (p *OpenRouterProvider) Complete(ctx context.Context, model string, messages []ChatMessage) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: p.maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := Completion{
		Content:   choice.Message.Content,
		Truncated: choice.FinishReason == openai.FinishReasonLength,
	}
	if out.Truncated {
		log.WithField("model", model).Warn("Completion truncated at token limit")
	}
	return out, nil
}

var _ CompletionService = (*OpenRouterProvider)(nil)
