package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements CompletionService on the Gemini API.
type GeminiProvider struct {
	apiKey string
}

// NewGeminiProvider creates a Gemini-backed completion provider.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete maps the chat messages onto Gemini's system-instruction plus
// prompt shape and returns the concatenated text parts.
func (p *GeminiProvider) Complete(ctx context.Context, model string, messages []ChatMessage) (Completion, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return Completion{}, fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	gm := client.GenerativeModel(model)

	var prompt strings.Builder
	for _, m := range messages {
		switch m.Role {
		case ChatMessageRoleSystem:
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
		default:
			if prompt.Len() > 0 {
				prompt.WriteString("\n\n")
			}
			prompt.WriteString(m.Content)
		}
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return Completion{}, fmt.Errorf("gemini completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Completion{}, fmt.Errorf("gemini returned no candidates")
	}

	cand := resp.Candidates[0]
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	return Completion{
		Content:   b.String(),
		Truncated: cand.FinishReason == genai.FinishReasonMaxTokens,
	}, nil
}

var _ CompletionService = (*GeminiProvider)(nil)
