package ai

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"tubescribe/internal/config"
	"tubescribe/internal/retry"
)

const cleanupPrompt = `You are a transcript editor. You receive the raw text of a spoken-word
transcript. Remove sentences that are exact or near-exact duplicates of
a sentence already present. Fix punctuation, spelling, and grammar, and
rewrite spoken fragments into clean written sentences. Do not add any
information, and do not remove anything that is not a duplicate. Return
only the edited transcript. If you must flag something you could not
resolve, append it at the very end on lines starting with "NOTE:".`

const dedupePrompt = `You are reviewing an already-edited transcript. Independently check it
for remaining duplicate or near-duplicate sentences and remove them.
Make no other changes. Return only the transcript. If you must flag
something you could not resolve, append it at the very end on lines
starting with "NOTE:".`

// NormalizeResult is the outcome of the two-pass pipeline. Processed is
// false when the pipeline degraded to the unmodified input text.
type NormalizeResult struct {
	Text      string
	Notes     string
	ModelUsed string
	Processed bool
}

// Normalizer runs the two-pass cleanup over a transcript: an editing
// pass that removes duplicate sentences and fixes the mechanics,
// followed by an independent duplicate check. Any non-cancellation
// failure degrades to the input text instead of failing the job.
type Normalizer struct {
	caller  *ModelCaller
	enabled bool
}

// NewNormalizer builds the pipeline from configuration. When AI is
// disabled or no provider can be constructed, Normalize passes text
// through untouched.
func NewNormalizer(cfg *config.Config) *Normalizer {
	n := &Normalizer{}
	if !cfg.AI.Enabled {
		return n
	}

	var svc CompletionService
	switch cfg.AI.Provider {
	case "gemini":
		if cfg.AI.GeminiAPIKey != "" {
			svc = NewGeminiProvider(cfg.AI.GeminiAPIKey)
		}
	default:
		if cfg.AI.APIKey != "" {
			svc = NewOpenRouterProvider(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.MaxTokens)
		}
	}
	if svc == nil {
		log.Warn("AI normalization enabled but no API key configured; passing transcripts through")
		return n
	}

	n.enabled = true
	n.caller = NewModelCaller(svc, cfg.AI.PrimaryModel, cfg.AI.SecondaryModel, retry.Policy{
		MaxAttempts: cfg.AI.RetryAttempts,
		BaseDelay:   cfg.AI.RetryBaseDelay,
	})
	return n
}

// Enabled reports whether a provider is wired in.
func (n *Normalizer) Enabled() bool {
	return n.enabled
}

// Normalize runs both passes. A non-empty model overrides the
// configured primary tier for this request; the secondary fallback is
// unchanged. The returned error is non-nil only for cancellation;
// every other failure degrades gracefully.
func (n *Normalizer) Normalize(ctx context.Context, raw, model string) (NormalizeResult, error) {
	if !n.enabled || strings.TrimSpace(raw) == "" {
		return NormalizeResult{Text: raw}, nil
	}

	cleaned, notes1, model1, err := n.pass(ctx, cleanupPrompt, raw, model)
	if err != nil {
		return n.degrade(ctx, raw, err)
	}

	deduped, notes2, model2, err := n.pass(ctx, dedupePrompt, cleaned, model)
	if err != nil {
		return n.degrade(ctx, raw, err)
	}

	used := model2
	if used == "" {
		used = model1
	}
	return NormalizeResult{
		Text:      deduped,
		Notes:     joinNotes(notes1, notes2),
		ModelUsed: used,
		Processed: true,
	}, nil
}

func (n *Normalizer) pass(ctx context.Context, system, input, override string) (text, notes, model string, err error) {
	res, model, err := n.caller.Call(ctx, []ChatMessage{
		{Role: ChatMessageRoleSystem, Content: system},
		{Role: ChatMessageRoleUser, Content: input},
	}, override)
	if err != nil {
		return "", "", "", err
	}
	text, notes = splitNotes(res.Content)
	if strings.TrimSpace(text) == "" {
		return input, notes, model, nil
	}
	return text, notes, model, nil
}

func (n *Normalizer) degrade(ctx context.Context, raw string, err error) (NormalizeResult, error) {
	if ctx.Err() != nil {
		return NormalizeResult{}, ctx.Err()
	}
	log.WithError(err).Warn("AI normalization failed; returning unprocessed transcript")
	return NormalizeResult{Text: raw}, nil
}

// splitNotes separates trailing NOTE:-prefixed lines from the body.
func splitNotes(content string) (text, notes string) {
	lines := strings.Split(strings.TrimSpace(content), "\n")

	cut := len(lines)
	for cut > 0 {
		trimmed := strings.TrimSpace(lines[cut-1])
		if trimmed == "" || strings.HasPrefix(trimmed, "NOTE:") {
			cut--
			continue
		}
		break
	}

	var noteLines []string
	for _, line := range lines[cut:] {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "NOTE:") {
			noteLines = append(noteLines, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(lines[:cut], "\n")), strings.Join(noteLines, "\n")
}

func joinNotes(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
