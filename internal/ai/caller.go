package ai

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"tubescribe/internal/retry"
)

// ModelCaller runs a completion against the primary model under the
// retry policy, then makes a single attempt on the secondary model once
// the primary is exhausted. Cancellation aborts immediately.
type ModelCaller struct {
	svc       CompletionService
	primary   string
	secondary string
	policy    retry.Policy
}

// NewModelCaller wires the retry-and-hop behavior around a provider.
func NewModelCaller(svc CompletionService, primary, secondary string, policy retry.Policy) *ModelCaller {
	return &ModelCaller{svc: svc, primary: primary, secondary: secondary, policy: policy}
}

// Call returns the completion and the model that produced it. A
// non-empty primaryOverride replaces the configured primary model for
// this call only.
func (c *ModelCaller) Call(ctx context.Context, messages []ChatMessage, primaryOverride string) (Completion, string, error) {
	primary := c.primary
	if primaryOverride != "" {
		primary = primaryOverride
	}

	var out Completion
	attempt := 0
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		attempt++
		log.WithFields(log.Fields{"model": primary, "attempt": attempt}).
			Debug("Requesting completion")
		res, err := c.svc.Complete(ctx, primary, messages)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"model": primary, "attempt": attempt}).
				Warn("Completion attempt failed")
			return err
		}
		out = res
		return nil
	})
	if err == nil {
		return out, primary, nil
	}
	if ctx.Err() != nil {
		return Completion{}, "", ctx.Err()
	}
	if c.secondary == "" {
		return Completion{}, "", fmt.Errorf("model %s exhausted: %w", primary, err)
	}

	log.WithFields(log.Fields{"from": primary, "to": c.secondary}).
		Warn("Primary model exhausted, switching to secondary")
	res, err := c.svc.Complete(ctx, c.secondary, messages)
	if err != nil {
		if ctx.Err() != nil {
			return Completion{}, "", ctx.Err()
		}
		return Completion{}, "", fmt.Errorf("model %s exhausted: %w", c.secondary, err)
	}
	return res, c.secondary, nil
}
