// Package stt transcribes extracted audio through a speech-to-text API.
// It is the last rung of the transcript fallback chain.
package stt

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"tubescribe/internal/config"
)

// Transcriber converts an audio file on disk into plain transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, lang string) (string, error)
	Enabled() bool
}

// WhisperTranscriber uses the OpenAI audio transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

// NewWhisperTranscriber builds the transcriber; without an API key it is
// disabled and the fallback chain skips the speech-to-text stage.
func NewWhisperTranscriber(cfg *config.Config) *WhisperTranscriber {
	t := &WhisperTranscriber{model: cfg.STT.Model}
	if cfg.STT.APIKey != "" {
		t.client = openai.NewClient(cfg.STT.APIKey)
	}
	return t
}

// Enabled reports whether an API key was configured.
func (t *WhisperTranscriber) Enabled() bool {
	return t.client != nil
}

// Transcribe uploads the audio file and returns the plain-text result.
// The language hint is reduced to its base subtag since the API does not
// accept regional variants.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath, lang string) (string, error) {
	if t.client == nil {
		return "", fmt.Errorf("speech-to-text is not configured")
	}

	base, _, _ := strings.Cut(lang, "-")
	log.WithFields(log.Fields{"audio": audioPath, "language": base, "model": t.model}).
		Info("Transcribing audio with speech-to-text")

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Language: base,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("speech-to-text request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("speech-to-text returned an empty transcript")
	}
	return text, nil
}

var _ Transcriber = (*WhisperTranscriber)(nil)
