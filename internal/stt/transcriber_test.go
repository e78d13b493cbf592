package stt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tubescribe/internal/config"
)

func TestTranscriberDisabledWithoutKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.STT.Model = "whisper-1"

	tr := NewWhisperTranscriber(cfg)
	require.False(t, tr.Enabled())

	_, err := tr.Transcribe(context.Background(), "audio.mp3", "en")
	require.Error(t, err)
}

func TestTranscriberEnabledWithKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.STT.APIKey = "sk-test"
	cfg.STT.Model = "whisper-1"

	require.True(t, NewWhisperTranscriber(cfg).Enabled())
}
