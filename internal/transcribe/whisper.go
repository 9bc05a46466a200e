package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var ErrEmptyAudio = errors.New("no audio to transcribe")

// Whisper transcribes whole clips through the OpenAI audio API.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

type WhisperOption func(*openai.ClientConfig)

func WithBaseURL(url string) WhisperOption {
	return func(c *openai.ClientConfig) {
		c.BaseURL = url
	}
}

// NewWhisper builds a transcriber. language accepts a BCP-47 tag such as
// en-US; only the primary subtag is sent.
func NewWhisper(apiKey, model, language string, opts ...WhisperOption) *Whisper {
	config := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&config)
	}
	if model == "" {
		model = openai.Whisper1
	}
	lang, _, _ := strings.Cut(language, "-")
	return &Whisper{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		language: strings.ToLower(lang),
	}
}

// Transcribe uploads data under the given file name and returns the text.
func (w *Whisper) Transcribe(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyAudio
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   bytes.NewReader(data),
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
