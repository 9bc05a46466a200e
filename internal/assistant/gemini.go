package assistant

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		config.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{client: client, model: model, maxTokens: int32(opts.maxTokens)}, nil
}

// toGeminiContents maps roles onto Gemini's user/model turns. The last
// system message wins.
func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	var contents []*genai.Content

	for _, m := range messages {
		part := []*genai.Part{{Text: m.Content}}
		switch m.Role {
		case RoleSystem:
			system = &genai.Content{Parts: part}
		case RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: part})
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: part})
		}
	}
	return system, contents
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if !hasUserMessage(messages) {
		return "", fmt.Errorf("gemini: %w", ErrNoUserMessage)
	}
	system, contents := toGeminiContents(messages)

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: system,
		MaxOutputTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyReply)
	}
	return text, nil
}
