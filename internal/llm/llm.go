// Package llm wraps an OpenAI-compatible chat-completions endpoint
// behind the two operations the pipeline needs: a text pass and a
// multi-modal pass.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// pingPrompt is the liveness probe sent before any real workload.
const pingPrompt = "Are you available? Reply just OK, if you're fine."

// ImagePart pairs a candidate identifier with its image payload. The
// identifier travels as a text turn right before the image so the
// model's verdicts can reference it.
type ImagePart struct {
	ID      string
	DataURL string
}

// Model is the generative-model capability the curation stage consumes.
type Model interface {
	// Ping probes both configured models with a trivial request.
	Ping(ctx context.Context) error
	// Complete runs the text model. contextText is optional extra
	// system material (e.g. catalog metadata).
	Complete(ctx context.Context, system, contextText, user string, temperature float32) (string, error)
	// CompleteVision runs the multi-modal model over a batch of images.
	CompleteVision(ctx context.Context, system string, parts []ImagePart, temperature float32) (string, error)
}

// Client is the production Model backed by go-openai.
type Client struct {
	client     *openai.Client
	textModel  string
	multiModal string
}

// NewClient creates a client for an OpenAI-compatible endpoint.
func NewClient(baseURL, apiKey, textModel, multiModal string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client:     openai.NewClientWithConfig(cfg),
		textModel:  textModel,
		multiModal: multiModal,
	}
}

// Ping sends the liveness probe to the text and multi-modal models. Any
// failure means the models cannot be trusted with the real workload.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, model := range []string{c.textModel, c.multiModal} {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: pingPrompt},
			},
			Temperature: 0,
			MaxTokens:   10,
		})
		if err != nil {
			return fmt.Errorf("probing %s: %w", model, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("probing %s: empty response", model)
		}
	}
	return nil
}

// Complete sends one text request and returns the assistant's answer.
func (c *Client) Complete(ctx context.Context, system, contextText, user string, temperature float32) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	if contextText != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: contextText,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.textModel,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return firstAnswer(resp)
}

// CompleteVision sends one multi-modal request: a system turn followed
// by alternating identifier and image turns for each part.
func (c *Client) CompleteVision(ctx context.Context, system string, parts []ImagePart, temperature float32) (string, error) {
	content := make([]openai.ChatMessagePart, 0, len(parts)*2)
	for _, p := range parts {
		content = append(content,
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.ID,
			},
			openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: p.DataURL},
			},
		)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.multiModal,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, MultiContent: content},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("multi-modal completion: %w", err)
	}
	return firstAnswer(resp)
}

func firstAnswer(resp openai.ChatCompletionResponse) (string, error) {
	for _, choice := range resp.Choices {
		if choice.Message.Role == openai.ChatMessageRoleAssistant {
			return strings.TrimSpace(choice.Message.Content), nil
		}
	}
	return "", fmt.Errorf("no assistant answer in response")
}
