// Package gemini generates commentary text with the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/compass/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// defaultSystemInstruction keeps commentary educational rather than advisory
const defaultSystemInstruction = `You are a calm, plain-spoken investing coach for individual investors.
Write short commentary in Markdown. Explain what happened and why it may matter.
Never give personalised buy or sell instructions.`

// Client implements domain.ContentGenerator
type Client struct {
	client            *genai.Client
	model             string
	systemInstruction string
	log               zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSystemInstruction replaces the system instruction
func WithSystemInstruction(s string) ClientOption {
	return func(c *Client) {
		c.systemInstruction = s
	}
}

// NewClient creates a new Gemini client. An empty key returns domain.ErrMissingAPIKey.
func NewClient(ctx context.Context, apiKey string, log zerolog.Logger, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY: %w", domain.ErrMissingAPIKey)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:            genaiClient,
		model:             DefaultModel,
		systemInstruction: defaultSystemInstruction,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = log.With().Str("client", "gemini").Str("model", c.model).Logger()

	return c, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// GenerateContent generates text from a prompt
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.log.Debug().Int("prompt_chars", len(prompt)).Msg("Generating content")

	var config *genai.GenerateContentConfig
	if c.systemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: c.systemInstruction}}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

// extractTextFromResponse joins the text parts of the first candidate
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no content generated")
	}
	return text, nil
}
