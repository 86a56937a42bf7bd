// Package gemini adapts the Google generative AI SDK to the two text
// generation tiers the teaser pipeline needs.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// standardModel handles teaser generation.
	standardModel = "gemini-1.5-pro"
	// liteModel is the cheaper tier used for pre-summarization of long
	// inputs and trending-tag relevance checks.
	liteModel = "gemini-1.5-flash"
)

type Client struct {
	client *genai.Client
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Generate runs the prompt against the standard model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, standardModel, prompt)
}

// GenerateLite runs the prompt against the cheaper model tier.
func (c *Client) GenerateLite(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, liteModel, prompt)
}

func (c *Client) generate(ctx context.Context, modelName, prompt string) (string, error) {
	model := c.client.GenerativeModel(modelName)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(fmt.Sprintf("%v", part))
	}

	return strings.TrimSpace(b.String()), nil
}
