package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.0-flash"

// Gemini uses the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Gemini client.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: modelOr(cfg.Model, geminiModel)}, nil
}

func (c *Gemini) Name() string { return NameGemini }

func (c *Gemini) ProcessText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	return c.generate(ctx, contents, textMaxTokens)
}

func (c *Gemini) ExtractText(ctx context.Context, image []byte, mime string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(OCRPrompt),
			genai.NewPartFromBytes(image, mime),
		}, genai.RoleUser),
	}
	return c.generate(ctx, contents, ocrMaxTokens)
}

func (c *Gemini) generate(ctx context.Context, contents []*genai.Content, maxTokens int32) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}
