package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicModel   = "claude-3-5-sonnet-20241022"
	anthropicVersion = "2023-06-01"
)

// Anthropic talks to the Messages API directly.
type Anthropic struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropic returns an Anthropic client.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}
	c := &Anthropic{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      modelOr(cfg.Model, anthropicModel),
		httpClient: cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = anthropicBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

func (c *Anthropic) Name() string { return NameAnthropic }

func (c *Anthropic) ProcessText(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, anthropicRequest{
		Model:     c.model,
		MaxTokens: textMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
}

func (c *Anthropic) ExtractText(ctx context.Context, image []byte, mime string) (string, error) {
	return c.complete(ctx, anthropicRequest{
		Model:     c.model,
		MaxTokens: ocrMaxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicBlock{
				{Type: "text", Text: OCRPrompt},
				{Type: "image", Source: &anthropicImageSource{
					Type:      "base64",
					MediaType: mime,
					Data:      base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	})
}

func (c *Anthropic) complete(ctx context.Context, reqBody anthropicRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed anthropicResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in response")
	}
	return strings.TrimSpace(sb.String()), nil
}
