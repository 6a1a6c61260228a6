package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIModel = "gpt-4o"

// OpenAI uses the Chat Completions API for both text and vision.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI returns an OpenAI client. BaseURL may point at any compatible API.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key not configured")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// No SDK retries; the runner timeout bounds the whole call.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  modelOr(cfg.Model, openAIModel),
	}, nil
}

func (c *OpenAI) Name() string { return NameOpenAI }

func (c *OpenAI) ProcessText(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, openai.UserMessage(prompt), textMaxTokens)
}

func (c *OpenAI) ExtractText(ctx context.Context, image []byte, mime string) (string, error) {
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
	msg := openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(OCRPrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	})
	return c.complete(ctx, msg, ocrMaxTokens)
}

func (c *OpenAI) complete(ctx context.Context, msg openai.ChatCompletionMessageParamUnion, maxTokens int64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		Messages:  []openai.ChatCompletionMessageParamUnion{msg},
		MaxTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}
