// Package provider adapts the OCR and LLM network services behind one
// interface and runs their requests off the display loop.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hpungsan/clipstash/internal/config"
	clerrors "github.com/hpungsan/clipstash/internal/errors"
)

// Provider names accepted in settings.
const (
	NameAnthropic = "anthropic"
	NameOpenAI    = "openai"
	NameGemini    = "gemini"
)

// OCRPrompt is sent alongside every image.
const OCRPrompt = "Extract all text from this image. Return only the text content."

const (
	textMaxTokens = 2000
	ocrMaxTokens  = 4000
)

// Provider is one OCR/LLM backend.
type Provider interface {
	Name() string

	// ProcessText sends a fully rendered prompt and returns the response text.
	ProcessText(ctx context.Context, prompt string) (string, error)

	// ExtractText returns the text found in an encoded image.
	ExtractText(ctx context.Context, image []byte, mime string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Name       string
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// envKeys lists the key variables per provider, in detection order.
var envKeys = []struct {
	name string
	vars []string
}{
	{NameAnthropic, []string{"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"}},
	{NameOpenAI, []string{"OPENAI_API_KEY", "OPENAI_KEY"}},
	{NameGemini, []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}},
}

// Resolve picks a provider from settings and the environment. A provider
// forced in settings must have a key; otherwise the first provider with a
// key wins.
func Resolve(settings config.Settings, lookupEnv func(string) (string, bool)) (Config, error) {
	forced := strings.ToLower(strings.TrimSpace(settings.Provider))
	for _, p := range envKeys {
		if forced != "" && forced != p.name {
			continue
		}
		for _, v := range p.vars {
			if key, ok := lookupEnv(v); ok && strings.TrimSpace(key) != "" {
				return Config{Name: p.name, APIKey: strings.TrimSpace(key), Model: settings.Model}, nil
			}
		}
		if forced != "" {
			return Config{}, clerrors.NewConfig("settings.json",
				fmt.Errorf("provider %q selected but %s is not set", forced, strings.Join(p.vars, " or ")))
		}
	}
	if forced != "" {
		return Config{}, clerrors.NewConfig("settings.json", fmt.Errorf("unknown provider %q", forced))
	}
	return Config{}, clerrors.NewInvalidRequest(
		"no OCR/LLM provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY or GOOGLE_API_KEY")
}

// New builds the backend named by cfg.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Name {
	case NameAnthropic:
		return NewAnthropic(cfg)
	case NameOpenAI:
		return NewOpenAI(cfg)
	case NameGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, clerrors.NewConfig("settings.json", fmt.Errorf("unknown provider %q", cfg.Name))
	}
}

// Detect resolves and builds a provider in one step.
func Detect(ctx context.Context, settings config.Settings, lookupEnv func(string) (string, bool)) (Provider, error) {
	cfg, err := Resolve(settings, lookupEnv)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// FormatProcessed joins the original text and the LLM response the way the
// result is shown and stored.
func FormatProcessed(original, response string) string {
	return "ORIGINAL:\n" + original + "\n\n" + strings.Repeat("=", 50) + "\nPROCESSED:\n" + response
}

func modelOr(model, fallback string) string {
	if strings.TrimSpace(model) == "" {
		return fallback
	}
	return model
}
