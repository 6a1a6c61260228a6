package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	clerrors "github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/storage"
)

// FileName is the settings file inside the base directory.
const FileName = "settings.json"

// TextPlaceholder marks where the captured text goes in the LLM prompt.
const TextPlaceholder = "{text}"

// DefaultPrompt is used until the user picks another prompt.
const DefaultPrompt = "Please analyze and explain the following text:\n\n{text}"

var geometryRegex = regexp.MustCompile(`^\d+x\d+([+-]\d+[+-]\d+)?$`)

// Settings holds user preferences persisted in settings.json.
type Settings struct {
	// LLMPrompt is the template sent to the LLM; it must contain {text}
	LLMPrompt string `json:"llm_prompt"`

	// WindowGeometry is the last display size, "WxH" or "WxH+X+Y"
	WindowGeometry string `json:"window_geometry"`

	// OCRExpanded records whether the OCR panel was open
	OCRExpanded bool `json:"ocr_expanded"`

	// MaxItems caps the number of stored items. 0 or less disables the cap.
	MaxItems int `json:"max_items"`

	// CleanupDays removes items older than this many days. 0 or less disables it.
	CleanupDays int `json:"cleanup_days"`

	// DedupeWindowMS drops a repeated clipboard capture arriving within this window
	DedupeWindowMS int `json:"dedupe_window_ms,omitempty"`

	// Provider forces an OCR/LLM provider ("anthropic", "openai", "gemini").
	// Empty means detect from environment keys.
	Provider string `json:"provider,omitempty"`

	// Model overrides the provider's default model
	Model string `json:"model,omitempty"`

	// ProviderTimeoutSeconds bounds each OCR/LLM call
	ProviderTimeoutSeconds int `json:"provider_timeout_seconds,omitempty"`

	// MonitorIntervalMS is the clipboard polling period
	MonitorIntervalMS int `json:"monitor_interval_ms,omitempty"`

	// LastSaved is stamped on every flush
	LastSaved time.Time `json:"last_saved,omitempty"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		LLMPrompt:              DefaultPrompt,
		WindowGeometry:         "900x600",
		MaxItems:               1000,
		CleanupDays:            30,
		DedupeWindowMS:         500,
		ProviderTimeoutSeconds: 60,
		MonitorIntervalMS:      250,
	}
}

// DedupeWindow returns DedupeWindowMS as a duration.
func (s *Settings) DedupeWindow() time.Duration {
	return time.Duration(s.DedupeWindowMS) * time.Millisecond
}

// ProviderTimeout returns ProviderTimeoutSeconds as a duration.
func (s *Settings) ProviderTimeout() time.Duration {
	return time.Duration(s.ProviderTimeoutSeconds) * time.Second
}

// MonitorInterval returns MonitorIntervalMS as a duration.
func (s *Settings) MonitorInterval() time.Duration {
	return time.Duration(s.MonitorIntervalMS) * time.Millisecond
}

// RenderPrompt substitutes text into the LLM prompt.
func (s *Settings) RenderPrompt(text string) string {
	return strings.ReplaceAll(s.LLMPrompt, TextPlaceholder, text)
}

// Validate checks the fields a user can set by hand.
func (s *Settings) Validate() error {
	if err := ValidatePrompt(s.LLMPrompt); err != nil {
		return err
	}
	if s.WindowGeometry != "" && !geometryRegex.MatchString(s.WindowGeometry) {
		return clerrors.NewInvalidRequest(fmt.Sprintf("window_geometry %q must look like 900x600 or 900x600+10+10", s.WindowGeometry))
	}
	switch s.Provider {
	case "", "anthropic", "openai", "gemini":
	default:
		return clerrors.NewInvalidRequest(fmt.Sprintf("unknown provider %q", s.Provider))
	}
	return nil
}

// ValidatePrompt requires the {text} placeholder.
func ValidatePrompt(prompt string) error {
	if !strings.Contains(prompt, TextPlaceholder) {
		return clerrors.NewInvalidRequest("llm_prompt must contain the {text} placeholder")
	}
	return nil
}

// Load loads settings from baseDir/settings.json.
// Returns defaults if the file doesn't exist. A malformed file yields the
// defaults together with a CONFIG error so callers can warn and carry on.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.clipstash.
func Load(baseDir string) (*Settings, error) {
	path := filepath.Join(baseDir, FileName)
	raw, err := loadFileRaw(path)
	if err != nil {
		return DefaultSettings(), clerrors.NewConfig(path, err)
	}
	merged := Merge(DefaultSettings(), raw)
	if err := ValidatePrompt(merged.LLMPrompt); err != nil {
		merged.LLMPrompt = DefaultPrompt
		return merged, clerrors.NewConfig(path, err)
	}
	return merged, nil
}

// loadFileRaw loads settings from a specific file path.
// Returns zero-valued settings if the file doesn't exist (not defaults).
func loadFileRaw(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, err
	}

	s := &Settings{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Merge combines base and overlay settings.
// Overlay values take precedence when non-zero. MaxItems and CleanupDays
// accept a negative overlay to mean "disabled".
func Merge(base, overlay *Settings) *Settings {
	result := *base

	if overlay.LLMPrompt != "" {
		result.LLMPrompt = overlay.LLMPrompt
	}
	if overlay.WindowGeometry != "" {
		result.WindowGeometry = overlay.WindowGeometry
	}
	result.OCRExpanded = base.OCRExpanded || overlay.OCRExpanded

	if overlay.MaxItems != 0 {
		result.MaxItems = overlay.MaxItems
	}
	if overlay.CleanupDays != 0 {
		result.CleanupDays = overlay.CleanupDays
	}
	if overlay.DedupeWindowMS != 0 {
		result.DedupeWindowMS = overlay.DedupeWindowMS
	}
	if overlay.Provider != "" {
		result.Provider = overlay.Provider
	}
	if overlay.Model != "" {
		result.Model = overlay.Model
	}
	if overlay.ProviderTimeoutSeconds != 0 {
		result.ProviderTimeoutSeconds = overlay.ProviderTimeoutSeconds
	}
	if overlay.MonitorIntervalMS != 0 {
		result.MonitorIntervalMS = overlay.MonitorIntervalMS
	}
	if !overlay.LastSaved.IsZero() {
		result.LastSaved = overlay.LastSaved
	}

	return &result
}

// Save writes settings to baseDir/settings.json atomically. A symlink at
// the destination is refused.
func Save(baseDir string, s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	err = storage.WriteAtomic(filepath.Join(baseDir, FileName), 0600, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
