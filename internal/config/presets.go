package config

import (
	"sort"
	"strings"
)

// Presets are ready-made LLM prompts selectable by name.
var Presets = map[string]string{
	"explain":   "Please explain the following text in simple terms:\n\n{text}",
	"code":      "Please review this code and suggest improvements:\n\n{text}",
	"translate": "Please translate the following text to English:\n\n{text}",
	"summarize": "Please provide a concise summary of the following text:\n\n{text}",
	"fix":       "Please fix any errors in the following text:\n\n{text}",
}

// Preset looks up a preset prompt, case-insensitively.
func Preset(name string) (string, bool) {
	p, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
