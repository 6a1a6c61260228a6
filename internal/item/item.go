package item

import (
	"strings"
	"time"
	"unicode/utf8"
)

// PreviewRunes is how many characters of the text are kept in the index.
const PreviewRunes = 100

// Type is the coarse classification of an item's text.
type Type string

const (
	TypeCommand Type = "command"
	TypeURL     Type = "url"
	TypeCode    Type = "code"
	TypeText    Type = "text"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeCommand, TypeURL, TypeCode, TypeText:
		return true
	}
	return false
}

// Source records which producer captured the text.
type Source string

const (
	SourceClipboard Source = "clipboard"
	SourceOCR       Source = "ocr"
	SourceLLM       Source = "llm"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceClipboard, SourceOCR, SourceLLM:
		return true
	}
	return false
}

// Item is the metadata of one stored text. The body lives in items/<ID>.txt
// and is never part of this struct.
type Item struct {
	// ID is derived from the creation instant and doubles as the body filename stem
	ID string `json:"id"`

	// Timestamp is the creation instant; it never changes
	Timestamp time.Time `json:"timestamp"`

	// Preview is the first PreviewRunes characters of the text
	Preview string `json:"preview"`

	Type Type `json:"type"`

	// Length is the character count (runes, not bytes) of the full text
	Length int `json:"length"`

	Source Source `json:"source"`
}

// New builds the metadata for text captured at ts. The ID is assigned by the store.
func New(text string, source Source, ts time.Time) Item {
	return Item{
		Timestamp: ts,
		Preview:   MakePreview(text),
		Type:      Classify(text),
		Length:    CountChars(text),
		Source:    source,
	}
}

// CountChars returns the character count as runes (not bytes).
// This correctly handles multi-byte UTF-8 characters.
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// MakePreview returns the first PreviewRunes characters of text.
func MakePreview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == PreviewRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// IsBlank reports whether text is empty or whitespace only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
