// Package search filters item metadata. It keeps no state: every query runs
// over the list it is given, so results always reflect the latest store.
package search

import (
	"fmt"
	"html"
	"strings"

	"github.com/gobwas/glob"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

// Query selects items. Zero-valued fields match everything.
type Query struct {
	// Text is matched case-insensitively as a substring of the preview
	Text string

	// Glob treats Text as a glob pattern (*, ?, [..], {a,b}) over the whole preview
	Glob bool

	Type   item.Type
	Source item.Source
}

// Matcher is a compiled Query.
type Matcher struct {
	needle string
	g      glob.Glob
	typ    item.Type
	source item.Source
}

// Compile validates q and prepares it for matching.
func Compile(q Query) (*Matcher, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown type %q", q.Type))
	}
	if q.Source != "" && !q.Source.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown source %q", q.Source))
	}

	m := &Matcher{
		needle: strings.ToLower(q.Text),
		typ:    q.Type,
		source: q.Source,
	}
	if q.Glob && q.Text != "" {
		g, err := glob.Compile(strings.ToLower(q.Text))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid glob pattern: %v", err))
		}
		m.g = g
	}
	return m, nil
}

// Match reports whether it satisfies the query.
func (m *Matcher) Match(it item.Item) bool {
	if m.typ != "" && it.Type != m.typ {
		return false
	}
	if m.source != "" && it.Source != m.source {
		return false
	}
	preview := strings.ToLower(it.Preview)
	if m.g != nil {
		return m.g.Match(preview)
	}
	return strings.Contains(preview, m.needle)
}

// Filter returns the items matching q, preserving input order.
func Filter(items []item.Item, q Query) ([]item.Item, error) {
	m, err := Compile(q)
	if err != nil {
		return nil, err
	}
	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		if m.Match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Highlight returns preview as HTML with every case-insensitive occurrence of
// query wrapped in <b>. User content is escaped; only <b> tags are emitted.
func Highlight(preview, query string) string {
	if query == "" {
		return html.EscapeString(preview)
	}
	lowerPreview := strings.ToLower(preview)
	lowerQuery := strings.ToLower(query)

	// Lowercasing can change byte lengths for some runes; fall back to plain
	// escaping rather than slicing at the wrong offsets.
	if len(lowerPreview) != len(preview) || len(lowerQuery) != len(query) {
		return html.EscapeString(preview)
	}

	var b strings.Builder
	rest := 0
	for {
		i := strings.Index(lowerPreview[rest:], lowerQuery)
		if i < 0 {
			break
		}
		start := rest + i
		end := start + len(query)
		b.WriteString(html.EscapeString(preview[rest:start]))
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(preview[start:end]))
		b.WriteString("</b>")
		rest = end
	}
	b.WriteString(html.EscapeString(preview[rest:]))
	return b.String()
}
