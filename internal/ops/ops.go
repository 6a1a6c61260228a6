package ops

import (
	"fmt"
	"strings"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

// Pagination limits
const (
	DefaultListLimit   = 20
	MaxListLimit       = 100
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	MaxQueryLength     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// paginate clamps limit/offset and slices items accordingly.
func paginate(items []item.Item, limit, offset, defaultLimit, maxLimit int) ([]item.Item, Pagination) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = max(offset, 0)

	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)

	page := items[start:end]
	if page == nil {
		page = []item.Item{}
	}
	return page, Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
		Total:   total,
	}
}

// parseFilters validates optional type/source filters.
func parseFilters(typ, source string) (item.Type, item.Source, error) {
	t := item.Type(strings.ToLower(strings.TrimSpace(typ)))
	if t != "" && !t.Valid() {
		return "", "", errors.NewInvalidRequest(fmt.Sprintf("type must be one of: command, url, code, text (got %q)", typ))
	}
	s := item.Source(strings.ToLower(strings.TrimSpace(source)))
	if s != "" && !s.Valid() {
		return "", "", errors.NewInvalidRequest(fmt.Sprintf("source must be one of: clipboard, ocr, llm (got %q)", source))
	}
	return t, s, nil
}

// validateID trims id and checks its shape.
func validateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	if !item.ValidID(id) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid item id: %q", id))
	}
	return id, nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
