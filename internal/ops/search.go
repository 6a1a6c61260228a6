package ops

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/search"
	"github.com/hpungsan/clipstash/internal/storage"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query  string // empty matches everything
	Glob   bool   // treat Query as a glob pattern
	Type   string // optional filter
	Source string // optional filter
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// SearchResultItem wraps item metadata with a highlighted preview.
type SearchResultItem struct {
	item.Item
	// Snippet is HTML-safe: the preview is escaped; only <b>...</b> highlight tags are present.
	Snippet string `json:"snippet"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"`
}

// Search filters items by a case-insensitive substring of their preview,
// newest first. It is recomputed from the store on every call.
func Search(ctx context.Context, st *storage.Store, input SearchInput) (*SearchOutput, error) {
	if utf8.RuneCountInString(input.Query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}
	typ, source, err := parseFilters(input.Type, input.Source)
	if err != nil {
		return nil, err
	}

	items, err := st.Items(ctx)
	if err != nil {
		return nil, err
	}
	matched, err := search.Filter(items, search.Query{
		Text:   input.Query,
		Glob:   input.Glob,
		Type:   typ,
		Source: source,
	})
	if err != nil {
		return nil, err
	}

	page, pagination := paginate(matched, input.Limit, input.Offset, DefaultSearchLimit, MaxSearchLimit)

	results := make([]SearchResultItem, len(page))
	for i, it := range page {
		snippet := search.Highlight(it.Preview, input.Query)
		if input.Glob {
			snippet = search.Highlight(it.Preview, "")
		}
		results[i] = SearchResultItem{Item: it, Snippet: snippet}
	}

	return &SearchOutput{
		Items:      results,
		Pagination: pagination,
		Sort:       "timestamp_desc",
	}, nil
}
