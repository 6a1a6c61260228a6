package ops

import (
	"context"

	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/search"
	"github.com/hpungsan/clipstash/internal/storage"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
	Type   string // optional filter
	Source string // optional filter
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []item.Item `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Sort       string      `json:"sort"`
}

// List returns item metadata newest first. Bodies are never read.
func List(ctx context.Context, st *storage.Store, input ListInput) (*ListOutput, error) {
	typ, source, err := parseFilters(input.Type, input.Source)
	if err != nil {
		return nil, err
	}

	items, err := st.Items(ctx)
	if err != nil {
		return nil, err
	}
	if typ != "" || source != "" {
		if items, err = search.Filter(items, search.Query{Type: typ, Source: source}); err != nil {
			return nil, err
		}
	}

	page, pagination := paginate(items, input.Limit, input.Offset, DefaultListLimit, MaxListLimit)
	return &ListOutput{
		Items:      page,
		Pagination: pagination,
		Sort:       "timestamp_desc",
	}, nil
}
