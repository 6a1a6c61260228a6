package ops

import (
	"context"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	item.Item
	Text string `json:"text"`
}

// Fetch returns an item's metadata together with its full body.
// A missing body is NOT_FOUND even when the index still lists the id; the
// store repairs its index on the next read.
func Fetch(ctx context.Context, st *storage.Store, input FetchInput) (*FetchOutput, error) {
	id, err := validateID(input.ID)
	if err != nil {
		return nil, err
	}

	text, err := st.Body(ctx, id)
	if err != nil {
		return nil, err
	}

	meta, ok, err := st.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A body the index does not know about: adopt it.
		st.MarkDirty()
		if meta, ok, err = st.Lookup(ctx, id); err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NewNotFound(id)
		}
	}

	return &FetchOutput{Item: meta, Text: text}, nil
}
