package ops

import (
	"context"

	"github.com/hpungsan/clipstash/internal/storage"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Delete removes an item. Deleting an unknown id succeeds with Deleted=false.
func Delete(ctx context.Context, st *storage.Store, input DeleteInput) (*DeleteOutput, error) {
	id, err := validateID(input.ID)
	if err != nil {
		return nil, err
	}

	deleted, err := st.Remove(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DeleteOutput{ID: id, Deleted: deleted}, nil
}
