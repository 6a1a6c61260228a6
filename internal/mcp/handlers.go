package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/ops"
	"github.com/hpungsan/clipstash/internal/storage"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store    *storage.Store
	settings *config.Manager
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *storage.Store, settings *config.Manager) *Handlers {
	return &Handlers{store: st, settings: settings}
}

// StoreRequest represents the arguments for clip_store.
type StoreRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// IDRequest represents the arguments for clip_fetch and clip_delete.
type IDRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for clip_list.
type ListRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// SearchRequest represents the arguments for clip_search.
type SearchRequest struct {
	Query  string `json:"query,omitempty"`
	Glob   bool   `json:"glob,omitempty"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ExportRequest represents the arguments for clip_export.
type ExportRequest struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// CleanupRequest represents the arguments for clip_cleanup.
type CleanupRequest struct {
	MaxItems    *int `json:"max_items,omitempty"`
	CleanupDays *int `json:"cleanup_days,omitempty"`
}

// HandleStore handles the clip_store tool call.
func (h *Handlers) HandleStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Store(ctx, h.store, h.settings.Get(), ops.StoreInput{
		Text:   input.Text,
		Source: item.Source(strings.ToLower(input.Source)),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFetch handles the clip_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.store, ops.FetchInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the clip_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.store, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the clip_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.store, ops.ListInput{
		Limit:  input.Limit,
		Offset: input.Offset,
		Type:   input.Type,
		Source: input.Source,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSearch handles the clip_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.store, ops.SearchInput{
		Query:  input.Query,
		Glob:   input.Glob,
		Type:   input.Type,
		Source: input.Source,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the clip_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.store, ops.ExportInput{
		Path:   input.Path,
		Format: ops.ExportFormat(input.Format),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRebuild handles the clip_rebuild tool call.
func (h *Handlers) HandleRebuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Rebuild(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCleanup handles the clip_cleanup tool call.
func (h *Handlers) HandleCleanup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CleanupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	settings := h.settings.Get()
	cleanup := ops.CleanupInput{
		MaxItems:    settings.MaxItems,
		CleanupDays: settings.CleanupDays,
	}
	if input.MaxItems != nil {
		cleanup.MaxItems = *input.MaxItems
	}
	if input.CleanupDays != nil {
		cleanup.CleanupDays = *input.CleanupDays
	}

	result, err := ops.Cleanup(ctx, h.store, cleanup)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// decode unmarshals MCP request arguments into a typed struct. Unknown
// argument names are rejected so a misspelled filter does not silently
// match everything.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	if args == nil {
		return result, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("invalid arguments: %w", err)
	}
	return result, nil
}

// errorResult creates an MCP error result. Wrapping context added around a
// ClipError is kept in the message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cErr *errors.ClipError
	if stderrors.As(err, &cErr) {
		message := cErr.Message
		if prefix := strings.TrimSuffix(err.Error(), cErr.Error()); prefix != err.Error() && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": message,
			"status":  cErr.Status,
		}
		// INTERNAL details may carry file paths.
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
