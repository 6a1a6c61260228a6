package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/ops"
	"github.com/hpungsan/clipstash/internal/storage"
)

// testSetup creates a temporary store and settings for testing.
func testSetup(t *testing.T) (*Handlers, string) {
	t.Helper()

	tmpDir := t.TempDir()
	st, err := storage.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	return NewHandlers(st, config.Open(tmpDir, nil)), tmpDir
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func storeText(t *testing.T, h *Handlers, text string) string {
	t.Helper()
	result, err := h.HandleStore(context.Background(), makeRequest(map[string]any{"text": text}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return parseOutput(t, result)["id"].(string)
}

func TestHandleStore(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
		wantType  string
	}{
		{
			name:     "store command",
			args:     map[string]any{"text": "git log --oneline"},
			wantType: "command",
		},
		{
			name:     "store with source",
			args:     map[string]any{"text": "Scanned paragraph of prose.", "source": "ocr"},
			wantType: "text",
		},
		{
			name:      "store without text",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "store whitespace only",
			args:      map[string]any{"text": " \n\t "},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "store with bad source",
			args:      map[string]any{"text": "hi", "source": "fax"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown argument",
			args:      map[string]any{"text": "hi", "workspace": "x"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleStore(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
				return
			}
			out := parseOutput(t, result)
			if out["type"] != tt.wantType {
				t.Errorf("type = %v, want %s", out["type"], tt.wantType)
			}
		})
	}
}

func TestHandleFetch(t *testing.T) {
	h, dir := testSetup(t)
	ctx := context.Background()
	id := storeText(t, h, "fetch me please")

	t.Run("existing", func(t *testing.T) {
		result, _ := h.HandleFetch(ctx, makeRequest(map[string]any{"id": id}))
		out := parseOutput(t, result)
		if out["text"] != "fetch me please" {
			t.Errorf("text = %v", out["text"])
		}
		if out["id"] != id {
			t.Errorf("id = %v, want %s", out["id"], id)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		result, _ := h.HandleFetch(ctx, makeRequest(map[string]any{"id": "20200101_000000_000000_00000000"}))
		assertErrorCode(t, result, "NOT_FOUND")
	})

	t.Run("malformed id", func(t *testing.T) {
		result, _ := h.HandleFetch(ctx, makeRequest(map[string]any{"id": "../../etc/passwd"}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("body removed by hand", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, storage.ItemsDir, id+".txt")); err != nil {
			t.Fatal(err)
		}
		result, _ := h.HandleFetch(ctx, makeRequest(map[string]any{"id": id}))
		assertErrorCode(t, result, "NOT_FOUND")
	})
}

func TestHandleDelete(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	id := storeText(t, h, "short lived")

	result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if out := parseOutput(t, result); out["deleted"] != true {
		t.Errorf("deleted = %v, want true", out["deleted"])
	}

	// Idempotent.
	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if out := parseOutput(t, result); out["deleted"] != false {
		t.Errorf("second delete: deleted = %v, want false", out["deleted"])
	}

	result, _ = h.HandleFetch(ctx, makeRequest(map[string]any{"id": id}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleList(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	for _, text := range []string{"first note", "https://go.dev", "third note"} {
		storeText(t, h, text)
	}

	tests := []struct {
		name        string
		args        map[string]any
		wantCount   int
		wantHasMore bool
		wantFirst   string
	}{
		{"all", map[string]any{}, 3, false, "third note"},
		{"paged", map[string]any{"limit": 2}, 2, true, "third note"},
		{"offset", map[string]any{"limit": 2, "offset": 2}, 1, false, "first note"},
		{"type filter", map[string]any{"type": "url"}, 1, false, "https://go.dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := h.HandleList(ctx, makeRequest(tt.args))
			out := parseOutput(t, result)
			items := out["items"].([]any)
			if len(items) != tt.wantCount {
				t.Fatalf("count = %d, want %d", len(items), tt.wantCount)
			}
			if p := out["pagination"].(map[string]any); p["has_more"] != tt.wantHasMore {
				t.Errorf("has_more = %v, want %v", p["has_more"], tt.wantHasMore)
			}
			first := items[0].(map[string]any)
			if first["preview"] != tt.wantFirst {
				t.Errorf("first = %v, want %s", first["preview"], tt.wantFirst)
			}
			if _, ok := first["text"]; ok {
				t.Error("list must not include bodies")
			}
		})
	}

	t.Run("bad source", func(t *testing.T) {
		result, _ := h.HandleList(ctx, makeRequest(map[string]any{"source": "scanner"}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleSearch(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	storeText(t, h, "git commit -m 'init'")
	storeText(t, h, "groceries: eggs, milk")
	storeText(t, h, "git push")

	result, _ := h.HandleSearch(ctx, makeRequest(map[string]any{"query": "GIT"}))
	out := parseOutput(t, result)
	items := out["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("count = %d, want 2", len(items))
	}
	if first := items[0].(map[string]any); first["preview"] != "git push" {
		t.Errorf("newest match should come first, got %v", first["preview"])
	}
	if snippet := items[0].(map[string]any)["snippet"].(string); !strings.Contains(snippet, "<b>git</b>") {
		t.Errorf("snippet = %q", snippet)
	}

	result, _ = h.HandleSearch(ctx, makeRequest(map[string]any{"query": "*eggs*", "glob": true}))
	if items := parseOutput(t, result)["items"].([]any); len(items) != 1 {
		t.Errorf("glob count = %d, want 1", len(items))
	}

	result, _ = h.HandleSearch(ctx, makeRequest(map[string]any{"query": strings.Repeat("x", ops.MaxQueryLength+1)}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleExport(t *testing.T) {
	h, dir := testSetup(t)
	ctx := context.Background()
	storeText(t, h, "exported line")

	path := filepath.Join(dir, "out.yaml")
	result, _ := h.HandleExport(ctx, makeRequest(map[string]any{"path": path, "format": "yaml"}))
	out := parseOutput(t, result)
	if out["count"] != float64(1) {
		t.Errorf("count = %v, want 1", out["count"])
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "exported line") {
		t.Errorf("export file = %s", data)
	}

	result, _ = h.HandleExport(ctx, makeRequest(map[string]any{"path": filepath.Join(dir, "out.txt"), "format": "yaml"}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleExport(ctx, makeRequest(map[string]any{"path": dir + "/../escape.txt"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleRebuild(t *testing.T) {
	h, dir := testSetup(t)
	ctx := context.Background()
	id := storeText(t, h, "will vanish")
	storeText(t, h, "stays")

	if err := os.Remove(filepath.Join(dir, storage.ItemsDir, id+".txt")); err != nil {
		t.Fatal(err)
	}

	result, _ := h.HandleRebuild(ctx, makeRequest(nil))
	out := parseOutput(t, result)
	if out["total"] != float64(1) || out["dropped"] != float64(1) {
		t.Errorf("report = %v", out)
	}
}

func TestHandleCleanup(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		storeText(t, h, fmt.Sprintf("item %d", i))
		time.Sleep(time.Millisecond)
	}

	result, _ := h.HandleCleanup(ctx, makeRequest(map[string]any{"max_items": 3}))
	out := parseOutput(t, result)
	if out["deleted"] != float64(2) {
		t.Errorf("deleted = %v, want 2", out["deleted"])
	}

	result, _ = h.HandleList(ctx, makeRequest(nil))
	items := parseOutput(t, result)["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("count = %d, want 3", len(items))
	}
	if items[2].(map[string]any)["preview"] != "item 2" {
		t.Errorf("oldest survivor = %v, want item 2", items[2].(map[string]any)["preview"])
	}
}

func TestServerRegistration(t *testing.T) {
	h, _ := testSetup(t)

	s := NewServer(h.store, h.settings, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"clip_store",
		"clip_fetch",
		"clip_delete",
		"clip_list",
		"clip_search",
		"clip_export",
		"clip_rebuild",
		"clip_cleanup",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != len(toolRegistry) {
		t.Fatalf("len = %d, want %d", len(names), len(toolRegistry))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
	for name, entry := range toolRegistry {
		if entry.def.Name != name {
			t.Errorf("registry key %q has tool def named %q", name, entry.def.Name)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("open /home/me/.clipstash/index.json: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorPayload(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("cleanup: %w", errors.NewStorageWrite("index commit", fmt.Errorf("disk full")))

	errObj := errorPayload(t, errorResult(wrappedErr))
	if errObj["code"] != string(errors.ErrStorageWrite) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrStorageWrite)
	}
	msg := errObj["message"].(string)
	if !strings.HasPrefix(msg, "cleanup: ") || !strings.Contains(msg, "disk full") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorPayload(t, errorResult(errors.NewNotFound("abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_ForeignError(t *testing.T) {
	errObj := errorPayload(t, errorResult(fmt.Errorf("boom")))
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message = %v", errObj["message"])
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorPayload(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error %s, got success", expectedCode)
	}
	if code := errorPayload(t, result)["code"]; code != expectedCode {
		t.Errorf("error code = %v, want %s", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "(no content)"
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return "(non-text content)"
}
