package mcp

import "github.com/mark3labs/mcp-go/mcp"

var storeToolDef = mcp.NewTool("clip_store",
	mcp.WithDescription("Store text as a new clipboard item. The item is classified (command, url, code, text) "+
		"and retention limits from settings are applied afterwards."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Text to store. Must not be empty or whitespace-only.")),
	mcp.WithString("source", mcp.Description("Where the text came from"), mcp.Enum("clipboard", "ocr", "llm")),
)

var fetchToolDef = mcp.NewTool("clip_fetch",
	mcp.WithDescription("Fetch one item with its full text."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Item id, e.g. 20240101_120000_000001_01HZX3QK")),
)

var deleteToolDef = mcp.NewTool("clip_delete",
	mcp.WithDescription("Delete an item. Deleting an unknown id is not an error; deleted is false."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
)

var listToolDef = mcp.NewTool("clip_list",
	mcp.WithDescription("List item metadata newest first. Bodies are not included."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithString("type", mcp.Description("Only items of this type"), mcp.Enum("command", "url", "code", "text")),
	mcp.WithString("source", mcp.Description("Only items from this source"), mcp.Enum("clipboard", "ocr", "llm")),
)

var searchToolDef = mcp.NewTool("clip_search",
	mcp.WithDescription("Case-insensitive substring search over item previews (the first 100 characters), newest first."),
	mcp.WithString("query", mcp.Description("Text to look for. Empty matches everything.")),
	mcp.WithBoolean("glob", mcp.Description("Treat query as a glob pattern (*, ?, [abc], {a,b})")),
	mcp.WithString("type", mcp.Description("Only items of this type"), mcp.Enum("command", "url", "code", "text")),
	mcp.WithString("source", mcp.Description("Only items from this source"), mcp.Enum("clipboard", "ocr", "llm")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var exportToolDef = mcp.NewTool("clip_export",
	mcp.WithDescription("Export every item to a file. Defaults to export_<timestamp>.txt in the clipstash directory."),
	mcp.WithString("path", mcp.Description("Destination file; its extension must match the format")),
	mcp.WithString("format", mcp.Description("Export layout"), mcp.Enum("text", "yaml")),
)

var rebuildToolDef = mcp.NewTool("clip_rebuild",
	mcp.WithDescription("Rebuild the index from the item files: drop entries whose file is gone and recover files the index lost."),
)

var cleanupToolDef = mcp.NewTool("clip_cleanup",
	mcp.WithDescription("Apply retention now. Omitted limits fall back to settings; 0 disables a limit."),
	mcp.WithNumber("max_items", mcp.Description("Keep at most this many items")),
	mcp.WithNumber("cleanup_days", mcp.Description("Delete items older than this many days")),
)
