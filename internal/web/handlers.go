package web

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/capture"
	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/ops"
	"github.com/hpungsan/clipstash/internal/storage"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *storage.Store
	settings *config.Manager
	buf      *capture.Buffer
	renderer *Renderer
	log      *zap.Logger
	now      func() time.Time
}

// HandleList handles GET /items: list or search items, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := ListPageData{
		PageData: PageData{
			Title:   "Items",
			Version: h.renderer.version,
			Nav:     "items",
		},
		Query:    q.Get("q"),
		Glob:     parseBoolParam(r, "glob"),
		Type:     q.Get("type"),
		Source:   q.Get("source"),
		Message:  q.Get("msg"),
		HasQuery: q.Get("q") != "",
	}

	result, err := ops.Search(r.Context(), h.store, ops.SearchInput{
		Query:  data.Query,
		Glob:   data.Glob,
		Type:   data.Type,
		Source: data.Source,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data.Items = result.Items
	data.Pagination = result.Pagination
	if snap, ok := h.buf.Current(); ok || snap.Err != "" {
		data.Capture = &snap
	}

	// Live search only swaps the results table.
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "list", "search-results", data)
		return
	}
	h.renderer.renderPage(w, r, "list", data)
}

// HandleDetail handles GET /items/{id}: view a single item.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Fetch(r.Context(), h.store, ops.FetchInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   out.ID,
			Version: h.renderer.version,
			Nav:     "items",
		},
		Item:         out,
		RenderedHTML: renderBody(out.Type, out.Text),
	})
}

// HandleDelete handles DELETE /items/{id} and POST /items/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.store, ops.DeleteInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/items")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/items", http.StatusSeeOther)
}

// HandleStore handles POST /items. A non-empty "text" form value is stored
// as-is; otherwise the current capture buffer is stored.
func (h *Handlers) HandleStore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input := ops.StoreInput{
		Text:   r.FormValue("text"),
		Source: item.Source(r.FormValue("source")),
	}
	if item.IsBlank(input.Text) {
		snap, ok := h.buf.Current()
		if !ok {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("nothing captured to store"))
			return
		}
		input.Text, input.Source = snap.Text, snap.Source
	}

	result, err := ops.Store(r.Context(), h.store, h.settings.Get(), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, result)
		return
	}

	msg := "Stored " + result.ID
	if result.Cleanup != nil {
		msg += ". " + result.Cleanup.Message
	}
	http.Redirect(w, r, "/items?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

// HandleCapture handles GET /capture: the current buffer as JSON.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.buf.Current()
	renderJSON(w, http.StatusOK, map[string]any{
		"empty":   !ok,
		"capture": snap,
	})
}

// HandleExport handles GET /export: download every item.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := ops.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = ops.ExportText
	}
	ext := "txt"
	contentType := "text/plain; charset=utf-8"
	switch format {
	case ops.ExportText:
	case ops.ExportYAML, "yml":
		format, ext, contentType = ops.ExportYAML, "yaml", "application/yaml"
	default:
		h.renderer.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("format must be text or yaml (got %q)", format)))
		return
	}

	now := h.now()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="export_%s.%s"`, now.Format("20060102_150405"), ext))

	// Headers are committed once the first byte is written, so a failure
	// part way through can only be logged.
	result, err := ops.ExportAll(r.Context(), h.store, w, format, now)
	if err != nil {
		h.log.Error("export download failed", zap.Error(err))
		return
	}
	for _, warn := range result.Warnings {
		h.log.Warn("export skipped item", zap.String("warning", warn))
	}
}

// HandleRebuild handles POST /rebuild.
func (h *Handlers) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Rebuild(r.Context(), h.store)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="notice">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/items?msg="+url.QueryEscape(result.Message), http.StatusSeeOther)
}

// HandleChromaCSS serves the syntax highlighting stylesheet.
func (h *Handlers) HandleChromaCSS(w http.ResponseWriter, r *http.Request) {
	css, err := chromaCSS()
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(css)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1" || s == "on"
}
