package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/capture"
	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/ops"
)

const chromaStyle = "github"

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "items", "capture"
}

// ListPageData is the template data for the item list page.
type ListPageData struct {
	PageData
	Items      []ops.SearchResultItem
	Pagination ops.Pagination
	Query      string
	Glob       bool
	Type       string
	Source     string
	HasQuery   bool
	Message    string
	Capture    *capture.Snapshot
}

// DetailPageData is the template data for the item detail page.
type DetailPageData struct {
	PageData
	Item         *ops.FetchOutput
	RenderedHTML template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer holds the parsed page templates.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       *zap.Logger
}

// NewRenderer parses the page templates in templateFS. It panics on a
// malformed template, which can only be a build defect.
func NewRenderer(templateFS fs.FS, version string, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	funcMap := template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"formatTime":  formatTime,
		"formatChars": formatChars,
		"safeHTML":    func(s string) template.HTML { return template.HTML(s) },
		"list":        func(vals ...string) []string { return vals },
	}

	// Every template other than layout.html is a page sharing the layout.
	layout := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))
	files, err := fs.Glob(templateFS, "*.html")
	if err != nil {
		panic(err)
	}
	templates := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == "layout.html" {
			continue
		}
		page := template.Must(template.Must(layout.Clone()).ParseFS(templateFS, file))
		templates[strings.TrimSuffix(file, ".html")] = page
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// renderPage writes a page with status 200.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus writes a full page, or only its "content" block for the
// partial requests app.js makes.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if isPartial(req) {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock executes one block of a page into memory first, so a template
// failure still produces a clean 500.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	var out bytes.Buffer
	t := r.templates[page]
	if t == nil {
		r.log.Error("unknown page template", zap.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := t.ExecuteTemplate(&out, block, data); err != nil {
		r.log.Error("render failed", zap.String("page", page), zap.String("block", block), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = out.WriteTo(w)
}

func isPartial(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

// renderError maps err to its status and answers in the format the client
// asked for: an inline fragment, JSON, or the error page.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var cErr *errors.ClipError
	if !stderrors.As(err, &cErr) {
		cErr = errors.NewInternal(err)
	}
	if cErr.Status >= http.StatusInternalServerError {
		r.log.Error("request failed", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
	}

	switch {
	case isPartial(req):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(cErr.Status)
		fmt.Fprintf(w, `<div class="error-message">[%s] %s</div>`, cErr.Code, template.HTMLEscapeString(cErr.Message))
	case wantsJSON(req):
		renderJSON(w, cErr.Status, map[string]any{"error": errorBody(cErr)})
	default:
		r.renderPageStatus(w, req, cErr.Status, "error", ErrorPageData{
			PageData:   PageData{Title: http.StatusText(cErr.Status), Version: r.version},
			StatusCode: cErr.Status,
			Message:    cErr.Message,
		})
	}
}

func errorBody(e *errors.ClipError) map[string]any {
	body := map[string]any{"code": string(e.Code), "message": e.Message, "status": e.Status}
	if len(e.Details) > 0 && e.Code != errors.ErrInternal {
		body["details"] = e.Details
	}
	return body
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderBody picks a renderer by item type: chroma for code and commands,
// goldmark for prose, escaped preformatted text for everything else.
func renderBody(typ item.Type, text string) template.HTML {
	switch typ {
	case item.TypeCode, item.TypeCommand:
		if h, err := highlight(typ, text); err == nil {
			return h
		}
	case item.TypeText:
		return renderMarkdown(text)
	}
	return template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>")
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the input is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func highlight(typ item.Type, text string) (template.HTML, error) {
	var lexer chroma.Lexer
	if typ == item.TypeCommand {
		lexer = lexers.Get("bash")
	} else {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := chromaFormatter().Format(&buf, styles.Get(chromaStyle), iterator); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func chromaFormatter() *chromahtml.Formatter {
	return chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4))
}

// chromaCSS returns the stylesheet matching the classes highlight emits.
func chromaCSS() ([]byte, error) {
	var buf bytes.Buffer
	if err := chromaFormatter().WriteCSS(&buf, styles.Get(chromaStyle)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatTime formats a timestamp as "2006-01-02 15:04:05" local time.
func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatChars groups digits in threes: 12345 -> "12,345".
func formatChars(n int) string {
	digits := strconv.Itoa(n)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	for i := len(digits) - 3; i > 0; i -= 3 {
		digits = digits[:i] + "," + digits[i:]
	}
	return sign + digits
}
