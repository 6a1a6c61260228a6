package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/capture"
	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators the web UI serves from.
type Deps struct {
	Store    *storage.Store
	Settings *config.Manager
	Buffer   *capture.Buffer
	Logger   *zap.Logger
}

// NewHandler builds the routed handler for the web UI.
func NewHandler(deps Deps, version string) (http.Handler, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handlers{
		store:    deps.Store,
		settings: deps.Settings,
		buf:      deps.Buffer,
		renderer: NewRenderer(templateSub, version, log),
		log:      log,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/items", http.StatusFound)
	})
	mux.HandleFunc("GET /items", h.HandleList)
	mux.HandleFunc("POST /items", h.HandleStore)
	mux.HandleFunc("GET /items/{id}", h.HandleDetail)
	mux.HandleFunc("DELETE /items/{id}", h.HandleDelete)
	mux.HandleFunc("POST /items/{id}/delete", h.HandleDelete)
	mux.HandleFunc("GET /capture", h.HandleCapture)
	mux.HandleFunc("GET /export", h.HandleExport)
	mux.HandleFunc("POST /rebuild", h.HandleRebuild)

	mux.HandleFunc("GET /static/chroma.css", h.HandleChromaCSS)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux), nil
}

// NewServer creates the HTTP server for the web UI.
func NewServer(deps Deps, version, bind string, port int) (*http.Server, error) {
	handler, err := NewHandler(deps, version)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              net.JoinHostPort(bind, fmt.Sprint(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("web UI running", zap.String("url", "http://"+srv.Addr))
	if host, _, err := net.SplitHostPort(srv.Addr); err == nil {
		if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
			log.Warn("server is binding to all interfaces and may be accessible from the network")
		}
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down web UI")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
