package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/clipboard"
	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/logging"
	"github.com/hpungsan/clipstash/internal/mcp"
	"github.com/hpungsan/clipstash/internal/provider"
	"github.com/hpungsan/clipstash/internal/storage"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// homeEnv overrides the base directory.
const homeEnv = "CLIPSTASH_HOME"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"store": true, "fetch": true, "delete": true,
	"list": true, "search": true,
	"export": true, "import": true, "rebuild": true, "cleanup": true,
	"settings": true, "llm": true, "ocr": true,
	"watch": true, "serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// Global flags → CLI
	switch arg {
	case "--help", "-h", "--version", "-v", "--home", "--verbose":
		return true
	}
	return false // Default → MCP server
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _ _           _            _
   ___ | (_)_ __  ___| |_ __ _ ___| |__
  / __|| | | '_ \/ __| __/ _' / __| '_ \
 | (__ | | | |_) \__ \ || (_| \__ \ | | |
  \___||_|_| .__/|___/\__\__,_|___/_| |_|
           |_|

  Local clipboard, OCR and LLM capture store

  Usage: clipstash <command> [options]
         clipstash watch     terminal UI
         clipstash serve     web UI
         clipstash --help

  MCP server mode requires piped input.`)
}

// appEnv holds the dependencies every command shares. It is filled in lazily
// so that help and version output need no base directory.
type appEnv struct {
	store    *storage.Store
	settings *config.Manager
	log      *zap.Logger

	clipboard   clipboardDevice
	lookupEnv   func(string) (string, bool)
	newProvider func(ctx context.Context, settings config.Settings) (provider.Provider, error)
}

// clipboardDevice reads and writes the system clipboard.
type clipboardDevice interface {
	clipboard.Reader
	clipboard.Writer
}

func newAppEnv() *appEnv {
	env := &appEnv{
		log:       zap.NewNop(),
		clipboard: clipboard.System{},
		lookupEnv: os.LookupEnv,
	}
	env.newProvider = func(ctx context.Context, settings config.Settings) (provider.Provider, error) {
		return provider.Detect(ctx, settings, env.lookupEnv)
	}
	return env
}

// open resolves the base directory and opens the logger, store and settings.
// With toFile set, logs go to <base>/logs instead of stderr.
func (e *appEnv) open(home string, verbose, toFile bool) error {
	if e.store != nil {
		return nil
	}
	baseDir, err := resolveBaseDir(home)
	if err != nil {
		return err
	}

	opts := logging.Options{Verbose: verbose}
	if toFile {
		opts.Dir = filepath.Join(baseDir, "logs")
	}
	// The logger is usable even when err is set; it has fallen back to
	// stderr or to a no-op.
	log, err := logging.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	e.log = log

	st, err := storage.Init(baseDir, storage.WithLogger(log.Named("storage")))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	e.store = st
	e.settings = config.Open(baseDir, log.Named("config"))
	return nil
}

// close flushes settings and logs.
func (e *appEnv) close() {
	if e.settings != nil {
		_ = e.settings.Flush()
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

// resolveBaseDir picks --home, then CLIPSTASH_HOME, then ~/.clipstash.
func resolveBaseDir(home string) (string, error) {
	if home == "" {
		home = os.Getenv(homeEnv)
	}
	if home != "" {
		return filepath.Abs(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(userHome, ".clipstash"), nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// API keys may live in a .env file next to where clipstash is started.
	_ = godotenv.Load()

	env := newAppEnv()
	defer env.close()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			env.close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'clipstash --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := env.open("", false, false); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := mcp.Run(env.store, env.settings, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		env.close()
		os.Exit(1)
	}
}
