package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/clipstash/internal/capture"
	"github.com/hpungsan/clipstash/internal/clipboard"
	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/mcp"
	"github.com/hpungsan/clipstash/internal/ops"
	"github.com/hpungsan/clipstash/internal/provider"
	"github.com/hpungsan/clipstash/internal/storage"
	"github.com/hpungsan/clipstash/internal/tui"
	"github.com/hpungsan/clipstash/internal/web"
)

const (
	maxStdinBytes = 10 << 20
	maxImageBytes = 20 << 20

	defaultBind = "127.0.0.1"
	defaultPort = 8765
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "clipstash",
		Usage:   "Local clipboard, OCR and LLM capture store",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", EnvVars: []string{homeEnv}, Usage: "Base directory (default: ~/.clipstash)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			if err := env.open(c.String("home"), c.Bool("verbose"), c.Args().First() == "watch"); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
		Commands: []*cli.Command{
			storeCmd(env),
			fetchCmd(env),
			deleteCmd(env),
			listCmd(env),
			searchCmd(env),
			exportCmd(env),
			importCmd(env),
			rebuildCmd(env),
			cleanupCmd(env),
			settingsCmd(env),
			llmCmd(env),
			ocrCmd(env),
			watchCmd(env),
			serveCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// storeCmd creates the store command.
func storeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Store a new item (reads text from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Value: "clipboard", Usage: "Source: clipboard|ocr|llm"},
		},
		Action: func(c *cli.Context) error {
			// Require stdin input
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("text must be piped via stdin"))
			}
			text, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			output, err := ops.Store(c.Context, env.store, env.settings.Get(), ops.StoreInput{
				Text:   text,
				Source: item.Source(strings.ToLower(c.String("source"))),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch an item by ID",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "copy", Aliases: []string{"c"}, Usage: "Copy the item text to the clipboard"},
			&cli.BoolFlag{Name: "raw", Aliases: []string{"r"}, Usage: "Print only the item text"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(c.Context, env.store, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("copy") {
				if err := env.clipboard.WriteAll(output.Text); err != nil {
					return outputError(errors.NewInternal(fmt.Errorf("copy to clipboard: %w", err)))
				}
			}
			if c.Bool("raw") {
				_, err := io.WriteString(os.Stdout, output.Text)
				return err
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an item (idempotent)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, env.store, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List items, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by type: command|url|code|text"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Filter by source: clipboard|ocr|llm"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, env.store, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
				Type:   c.String("type"),
				Source: c.String("source"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search item previews (case-insensitive substring), newest first",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "glob", Aliases: []string{"g"}, Usage: "Treat the query as a glob pattern"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by type: command|url|code|text"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Filter by source: clipboard|ocr|llm"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, env.store, ops.SearchInput{
				Query:  strings.Join(c.Args().Slice(), " "),
				Glob:   c.Bool("glob"),
				Type:   c.String("type"),
				Source: c.String("source"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all items to a text or YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: <home>/export_<timestamp>.txt)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: string(ops.ExportText), Usage: "Export format: text|yaml"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, env.store, ops.ExportInput{
				Path:   c.String("path"),
				Format: ops.ExportFormat(c.String("format")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import items from a YAML export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, env.store, env.settings.Get(), ops.ImportInput{
				Path: c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// rebuildCmd creates the rebuild command.
func rebuildCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Regenerate index.json from the item files",
		Action: func(c *cli.Context) error {
			output, err := ops.Rebuild(c.Context, env.store)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// cleanupCmd creates the cleanup command.
func cleanupCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Apply retention limits now (defaults come from settings)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-items", Usage: "Keep at most N items (0 disables the cap)"},
			&cli.StringFlag{Name: "older-than", Usage: "Remove items older than N days (e.g., 30d)"},
		},
		Action: func(c *cli.Context) error {
			settings := env.settings.Get()
			input := ops.CleanupInput{
				MaxItems:    settings.MaxItems,
				CleanupDays: settings.CleanupDays,
			}
			if c.IsSet("max-items") {
				input.MaxItems = c.Int("max-items")
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.CleanupDays = days
			}

			output, err := ops.Cleanup(c.Context, env.store, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// settingsCmd creates the settings command and its subcommands.
func settingsCmd(env *appEnv) *cli.Command {
	show := func(*cli.Context) error {
		return outputJSON(env.settings.Get())
	}
	return &cli.Command{
		Name:   "settings",
		Usage:  "Show or change settings",
		Action: show,
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the current settings",
				Action: show,
			},
			{
				Name:      "set-prompt",
				Usage:     "Set the LLM prompt (argument or stdin); it must contain {text}",
				ArgsUsage: "[prompt]",
				Action: func(c *cli.Context) error {
					prompt := strings.Join(c.Args().Slice(), " ")
					if prompt == "" && stdinHasData() {
						text, err := readStdin(maxStdinBytes)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						prompt = text
					}
					if err := env.settings.SetPrompt(prompt); err != nil {
						return outputError(err)
					}
					return show(c)
				},
			},
			{
				Name:      "preset",
				Usage:     "Use a preset LLM prompt: " + strings.Join(config.PresetNames(), ", "),
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputJSON(config.Presets)
					}
					prompt, ok := config.Preset(c.Args().First())
					if !ok {
						return outputError(errors.NewInvalidRequest(fmt.Sprintf(
							"unknown preset %q (one of: %s)", c.Args().First(), strings.Join(config.PresetNames(), ", "))))
					}
					if err := env.settings.SetPrompt(prompt); err != nil {
						return outputError(err)
					}
					return show(c)
				},
			},
			{
				Name:      "set",
				Usage:     "Set one setting: " + strings.Join(settableKeys, ", "),
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(errors.NewInvalidRequest("usage: clipstash settings set <key> <value>"))
					}
					err := env.settings.Update(func(s *config.Settings) error {
						return applySetting(s, c.Args().Get(0), c.Args().Get(1))
					})
					if err != nil {
						return outputError(err)
					}
					return show(c)
				},
			},
		},
	}
}

// settableKeys are the settings "settings set" accepts.
var settableKeys = []string{
	"max_items", "cleanup_days", "dedupe_window_ms", "provider", "model",
	"provider_timeout_seconds", "monitor_interval_ms", "window_geometry", "ocr_expanded",
}

// applySetting parses value into the field named by key.
func applySetting(s *config.Settings, key, value string) error {
	intField := map[string]*int{
		"max_items":                &s.MaxItems,
		"cleanup_days":             &s.CleanupDays,
		"dedupe_window_ms":         &s.DedupeWindowMS,
		"provider_timeout_seconds": &s.ProviderTimeoutSeconds,
		"monitor_interval_ms":      &s.MonitorIntervalMS,
	}
	if p, ok := intField[key]; ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer (got %q)", key, value))
		}
		*p = n
		return nil
	}

	switch key {
	case "provider":
		s.Provider = strings.ToLower(strings.TrimSpace(value))
	case "model":
		s.Model = strings.TrimSpace(value)
	case "window_geometry":
		s.WindowGeometry = strings.TrimSpace(value)
	case "ocr_expanded":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("ocr_expanded must be true or false (got %q)", value))
		}
		s.OCRExpanded = b
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("unknown setting %q (one of: %s)", key, strings.Join(settableKeys, ", ")))
	}
	return nil
}

// providerOutput is the result of llm and ocr.
type providerOutput struct {
	Provider string           `json:"provider"`
	Text     string           `json:"text"`
	Stored   *ops.StoreOutput `json:"stored,omitempty"`
}

// llmCmd creates the llm command.
func llmCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "llm",
		Usage: "Send stdin through the configured LLM prompt",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "store", Usage: "Store the processed result"},
			&cli.BoolFlag{Name: "raw", Aliases: []string{"r"}, Usage: "Print only the processed text"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("text must be piped via stdin"))
			}
			text, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			if item.IsBlank(text) {
				return outputError(errors.NewInvalidRequest("text is required"))
			}

			settings := env.settings.Get()
			prompt := settings.RenderPrompt(text)
			return runProvider(c, env, settings, item.SourceLLM, func(ctx context.Context, p provider.Provider) (string, error) {
				resp, err := p.ProcessText(ctx, prompt)
				if err != nil {
					return "", err
				}
				return provider.FormatProcessed(text, resp), nil
			})
		},
	}
}

// ocrCmd creates the ocr command.
func ocrCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "ocr",
		Usage: "Extract the text of an image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true, Usage: "Image file (png, jpeg, gif or webp)"},
			&cli.BoolFlag{Name: "store", Usage: "Store the extracted text"},
			&cli.BoolFlag{Name: "raw", Aliases: []string{"r"}, Usage: "Print only the extracted text"},
		},
		Action: func(c *cli.Context) error {
			data, mimeType, err := readImage(c.String("image"))
			if err != nil {
				return outputError(err)
			}
			return runProvider(c, env, env.settings.Get(), item.SourceOCR, func(ctx context.Context, p provider.Provider) (string, error) {
				return p.ExtractText(ctx, data, mimeType)
			})
		},
	}
}

// runProvider calls the configured provider once and prints or stores the result.
func runProvider(c *cli.Context, env *appEnv, settings config.Settings, source item.Source, fn func(context.Context, provider.Provider) (string, error)) error {
	prov, err := env.newProvider(c.Context, settings)
	if err != nil {
		return outputError(err)
	}
	text, err := provider.Call(c.Context, prov, settings.ProviderTimeout(), fn)
	if err != nil {
		return outputError(err)
	}

	output := providerOutput{Provider: prov.Name(), Text: text}
	if c.Bool("store") && !item.IsBlank(text) {
		stored, err := ops.Store(c.Context, env.store, settings, ops.StoreInput{Text: text, Source: source})
		if err != nil {
			return outputError(err)
		}
		output.Stored = stored
	}
	if c.Bool("raw") {
		_, err := io.WriteString(os.Stdout, text+"\n")
		return err
	}
	return outputJSON(output)
}

// watchCmd creates the watch command.
func watchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Capture the clipboard in an interactive terminal UI",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			settings := env.settings.Get()
			mb := capture.NewMailbox()
			router := capture.NewRouter(capture.NewBuffer(), settings.DedupeWindow(),
				capture.WithLogger(env.log.Named("capture")))
			runner := env.newRunner(ctx, mb, settings)

			g, gctx := errgroup.WithContext(ctx)
			env.superviseCapture(g, gctx, mb, settings)
			g.Go(func() error {
				defer cancel()
				return tui.Run(gctx, tui.Options{
					Store:     env.store,
					Settings:  env.settings,
					Router:    router,
					Mailbox:   mb,
					Runner:    runner,
					Clipboard: env.clipboard,
					Logger:    env.log,
				})
			})

			err := g.Wait()
			if runner != nil {
				runner.Wait()
			}
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Capture the clipboard and serve the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: defaultBind, Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: defaultPort, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			settings := env.settings.Get()
			mb := capture.NewMailbox()
			buf := capture.NewBuffer()
			router := capture.NewRouter(buf, settings.DedupeWindow(), capture.WithLogger(env.log.Named("capture")))

			srv, err := web.NewServer(web.Deps{
				Store:    env.store,
				Settings: env.settings,
				Buffer:   buf,
				Logger:   env.log.Named("web"),
			}, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			g, gctx := errgroup.WithContext(ctx)
			env.superviseCapture(g, gctx, mb, settings)
			g.Go(func() error { return router.Run(gctx, mb) })
			g.Go(func() error { return web.Run(gctx, srv, env.log.Named("web")) })

			if err := g.Wait(); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			if err := mcp.Run(env.store, env.settings, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// superviseCapture starts the clipboard monitor and the items directory
// watcher under g. Clipboard changes are posted to mb.
func (e *appEnv) superviseCapture(g *errgroup.Group, ctx context.Context, mb *capture.Mailbox, settings config.Settings) {
	if _, system := e.clipboard.(clipboard.System); system && !clipboard.Available() {
		e.log.Warn("no clipboard utility found; clipboard capture is disabled")
	} else {
		monitor := clipboard.NewMonitor(e.clipboard, settings.MonitorInterval(), func(text string) {
			mb.Put(capture.Event{Text: text, Source: item.SourceClipboard})
		}, e.log.Named("clipboard"))
		g.Go(func() error { return monitor.Run(ctx) })
	}

	watcher, err := storage.NewWatcher(e.store, 0)
	if err != nil {
		e.log.Warn("items directory watcher unavailable", zap.Error(err))
		return
	}
	g.Go(func() error {
		if err := watcher.Start(ctx); err != nil {
			e.log.Warn("items directory watcher failed to start", zap.Error(err))
			watcher.Stop()
			return nil
		}
		<-ctx.Done()
		watcher.Stop()
		return nil
	})
}

// newRunner builds the background provider runner, or returns nil when no
// provider is configured.
func (e *appEnv) newRunner(ctx context.Context, mb *capture.Mailbox, settings config.Settings) *provider.Runner {
	prov, err := e.newProvider(ctx, settings)
	if err != nil {
		e.log.Info("LLM processing disabled", zap.Error(err))
		return nil
	}
	return provider.NewRunner(prov, mb, settings.ProviderTimeout(), e.log.Named("provider"))
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.ClipError
	if stderrors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads stdin up to limit bytes. One trailing newline is dropped;
// everything else is kept as typed.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// readImage loads an image for OCR and sniffs its MIME type.
func readImage(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", errors.NewInvalidRequest(fmt.Sprintf("cannot open image: %v", err))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, "", errors.NewInternal(fmt.Errorf("read image: %w", err))
	}
	if len(data) > maxImageBytes {
		return nil, "", errors.NewInvalidRequest(fmt.Sprintf("image exceeds %d bytes", maxImageBytes))
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", errors.NewInvalidRequest(fmt.Sprintf("%s is not an image (detected %s)", path, mimeType))
	}
	return data, mimeType, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 30d")
}
