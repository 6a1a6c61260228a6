// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sessionID     string
	sessionIDOnce sync.Once
)

// SessionID returns the id shared by all log lines of this process.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// Options controls logger construction.
type Options struct {
	// Verbose enables debug level.
	Verbose bool

	// Level is the minimum level when Verbose is false. Defaults to info.
	Level zapcore.Level

	// Dir, when set, sends logs to Dir/<session>-clipstash.log instead of
	// stderr. Used when the terminal belongs to the TUI.
	Dir string
}

// New builds a JSON production logger. If the log file cannot be opened it
// falls back to stderr and returns the error alongside a usable logger.
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(opts.Level)
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.InitialFields = map[string]any{"session": SessionID()}

	var fileErr error
	if opts.Dir != "" {
		path, err := logFile(opts.Dir)
		if err == nil {
			config.OutputPaths = []string{path}
			config.ErrorOutputPaths = []string{path}
		} else {
			fileErr = err
		}
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	if fileErr != nil {
		logger.Warn("file logging unavailable, using stderr", zap.Error(fileErr))
	}
	return logger, fileErr
}

func logFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, SessionID()+"-clipstash.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}
	f.Close()
	return path, nil
}
