package config

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager owns the in-memory settings for a running process. Settings are
// loaded once, mutated through Update, and flushed on every mutation and on
// shutdown.
type Manager struct {
	baseDir string
	log     *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	settings *Settings
}

// Open loads settings from baseDir. A malformed or invalid file is logged once
// and replaced by defaults in memory; it is not overwritten until the next flush.
func Open(baseDir string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := Load(baseDir)
	if err != nil {
		log.Warn("settings unreadable, using defaults", zap.Error(err))
	}
	return &Manager{baseDir: baseDir, log: log, now: time.Now, settings: s}
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.settings
}

// Update applies fn to a copy of the settings, validates the result, and
// flushes it. On any error the in-memory settings are unchanged.
func (m *Manager) Update(fn func(*Settings) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *m.settings
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.LastSaved = m.now().UTC()
	if err := Save(m.baseDir, &next); err != nil {
		return err
	}
	m.settings = &next
	return nil
}

// Flush writes the current settings to disk.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings.LastSaved = m.now().UTC()
	if err := Save(m.baseDir, m.settings); err != nil {
		m.log.Error("failed to flush settings", zap.Error(err))
		return err
	}
	return nil
}

// SetPrompt replaces the LLM prompt.
func (m *Manager) SetPrompt(prompt string) error {
	return m.Update(func(s *Settings) error {
		s.LLMPrompt = prompt
		return nil
	})
}

// SetGeometry records the display size.
func (m *Manager) SetGeometry(geometry string) error {
	return m.Update(func(s *Settings) error {
		s.WindowGeometry = geometry
		return nil
	})
}

// ToggleOCR flips the OCR panel state and returns the new value.
func (m *Manager) ToggleOCR() (bool, error) {
	var expanded bool
	err := m.Update(func(s *Settings) error {
		s.OCRExpanded = !s.OCRExpanded
		expanded = s.OCRExpanded
		return nil
	})
	return expanded, err
}
