// Package cleanup removes local temporary copies once files are archived,
// and periodically sweeps the staging directory for leftovers from crashed
// or abandoned requests.
package cleanup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/media-archiver/internal/logger"
)

// Manager deletes staged files.
type Manager struct {
	stagingDir string
	olderThan  time.Duration
	cron       *cron.Cron
	logger     logger.Logger
}

// NewManager creates a Manager over stagingDir. olderThan is the minimum
// age before the sweep removes a file.
func NewManager(stagingDir string, olderThan time.Duration, log logger.Logger) *Manager {
	return &Manager{
		stagingDir: stagingDir,
		olderThan:  olderThan,
		logger:     log,
	}
}

// Remove deletes path if it exists. A missing file is not an error, so
// callers can delete unconditionally without tracking what was already
// cleaned up.
func (m *Manager) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StartSweep schedules a recurring sweep of the staging directory using the
// given cron spec. An empty spec disables the sweep.
func (m *Manager) StartSweep(spec string) error {
	if spec == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, m.Sweep); err != nil {
		return err
	}
	c.Start()
	m.cron = c

	m.logger.Info("Staging sweep scheduled",
		logger.String("schedule", spec),
		logger.String("staging_dir", m.stagingDir),
		logger.Duration("older_than", m.olderThan),
	)
	return nil
}

// StopSweep stops the scheduled sweep, if any.
func (m *Manager) StopSweep() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// Sweep removes staged files older than the configured age. Errors on
// individual files are logged and skipped; a sweep is best-effort.
func (m *Manager) Sweep() {
	entries, err := os.ReadDir(m.stagingDir)
	if err != nil {
		m.logger.Warn("Staging sweep failed to read directory",
			logger.String("staging_dir", m.stagingDir),
			logger.Error(err),
		)
		return
	}

	cutoff := time.Now().Add(-m.olderThan)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.stagingDir, entry.Name())
		if err := os.Remove(path); err != nil {
			m.logger.Warn("Staging sweep failed to remove file",
				logger.String("path", path),
				logger.Error(err),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("Staging sweep completed",
			logger.Int("removed", removed),
		)
	}
}
