package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
)

// ReportPruner trims stored report versions.
type ReportPruner interface {
	ListReportIDs() ([]string, error)
	CleanupOldReports(reportID string, keep int) (int, error)
}

// Stats summarizes one cleanup pass.
type Stats struct {
	FilesDeleted    int
	BytesFreed      int64
	VersionsRemoved int
}

// Scheduler removes stale temp files and prunes old report versions
type Scheduler struct {
	tempDir      string
	interval     time.Duration
	maxAge       time.Duration
	reports      ReportPruner
	keepVersions int

	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new cleanup scheduler. reports may be nil, in which
// case only the temp directory is swept.
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, reports ReportPruner, keepVersions int) *Scheduler {
	return &Scheduler{
		tempDir:      tempDir,
		interval:     time.Duration(intervalMinutes) * time.Minute,
		maxAge:       time.Duration(maxAgeHours) * time.Hour,
		reports:      reports,
		keepVersions: keepVersions,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Start runs one pass immediately and then every interval
func (s *Scheduler) Start() {
	logger.Info("Running initial cleanup", "temp_dir", s.tempDir)
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	logger.Info("Cleanup scheduler started", "interval", s.interval, "max_age", s.maxAge, "keep_versions", s.keepVersions)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		logger.Info("Cleanup scheduler stopped")
	})
}

// RunOnce performs a single cleanup pass.
func (s *Scheduler) RunOnce() Stats {
	stats := s.cleanOldFiles()
	stats.VersionsRemoved = s.pruneReports()
	if stats.FilesDeleted > 0 || stats.VersionsRemoved > 0 {
		logger.Info("Cleanup complete",
			"files_deleted", stats.FilesDeleted,
			"freed_mb", float64(stats.BytesFreed)/(1024*1024),
			"versions_removed", stats.VersionsRemoved)
	}
	return stats
}

// cleanOldFiles removes files older than maxAge from the temp directory
func (s *Scheduler) cleanOldFiles() Stats {
	var stats Stats
	now := s.now()

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to delete old file", "path", path, "err", err)
			return nil
		}
		stats.FilesDeleted++
		stats.BytesFreed += info.Size()
		logger.Debug("Deleted old temp file", "file", filepath.Base(path), "age", age.Round(time.Hour), "size_kb", info.Size()/1024)
		return nil
	})
	if err != nil {
		logger.Warn("Error during temp cleanup", "err", err)
	}
	return stats
}

func (s *Scheduler) pruneReports() int {
	if s.reports == nil || s.keepVersions <= 0 {
		return 0
	}
	ids, err := s.reports.ListReportIDs()
	if err != nil {
		logger.Warn("Failed to list reports for pruning", "err", err)
		return 0
	}
	removed := 0
	for _, id := range ids {
		n, err := s.reports.CleanupOldReports(id, s.keepVersions)
		removed += n
		if err != nil {
			logger.Warn("Failed to prune report versions", "report_id", id, "err", err)
		}
	}
	return removed
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return err
	}
	logger.Debug("Temp directory ready", "path", tempDir)
	return nil
}
