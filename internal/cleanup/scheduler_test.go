package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/storage"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestCleanOldFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.wav")
	fresh := filepath.Join(dir, "fresh.wav")
	writeAged(t, stale, 48*time.Hour)
	writeAged(t, fresh, time.Hour)

	s := NewScheduler(dir, 30, 24, nil, 0)
	stats := s.RunOnce()

	if stats.FilesDeleted != 1 || stats.BytesFreed != 4 {
		t.Errorf("stats = %+v, want 1 file / 4 bytes", stats)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file still present (err=%v)", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
}

func TestPruneReports(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := files.StoreReport("rec-1", []byte("<html></html>"), "html"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := files.StoreReport("rec-2", []byte("<html></html>"), "html"); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(t.TempDir(), 30, 24, files, 2)
	stats := s.RunOnce()
	if stats.VersionsRemoved != 2 {
		t.Errorf("VersionsRemoved = %d, want 2", stats.VersionsRemoved)
	}
	for id, want := range map[string]int{"rec-1": 2, "rec-2": 1} {
		versions, err := files.ListReportVersions(id)
		if err != nil {
			t.Fatal(err)
		}
		if len(versions) != want {
			t.Errorf("%s versions = %d, want %d", id, len(versions), want)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewScheduler(t.TempDir(), 1, 1, nil, 0)
	s.Start()
	s.Stop()
	s.Stop()
}
