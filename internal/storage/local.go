package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
)

var (
	AudioFormats  = []string{"wav", "mp3", "m4a"}
	ReportFormats = []string{"html", "pdf", "txt"}
)

// versionLayout sorts lexicographically in chronological order.
const versionLayout = "20060102_150405.000000"

// LocalStorage keeps source audio and versioned reports under one root:
//
//	{root}/audio/{uuid}.{format}
//	{root}/reports/{report_id}/{timestamp}/report.{format}
type LocalStorage struct {
	root string
	now  func() time.Time
}

// NewLocalStorage creates the audio and report directories under root.
func NewLocalStorage(root string) (*LocalStorage, error) {
	ls := &LocalStorage{root: root, now: time.Now}
	for _, dir := range []string{ls.audioDir(), ls.reportsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &StorageOperationError{Op: "create directory", Path: dir, Err: err}
		}
	}
	return ls, nil
}

func (ls *LocalStorage) Root() string       { return ls.root }
func (ls *LocalStorage) audioDir() string   { return filepath.Join(ls.root, "audio") }
func (ls *LocalStorage) reportsDir() string { return filepath.Join(ls.root, "reports") }

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(format, "."))
}

func checkFormat(format string, allowed []string) (string, error) {
	f := normalizeFormat(format)
	if !slices.Contains(allowed, f) {
		return "", &InvalidFormatError{Format: format, Allowed: allowed}
	}
	return f, nil
}

// IsAudioFormat reports whether format can be stored by StoreAudio.
func IsAudioFormat(format string) bool {
	return slices.Contains(AudioFormats, normalizeFormat(format))
}

// checkID rejects ids that would escape the storage root.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return &StorageOperationError{Op: "validate id", Err: fmt.Errorf("invalid id %q", id)}
	}
	return nil
}

// StoreAudio copies the file at path into storage and returns its new id.
// The source file is left in place.
func (ls *LocalStorage) StoreAudio(path, format string) (string, error) {
	f, err := checkFormat(format, AudioFormats)
	if err != nil {
		return "", err
	}

	fileID := uuid.New().String()
	dest := filepath.Join(ls.audioDir(), fileID+"."+f)
	if err := copyFile(path, dest); err != nil {
		return "", err
	}

	logger.Debug("Stored audio", "file_id", fileID, "path", dest)
	return fileID, nil
}

// GetAudio resolves a stored audio id to its path.
func (ls *LocalStorage) GetAudio(fileID string) (string, error) {
	if err := checkID(fileID); err != nil {
		return "", err
	}
	for _, f := range AudioFormats {
		p := filepath.Join(ls.audioDir(), fileID+"."+f)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", &StorageOperationError{Op: "get audio", Path: fileID, Err: ErrNotFound}
}

// StoreReport writes content as a new version of reportID and returns its path.
func (ls *LocalStorage) StoreReport(reportID string, content []byte, format string) (string, error) {
	f, err := checkFormat(format, ReportFormats)
	if err != nil {
		return "", err
	}
	if err := checkID(reportID); err != nil {
		return "", err
	}

	base := filepath.Join(ls.reportsDir(), reportID)
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", &StorageOperationError{Op: "create report directory", Path: base, Err: err}
	}

	dir, err := ls.newVersionDir(base)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, "report."+f)
	if err := os.WriteFile(dest, content, 0644); err != nil {
		return "", &StorageOperationError{Op: "write report", Path: dest, Err: err}
	}
	return dest, nil
}

// AddReportFormat writes another format into the latest version of reportID
// so that one version holds every rendering of the same report.
func (ls *LocalStorage) AddReportFormat(reportID string, content []byte, format string) (string, error) {
	f, err := checkFormat(format, ReportFormats)
	if err != nil {
		return "", err
	}
	versions, err := ls.ListReportVersions(reportID)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return ls.StoreReport(reportID, content, f)
	}
	dest := filepath.Join(ls.reportsDir(), reportID, versions[len(versions)-1], "report."+f)
	if err := os.WriteFile(dest, content, 0644); err != nil {
		return "", &StorageOperationError{Op: "write report", Path: dest, Err: err}
	}
	return dest, nil
}

// newVersionDir creates a fresh timestamped directory, stepping forward a
// microsecond when a concurrent writer already took the current one.
func (ls *LocalStorage) newVersionDir(base string) (string, error) {
	t := ls.now()
	for attempt := 0; attempt < 100; attempt++ {
		dir := filepath.Join(base, t.Format(versionLayout))
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", &StorageOperationError{Op: "create report version", Path: dir, Err: err}
		}
		t = t.Add(time.Microsecond)
	}
	return "", &StorageOperationError{Op: "create report version", Path: base, Err: errors.New("too many concurrent versions")}
}

// GetReport returns the newest version of reportID in the given format
// (html when empty). ok is false when no such report exists.
func (ls *LocalStorage) GetReport(reportID, format string) (path string, ok bool, err error) {
	if format == "" {
		format = "html"
	}
	f, err := checkFormat(format, ReportFormats)
	if err != nil {
		return "", false, err
	}
	versions, err := ls.ListReportVersions(reportID)
	if err != nil {
		return "", false, err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		p := filepath.Join(ls.reportsDir(), reportID, versions[i], "report."+f)
		if _, err := os.Stat(p); err == nil {
			return p, true, nil
		}
	}
	return "", false, nil
}

// ListReportVersions returns the version directory names of reportID, oldest first.
func (ls *LocalStorage) ListReportVersions(reportID string) ([]string, error) {
	if err := checkID(reportID); err != nil {
		return nil, err
	}
	base := filepath.Join(ls.reportsDir(), reportID)
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageOperationError{Op: "list report versions", Path: base, Err: err}
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// ListReportIDs returns every report id that has a directory in storage.
func (ls *LocalStorage) ListReportIDs() ([]string, error) {
	entries, err := os.ReadDir(ls.reportsDir())
	if err != nil {
		return nil, &StorageOperationError{Op: "list reports", Path: ls.reportsDir(), Err: err}
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// CleanupOldReports removes all but the keep newest versions of reportID and
// returns how many were removed.
func (ls *LocalStorage) CleanupOldReports(reportID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	versions, err := ls.ListReportVersions(reportID)
	if err != nil {
		return 0, err
	}
	if len(versions) <= keep {
		return 0, nil
	}

	removed := 0
	for _, v := range versions[:len(versions)-keep] {
		dir := filepath.Join(ls.reportsDir(), reportID, v)
		if err := os.RemoveAll(dir); err != nil {
			return removed, &StorageOperationError{Op: "remove report version", Path: dir, Err: err}
		}
		removed++
	}
	logger.Debug("Pruned report versions", "report_id", reportID, "removed", removed, "kept", keep)
	return removed, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return &StorageOperationError{Op: "open source", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return &StorageOperationError{Op: "create", Path: dest, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return &StorageOperationError{Op: "copy", Path: dest, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return &StorageOperationError{Op: "close", Path: dest, Err: err}
	}
	return nil
}

// sanitizeFilename reduces name to a safe single path element.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	result := replacer.Replace(filepath.Base(name))
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
