package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
)

// ArchiveItem is the set of artifacts published for one recording.
type ArchiveItem struct {
	RecordingID string
	Name        string
	Files       []string
	Summary     any
	CreatedAt   time.Time
}

func (a ArchiveItem) summaryJSON() ([]byte, error) {
	doc := map[string]any{
		"recording_id": a.RecordingID,
		"name":         a.Name,
		"created_at":   a.CreatedAt,
		"summary":      a.Summary,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Archiver publishes report artifacts to a remote store and returns a
// location for them.
type Archiver interface {
	Archive(ctx context.Context, item ArchiveItem) (string, error)
}

// ArchiveWithRetry calls a.Archive up to attempts times with quadratic
// backoff. Context cancellation stops the loop early.
func ArchiveWithRetry(ctx context.Context, a Archiver, item ArchiveItem, attempts int) (string, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		location, err := a.Archive(ctx, item)
		if err == nil {
			return location, nil
		}
		lastErr = err
		logger.Warn("Archive attempt failed",
			"recording_id", item.RecordingID, "attempt", fmt.Sprintf("%d/%d", attempt, attempts), "err", err)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * backoffUnit):
			}
		}
	}
	return "", lastErr
}

var backoffUnit = time.Second
