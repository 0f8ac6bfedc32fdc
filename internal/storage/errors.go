package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileStorage is matched by every error in the file storage family.
	ErrFileStorage = errors.New("file storage error")
	// ErrNotFound marks a missing stored file.
	ErrNotFound = errors.New("file not found")
)

// InvalidFormatError is returned for a format outside the allow-list. It is
// raised before anything is written.
type InvalidFormatError struct {
	Format  string
	Allowed []string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q (allowed: %s)", e.Format, strings.Join(e.Allowed, ", "))
}

func (e *InvalidFormatError) Is(target error) bool { return target == ErrFileStorage }

// StorageOperationError wraps an I/O failure.
type StorageOperationError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageOperationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageOperationError) Unwrap() error { return e.Err }

func (e *StorageOperationError) Is(target error) bool { return target == ErrFileStorage }
