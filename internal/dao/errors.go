package dao

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDataIntegrity marks constraint violations on write, chiefly a
	// duplicate recording id.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrRecordNotFound marks reads of rows that do not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// DAOError wraps every failure returned by this package with the operation
// that produced it. Use errors.Is with ErrDataIntegrity or ErrRecordNotFound
// to branch on the specific kind.
type DAOError struct {
	Op  string
	Err error
}

func (e *DAOError) Error() string {
	return fmt.Sprintf("dao: %s: %v", e.Op, e.Err)
}

func (e *DAOError) Unwrap() error { return e.Err }

func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DAOError
	if errors.As(err, &de) {
		return err
	}
	if isConstraint(err) {
		return &DAOError{Op: op, Err: fmt.Errorf("%w: %v", ErrDataIntegrity, err)}
	}
	return &DAOError{Op: op, Err: err}
}
