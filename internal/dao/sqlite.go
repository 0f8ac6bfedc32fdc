package dao

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteDAO owns the connection pool. Work is done through sessions, one per
// execution context (worker, request, pipeline run).
type SQLiteDAO struct {
	db   *sql.DB
	path string
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// Open migrates the database at path to the latest schema and opens a pool.
func Open(path string) (*SQLiteDAO, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &DAOError{Op: "open", Err: err}
		}
	}

	if err := Migrate(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, &DAOError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &DAOError{Op: "open", Err: err}
	}

	logger.Debug("Database ready", "path", path)
	return &SQLiteDAO{db: db, path: path}, nil
}

// Migrate applies the embedded migrations to the database at path.
func Migrate(path string) error {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return &DAOError{Op: "migrate", Err: err}
	}

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		db.Close()
		return &DAOError{Op: "migrate", Err: err}
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		db.Close()
		return &DAOError{Op: "migrate", Err: err}
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return &DAOError{Op: "migrate", Err: err}
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &DAOError{Op: "migrate", Err: err}
	}
	return nil
}

// NewSession returns a session that lazily takes its own connection from the
// pool on first use. A session must not be shared between goroutines.
func (d *SQLiteDAO) NewSession() *Session {
	return &Session{db: d.db}
}

// Close closes the pool.
func (d *SQLiteDAO) Close() error {
	return d.db.Close()
}
