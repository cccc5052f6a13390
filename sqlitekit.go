// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlitekit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	// MemoryPath is the path sentinel for an in-memory database.
	MemoryPath = ":memory:"

	// DefaultEnvVar names the environment variable that supplies the
	// database path when Config.Path is empty.
	DefaultEnvVar = "SQLITE_DB_PATH"

	// DefaultJournalMode is the journal_mode pragma applied on connect.
	DefaultJournalMode = "WAL"
)

var (
	// ErrClosed is returned when a closed handle is used.
	ErrClosed = errors.New("sqlitekit: database is closed")

	// ErrMemoryInProduction is returned by Connect when an in-memory database
	// is requested while the production environment variable is set.
	ErrMemoryInProduction = errors.New("sqlitekit: in-memory database not allowed in production")

	// ErrNotFound is returned by Connect when FileMustExist is set and the
	// database file does not exist.
	ErrNotFound = errors.New("sqlitekit: database file not found")
)

// Config holds database configuration options.
type Config struct {
	// Path to database file. Use ":memory:" for in-memory databases.
	// When empty, the value of EnvVar is used, and when that is empty too
	// the database is opened in memory.
	Path string

	// EnvVar is the environment variable consulted when Path is empty.
	// Default: "SQLITE_DB_PATH".
	EnvVar string

	// Logger for operational logging. Uses slog.Default() if nil.
	Logger *slog.Logger

	// JournalMode is applied with the journal_mode pragma. Default: "WAL".
	// SQLite keeps in-memory databases in MEMORY mode regardless.
	JournalMode string

	// BusyTimeout sets the busy_timeout pragma. Zero leaves the driver default.
	BusyTimeout time.Duration

	// ReadOnly opens the connection with query_only set.
	ReadOnly bool

	// FileMustExist rejects persistent paths that do not name an existing file.
	FileMustExist bool

	// Verbose logs every executed statement at Info instead of Debug.
	Verbose bool

	// KeepOpenOnExit leaves the handle out of Shutdown and CloseOnSignal.
	KeepOpenOnExit bool

	// ProductionEnvVar is the environment variable checked to determine
	// production mode. If set and the variable equals "production"
	// (case-insensitive), in-memory databases are rejected unless
	// AllowMemoryInProduction is true. Default: "" (no check).
	ProductionEnvVar string

	// AllowMemoryInProduction permits :memory: databases when the production
	// environment variable is set. Default: false.
	AllowMemoryInProduction bool
}

// defaults returns a copy of cfg with default values applied.
func (cfg Config) defaults() Config {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EnvVar == "" {
		cfg.EnvVar = DefaultEnvVar
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = DefaultJournalMode
	}
	return cfg
}

// resolvePath returns Path, else the environment default, else MemoryPath.
func (cfg Config) resolvePath() string {
	if cfg.Path != "" {
		return cfg.Path
	}
	if path := os.Getenv(cfg.EnvVar); path != "" {
		return path
	}
	return MemoryPath
}

// isProduction returns true if the production environment variable is set.
func (cfg Config) isProduction() bool {
	if cfg.ProductionEnvVar == "" {
		return false
	}
	return strings.EqualFold(os.Getenv(cfg.ProductionEnvVar), "production")
}

// isMemoryPath returns true if path indicates an in-memory database.
func isMemoryPath(path string) bool {
	return path == MemoryPath || strings.HasPrefix(path, "file::memory:")
}

// databaseURI returns the SQLite URI for path. The :memory: sentinel becomes
// a private in-memory database and values that are already file: URIs are
// kept as given. Anything else is a file name and is percent-escaped so that
// '?', '#' and '%' stay part of the name.
func databaseURI(path string) string {
	switch {
	case path == MemoryPath:
		return "file::memory:"
	case strings.HasPrefix(path, "file:"):
		return path
	}
	return "file:" + (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath()
}

// localPath returns the file name named by path, stripping the scheme,
// query and fragment from file: URIs.
func localPath(path string) string {
	rest, ok := strings.CutPrefix(path, "file:")
	if !ok {
		return path
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if name, err := url.PathUnescape(rest); err == nil {
		return name
	}
	return rest
}

// DB is an open database handle. Once closed it cannot be reopened.
type DB struct {
	x       *sqlx.DB
	path    string
	logger  *slog.Logger
	verbose bool

	once   sync.Once
	closed atomic.Bool
}

// Connect resolves the database path, opens the database and applies the
// configured pragmas. Unless cfg.KeepOpenOnExit is set, the handle is
// registered for close-on-exit; the application runs the hook by calling
// CloseOnSignal once in main, or Shutdown before it returns.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	cfg = cfg.defaults()
	path := cfg.resolvePath()

	if isMemoryPath(path) {
		if cfg.isProduction() && !cfg.AllowMemoryInProduction {
			return nil, fmt.Errorf("%w (%s=production)", ErrMemoryInProduction, cfg.ProductionEnvVar)
		}
		cfg.Logger.Info("DB mode: in-memory")
	} else {
		if cfg.FileMustExist && !isRegularFile(localPath(path)) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		cfg.Logger.Info("DB mode: persistent", "path", path)
	}

	dsn := buildDSN(path, cfg.pragmas())
	cfg.Logger.Debug("opening database", "dsn", dsn)

	x, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Open: %w", err)
	}

	// One connection keeps a private in-memory database alive between calls
	// and matches SQLite's single-writer model.
	x.SetMaxOpenConns(1)
	x.SetMaxIdleConns(1)

	if err := x.PingContext(ctx); err != nil {
		x.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := &DB{
		x:       x,
		path:    path,
		logger:  cfg.Logger,
		verbose: cfg.Verbose,
	}
	if !cfg.KeepOpenOnExit {
		register(db)
	}
	return db, nil
}

// Disconnect closes db, discarding any error. It is safe to call on a nil or
// already closed handle.
func Disconnect(db *DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		db.logger.Debug("disconnect", "path", db.path, "err", err)
	}
}

// Close closes the handle. Only the first call does any work; later calls
// return nil.
func (db *DB) Close() error {
	var err error
	db.once.Do(func() {
		db.closed.Store(true)
		unregister(db)
		if db.x == nil {
			return
		}
		err = db.x.Close()
	})
	return err
}

// Path returns the resolved database path.
func (db *DB) Path() string {
	return db.path
}

// IsMemory reports whether the database lives in memory.
func (db *DB) IsMemory() bool {
	return isMemoryPath(db.path)
}

// IsClosed reports whether Close has been called.
func (db *DB) IsClosed() bool {
	return db.closed.Load()
}

// DB returns the underlying database handle.
func (db *DB) DB() *sql.DB {
	return db.x.DB
}

// Delete removes a database file and its WAL sidecar files.
// Returns nil if the file does not exist.
func Delete(path string) error {
	if isMemoryPath(path) {
		return fmt.Errorf("cannot delete in-memory database")
	}
	path = localPath(path)

	if !fileExists(path) {
		return nil
	}

	// WAL mode creates sidecar files
	var firstErr error
	for _, suffix := range []string{"", "-shm", "-wal"} {
		name := path + suffix
		if !fileExists(name) {
			continue
		}
		if !isRegularFile(name) {
			err := fmt.Errorf("%s: not a regular file", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return fmt.Errorf("delete %s: %w", path, firstErr)
	}

	if fileExists(path) {
		return fmt.Errorf("%s: still exists after delete", path)
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
