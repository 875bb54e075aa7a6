// Package db contains the SQLite queries, connection handling and migrations
// used by the storage package.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // sqlite sql.DB driver initialization
)

//go:embed migrations/*.sql
var migrations embed.FS

// Options tune how a lookup connection is opened.
type Options struct {
	// BusyTimeout is how long SQLite waits on a locked file before failing.
	// Zero fails immediately.
	BusyTimeout time.Duration
}

var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// DSN builds the read-only connection string for the database at dbPath.
// Read-only mode keeps SQLite from creating the file when it is missing.
func DSN(dbPath string, opts Options) string {
	params := url.Values{}
	params.Set("mode", "ro")
	params.Set("_time_format", "sqlite")
	if opts.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	return "file:" + uriPathEscaper.Replace(dbPath) + "?" + params.Encode()
}

// Open establishes a single read-only connection to the database at dbPath.
// The caller owns the returned handle and must close it.
func Open(ctx context.Context, dbPath string, opts Options) (*sql.DB, error) {
	handle, err := sql.Open("sqlite", DSN(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to create DB handler: %w", err)
	}
	handle.SetMaxOpenConns(1)
	if err = handle.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping DB: %w", err), handle.Close())
	}
	return handle, nil
}

// OpenWritable opens dbPath for writing, creating the file and its parent
// directory if needed, and migrates it to the reference schema. It backs the
// administrative commands; lookups always go through [Open].
func OpenWritable(ctx context.Context, logger *slog.Logger, dbPath string) (*sql.DB, error) {
	if dbPath == ":memory:" { //nolint:revive // for documentation
		// noop
	} else if _, err := os.Stat(dbPath); err != nil {
		const userOnlyDirPerms = 0o700
		if err = os.MkdirAll(filepath.Dir(dbPath), userOnlyDirPerms); err != nil {
			return nil, fmt.Errorf("failed to create db parent directory: %w", err)
		}
	}

	if strings.ContainsRune(dbPath, '?') {
		dbPath += "&"
	} else {
		dbPath += "?"
	}
	dbPath += "_time_format=sqlite"

	handle, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create DB handler: %w", err)
	} else if err = handle.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping DB: %w", err), handle.Close())
	}

	logger = logger.With(slog.String("db", dbPath))
	if err = Migrate(ctx, logger, handle); err != nil {
		return nil, errors.Join(err, handle.Close())
	}
	handle.SetMaxOpenConns(1)
	return handle, nil
}

// Migrate applies any pending migrations from the embedded reference schema.
func Migrate(ctx context.Context, logger *slog.Logger, handle *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, handle, fsys)
	if err != nil {
		return fmt.Errorf("failed to set up migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate DB: %w", err)
	}
	for _, res := range results {
		logger.DebugContext(ctx, "applied migration",
			slog.Int64("version", res.Source.Version),
			slog.String("source", res.Source.Path),
			slog.Duration("duration", res.Duration),
		)
	}
	return nil
}
