package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stolasapp/medstore/internal/config"
	"github.com/stolasapp/medstore/internal/sec"
	"github.com/stolasapp/medstore/internal/storage/db"
)

// DB is a [Store] backed by a SQLite database file. It holds no connection:
// every lookup opens its own and closes it before returning.
type DB struct {
	path    string
	opts    db.Options
	timeout time.Duration
	scheme  sec.Scheme
	open    func(ctx context.Context, path string, opts db.Options) (*sql.DB, error)
}

// NewDB initializes a DB with the given config.
func NewDB(cfg *config.Config) *DB {
	return &DB{
		path:    cfg.DBFilepath,
		opts:    db.Options{BusyTimeout: cfg.BusyTimeout},
		timeout: cfg.QueryTimeout,
		scheme:  cfg.PasswordScheme,
		open:    db.Open,
	}
}

// AuthenticateUser satisfies the [Users] interface.
func (d *DB) AuthenticateUser(ctx context.Context, email, password string) (db.Row, bool, error) {
	return d.lookup(ctx, func(ctx context.Context, queries *db.Queries) (db.Row, error) {
		if d.scheme == sec.SchemeBcrypt {
			return queries.FindUserByEmail(ctx, email, func(row db.Row) bool {
				stored, _ := row.Get("password")
				return sec.MatchesStored(password, stored)
			})
		}
		return queries.AuthenticateUser(ctx, email, password)
	})
}

// AuthenticateOrder satisfies the [Products] interface.
func (d *DB) AuthenticateOrder(ctx context.Context, productID any) (db.Row, bool, error) {
	return d.lookup(ctx, func(ctx context.Context, queries *db.Queries) (db.Row, error) {
		return queries.AuthenticateOrder(ctx, productID)
	})
}

// GetUser satisfies the [Users] interface.
func (d *DB) GetUser(ctx context.Context, userID any) (db.Row, bool, error) {
	return d.lookup(ctx, func(ctx context.Context, queries *db.Queries) (db.Row, error) {
		return queries.GetUser(ctx, userID)
	})
}

// ListProducts satisfies the [Products] interface.
func (d *DB) ListProducts(ctx context.Context) ([]db.Row, error) {
	return d.list(ctx, func(ctx context.Context, queries *db.Queries) ([]db.Row, error) {
		return queries.ListProducts(ctx)
	})
}

// GetOrder satisfies the [Orders] interface.
func (d *DB) GetOrder(ctx context.Context, orderID any) (db.Row, bool, error) {
	return d.lookup(ctx, func(ctx context.Context, queries *db.Queries) (db.Row, error) {
		return queries.GetOrder(ctx, orderID)
	})
}

// ListOrders satisfies the [Orders] interface.
func (d *DB) ListOrders(ctx context.Context, userID int64) ([]db.Row, error) {
	return d.list(ctx, func(ctx context.Context, queries *db.Queries) ([]db.Row, error) {
		return queries.ListOrders(ctx, userID)
	})
}

func (d *DB) lookup(
	ctx context.Context,
	query func(context.Context, *db.Queries) (db.Row, error),
) (row db.Row, found bool, err error) {
	found, err = d.run(ctx, func(ctx context.Context, queries *db.Queries) (err error) {
		row, err = query(ctx, queries)
		return err
	})
	if !found || err != nil {
		return db.Row{}, false, err
	}
	return row, true, nil
}

func (d *DB) list(
	ctx context.Context,
	query func(context.Context, *db.Queries) ([]db.Row, error),
) (rows []db.Row, err error) {
	_, err = d.run(ctx, func(ctx context.Context, queries *db.Queries) (err error) {
		rows, err = query(ctx, queries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// run opens a connection for a single call to fn and closes it before
// returning. found is false when fn reports [sql.ErrNoRows].
func (d *DB) run(
	ctx context.Context,
	fn func(context.Context, *db.Queries) error,
) (found bool, err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	handle, err := d.open(ctx, d.path, d.opts)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			found = false
			err = errors.Join(err, fmt.Errorf("%w: %w", ErrStoreUnavailable, closeErr))
		}
	}()

	switch err = fn(ctx, db.New(handle)); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, classify(err)
	default:
		return true, nil
	}
}

// classify wraps a query error with its kind. Failures to reach or read the
// file are [ErrStoreUnavailable]; anything else is [ErrQuery].
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		const primaryCodeMask = 0xff
		switch sqliteErr.Code() & primaryCodeMask {
		case sqlite3.SQLITE_BUSY,
			sqlite3.SQLITE_LOCKED,
			sqlite3.SQLITE_CANTOPEN,
			sqlite3.SQLITE_NOTADB,
			sqlite3.SQLITE_PERM,
			sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_CORRUPT,
			sqlite3.SQLITE_AUTH:
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrQuery, err)
}

var _ Store = (*DB)(nil)
