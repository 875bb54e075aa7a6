package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/medstore/internal/config"
	"github.com/stolasapp/medstore/internal/sec"
	"github.com/stolasapp/medstore/internal/storage/db"
)

func TestDB(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(queries *db.Queries) {
		_, err := queries.InsertUser(t.Context(), db.InsertUserParams{
			Name:     "Asha",
			Email:    "a@x.com",
			Password: "p1",
			PinCode:  "560001",
		})
		require.NoError(t, err)
		_, err = queries.InsertProduct(t.Context(), db.InsertProductParams{
			ProductID: 42,
			Name:      "Aspirin",
			Category:  "analgesic",
			Price:     12.5,
			Stock:     30,
		})
		require.NoError(t, err)
		_, err = queries.InsertProduct(t.Context(), db.InsertProductParams{ProductID: 7, Name: "Ibuprofen"})
		require.NoError(t, err)
		_, err = queries.CreateOrder(t.Context(), db.CreateOrderParams{
			UserID:    1,
			ProductID: 42,
			Quantity:  2,
			OrderDate: "2024-05-01",
		})
		require.NoError(t, err)
	})
	store := NewDB(testConfig(path))

	t.Run("AuthenticateUser", func(t *testing.T) {
		t.Parallel()

		row, found, err := store.AuthenticateUser(t.Context(), "a@x.com", "p1")
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, []string{
			"user_id", "name", "email", "password", "phone_number",
			"address", "pin_code", "date_of_account_creation", "is_approved",
		}, row.Columns())
		assertColumn(t, row, "user_id", int64(1))
		assertColumn(t, row, "name", "Asha")
		assertColumn(t, row, "email", "a@x.com")
		assertColumn(t, row, "password", "p1")
		assertColumn(t, row, "pin_code", "560001")
		assertColumn(t, row, "is_approved", int64(0))
		created, ok := row.Get("date_of_account_creation")
		require.True(t, ok)
		assert.NotEmpty(t, created)
	})

	t.Run("AuthenticateUser not found", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			email    string
			password string
		}{
			{name: "wrong password", email: "a@x.com", password: "wrong"},
			{name: "unknown email", email: "b@x.com", password: "p1"},
			{name: "empty inputs", email: "", password: ""},
			{name: "case differs", email: "A@X.COM", password: "p1"},
			{name: "untrimmed password", email: "a@x.com", password: "p1 "},
			{name: "injection is bound", email: "' OR '1'='1", password: "' OR '1'='1"},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				t.Parallel()

				row, found, err := store.AuthenticateUser(t.Context(), test.email, test.password)
				require.NoError(t, err)
				assert.False(t, found)
				assert.Zero(t, row.Len())
			})
		}
	})

	t.Run("AuthenticateOrder", func(t *testing.T) {
		t.Parallel()

		for _, id := range []any{42, int64(42), "42"} {
			row, found, err := store.AuthenticateOrder(t.Context(), id)
			require.NoError(t, err)
			require.True(t, found, "product id %#v", id)
			assertColumn(t, row, "product_id", int64(42))
			assertColumn(t, row, "name", "Aspirin")
			assertColumn(t, row, "price", 12.5)
			assertColumn(t, row, "expiry_date", nil)
		}

		row, found, err := store.AuthenticateOrder(t.Context(), 999)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Zero(t, row.Len())
	})

	t.Run("GetUser", func(t *testing.T) {
		t.Parallel()

		row, found, err := store.GetUser(t.Context(), "1")
		require.NoError(t, err)
		require.True(t, found)
		assertColumn(t, row, "email", "a@x.com")

		row, found, err = store.GetUser(t.Context(), 2)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Zero(t, row.Len())
	})

	t.Run("ListProducts", func(t *testing.T) {
		t.Parallel()

		rows, err := store.ListProducts(t.Context())
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assertColumn(t, rows[0], "product_id", int64(7))
		assertColumn(t, rows[1], "product_id", int64(42))
	})

	t.Run("orders", func(t *testing.T) {
		t.Parallel()

		row, found, err := store.GetOrder(t.Context(), 1)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{
			"order_id", "user_id", "product_id", "quantity",
			"total_price", "order_date", "is_approved",
		}, row.Columns())
		assertColumn(t, row, "total_price", 25.0)
		assertColumn(t, row, "order_date", "2024-05-01")
		assertColumn(t, row, "is_approved", int64(0))

		_, found, err = store.GetOrder(t.Context(), 2)
		require.NoError(t, err)
		assert.False(t, found)

		rows, err := store.ListOrders(t.Context(), 0)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		rows, err = store.ListOrders(t.Context(), 1)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		rows, err = store.ListOrders(t.Context(), 2)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestDB_DuplicateEmailsReturnFirstRow(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(queries *db.Queries) {
		for _, name := range []string{"first", "second"} {
			_, err := queries.InsertUser(t.Context(), db.InsertUserParams{
				Name:     name,
				Email:    "dup@x.com",
				Password: "same",
			})
			require.NoError(t, err)
		}
	})

	row, found, err := NewDB(testConfig(path)).AuthenticateUser(t.Context(), "dup@x.com", "same")
	require.NoError(t, err)
	require.True(t, found)
	assertColumn(t, row, "name", "first")
}

func TestDB_StoreUnavailable(t *testing.T) {
	t.Parallel()

	notADB := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(notADB, []byte(strings.Repeat("not a database ", 128)), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing.db")},
		{name: "not a database", path: notADB},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			store := NewDB(testConfig(test.path))

			_, found, err := store.AuthenticateUser(t.Context(), "a@x.com", "p1")
			require.ErrorIs(t, err, ErrStoreUnavailable)
			assert.NotErrorIs(t, err, ErrQuery)
			assert.False(t, found)

			_, found, err = store.AuthenticateOrder(t.Context(), 42)
			require.ErrorIs(t, err, ErrStoreUnavailable)
			assert.False(t, found)

			rows, err := store.ListProducts(t.Context())
			require.ErrorIs(t, err, ErrStoreUnavailable)
			assert.Nil(t, rows)
		})
	}

	t.Run("missing file is not created", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "missing.db")
		_, _, err := NewDB(testConfig(path)).AuthenticateOrder(t.Context(), 42)
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.NoFileExists(t, path)
	})
}

func TestDB_LockedStore(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(queries *db.Queries) {
		_, err := queries.InsertUser(t.Context(), db.InsertUserParams{Email: "a@x.com", Password: "p1"})
		require.NoError(t, err)
	})
	holdExclusiveLock(t, path)

	store := NewDB(testConfig(path))

	_, found, err := store.AuthenticateUser(t.Context(), "a@x.com", "p1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, found)

	_, found, err = store.AuthenticateOrder(t.Context(), 42)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, found)
}

func TestDB_BusyTimeoutWaitsForLock(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(queries *db.Queries) {
		_, err := queries.InsertProduct(t.Context(), db.InsertProductParams{ProductID: 42, Name: "Aspirin"})
		require.NoError(t, err)
	})
	conn := holdExclusiveLock(t, path)

	cfg := testConfig(path)
	cfg.BusyTimeout = 10 * time.Second

	const holdFor = 200 * time.Millisecond
	start := time.Now()
	released := make(chan error, 1)
	time.AfterFunc(holdFor, func() {
		_, err := conn.ExecContext(context.Background(), "ROLLBACK")
		released <- err
	})

	row, found, err := NewDB(cfg).AuthenticateOrder(t.Context(), 42)
	require.NoError(t, err)
	require.True(t, found)
	assertColumn(t, row, "name", "Aspirin")
	assert.GreaterOrEqual(t, time.Since(start), holdFor)
	require.NoError(t, <-released)
}

func TestDB_QueryTimeout(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(*db.Queries) {})
	cfg := testConfig(path)
	cfg.QueryTimeout = time.Nanosecond
	store, handles := trackHandles(t, NewDB(cfg))

	_, found, err := store.AuthenticateUser(t.Context(), "a@x.com", "p1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrQuery)
	assert.False(t, found)

	_, err = store.ListOrders(t.Context(), 0)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	for _, opened := range *handles {
		assert.ErrorContains(t, opened.PingContext(t.Context()), "database is closed")
	}
}

func TestDB_QueryError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "other.db")
	handle, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = handle.ExecContext(t.Context(), "CREATE TABLE unrelated (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, handle.Close())

	store, handles := trackHandles(t, NewDB(testConfig(path)))

	_, found, err := store.AuthenticateUser(t.Context(), "a@x.com", "p1")
	require.ErrorIs(t, err, ErrQuery)
	require.ErrorContains(t, err, "no such table")
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, found)

	_, found, err = store.AuthenticateOrder(t.Context(), 42)
	require.ErrorIs(t, err, ErrQuery)
	assert.False(t, found)

	require.Len(t, *handles, 2)
	for _, opened := range *handles {
		assert.ErrorContains(t, opened.PingContext(t.Context()), "database is closed")
	}
}

func TestDB_ConnectionPerCall(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(queries *db.Queries) {
		_, err := queries.InsertProduct(t.Context(), db.InsertProductParams{ProductID: 7, Name: "Ibuprofen"})
		require.NoError(t, err)
	})
	store, handles := trackHandles(t, NewDB(testConfig(path)))

	_, found, err := store.AuthenticateOrder(t.Context(), 7)
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = store.AuthenticateOrder(t.Context(), 8)
	require.NoError(t, err)
	require.False(t, found)

	require.Len(t, *handles, 2)
	assert.NotSame(t, (*handles)[0], (*handles)[1])
	for _, opened := range *handles {
		assert.ErrorContains(t, opened.PingContext(t.Context()), "database is closed")
	}
}

func TestDB_CanceledContext(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(*db.Queries) {})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, found, err := NewDB(testConfig(path)).AuthenticateUser(ctx, "a@x.com", "p1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, found)
}

func TestDB_BcryptScheme(t *testing.T) {
	t.Parallel()

	path := newShop(t, func(queries *db.Queries) {
		hash, err := sec.SchemeBcrypt.Prepare("p1")
		require.NoError(t, err)
		_, err = queries.InsertUser(t.Context(), db.InsertUserParams{Name: "plain", Email: "a@x.com", Password: "p1"})
		require.NoError(t, err)
		_, err = queries.InsertUser(t.Context(), db.InsertUserParams{Name: "hashed", Email: "a@x.com", Password: hash})
		require.NoError(t, err)
	})
	cfg := testConfig(path)
	cfg.PasswordScheme = sec.SchemeBcrypt
	store := NewDB(cfg)

	row, found, err := store.AuthenticateUser(t.Context(), "a@x.com", "p1")
	require.NoError(t, err)
	require.True(t, found)
	assertColumn(t, row, "name", "hashed")

	_, found, err = store.AuthenticateUser(t.Context(), "a@x.com", "wrong")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.AuthenticateUser(t.Context(), "b@x.com", "p1")
	require.NoError(t, err)
	assert.False(t, found)
}

func testConfig(path string) *config.Config {
	cfg := config.Default()
	cfg.DBFilepath = path
	return cfg
}

// newShop creates a migrated shop database and lets fill insert rows into it.
func newShop(t *testing.T, fill func(*db.Queries)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "my_medicalshop.db")
	handle, err := db.OpenWritable(t.Context(), slog.Default(), path)
	require.NoError(t, err)
	fill(db.New(handle))
	require.NoError(t, handle.Close())
	return path
}

// holdExclusiveLock takes an exclusive lock on the database at path until the
// test ends or the returned connection rolls back.
func holdExclusiveLock(t *testing.T, path string) *sql.Conn {
	t.Helper()

	handle, err := db.OpenWritable(t.Context(), slog.Default(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	conn, err := handle.Conn(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = conn.ExecContext(t.Context(), "BEGIN EXCLUSIVE")
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = conn.ExecContext(context.Background(), "ROLLBACK") })
	return conn
}

// trackHandles records every handle store opens so tests can check they were
// released.
func trackHandles(t *testing.T, store *DB) (*DB, *[]*sql.DB) {
	t.Helper()

	var handles []*sql.DB
	open := store.open
	store.open = func(ctx context.Context, path string, opts db.Options) (*sql.DB, error) {
		handle, err := open(ctx, path, opts)
		if handle != nil {
			handles = append(handles, handle)
		}
		return handle, err
	}
	return store, &handles
}

func assertColumn(t *testing.T, row db.Row, column string, want any) {
	t.Helper()

	got, ok := row.Get(column)
	require.True(t, ok, "missing column %s", column)
	assert.Equal(t, want, got, column)
}
