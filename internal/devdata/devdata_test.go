package devdata

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/medstore/internal/config"
	"github.com/stolasapp/medstore/internal/sec"
	"github.com/stolasapp/medstore/internal/storage"
	"github.com/stolasapp/medstore/internal/storage/db"
)

func TestSeed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(7), Seed(7))
	assert.NotZero(t, Seed(0))
}

func TestGenerator_Deterministic(t *testing.T) {
	t.Parallel()

	first, second := New(99, sec.SchemePlaintext), New(99, sec.SchemePlaintext)
	for range 5 {
		userA, passA := first.user()
		userB, passB := second.user()
		assert.Equal(t, userA, userB)
		assert.Equal(t, passA, passB)
		assert.Equal(t, first.product(), second.product())
	}
}

func TestGenerator_FillWithoutProducts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shop.db")
	handle, err := db.OpenWritable(t.Context(), slog.Default(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	queries := db.New(handle)

	creds, err := New(5, sec.SchemePlaintext).Fill(t.Context(), queries, Counts{Users: 2, Orders: 3})
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	orders, err := queries.ListOrders(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestGenerator_Fill(t *testing.T) {
	t.Parallel()

	for _, scheme := range []sec.Scheme{sec.SchemePlaintext, sec.SchemeBcrypt} {
		t.Run(string(scheme), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "shop.db")
			handle, err := db.OpenWritable(t.Context(), slog.Default(), path)
			require.NoError(t, err)

			creds, err := New(1234, scheme).Fill(t.Context(), db.New(handle), Counts{Users: 3, Products: 5, Orders: 4})
			require.NoError(t, err)
			require.NoError(t, handle.Close())
			require.Len(t, creds, 3)

			cfg := config.Default()
			cfg.DBFilepath = path
			cfg.PasswordScheme = scheme
			store := storage.NewDB(cfg)

			for _, cred := range creds {
				row, found, err := store.AuthenticateUser(t.Context(), cred.Email, cred.Password)
				require.NoError(t, err)
				require.True(t, found, cred.Email)
				email, _ := row.Get("email")
				assert.Equal(t, cred.Email, email)
			}

			for id := range int64(5) {
				_, found, err := store.AuthenticateOrder(t.Context(), id+1)
				require.NoError(t, err)
				assert.True(t, found, "product %d", id+1)
			}

			orders, err := store.ListOrders(t.Context(), 0)
			require.NoError(t, err)
			assert.Len(t, orders, 4)
		})
	}
}
