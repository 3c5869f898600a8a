package postgres

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/store"
	"github.com/dvloznov/finance-reconciler/internal/store/storetest"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init.sql", true, 1, "init"},
		{"0042_add_invoice_index.sql", true, 42, "add_invoice_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseMigrationFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("SELECT 2;")},
		"0001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("ignored")},
	}

	migrations, err := ReadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Len(t, migrations[0].Checksum, 64)
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)

	again, err := ReadMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, again[0].Checksum)
}

func TestReadMigrationsDuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := ReadMigrations(fsys)
	assert.ErrorContains(t, err, "duplicate migration version 0001")
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := ReadMigrations(mustSub(t))
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "init", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS bank_transactions")
}

func mustSub(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	require.NoError(t, err)
	return sub
}

// TestRepository runs the shared suite against a live database named by
// TEST_DATABASE_URL. Every subtest starts from empty tables.
func TestRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = Migrate(ctx, pool, "test", zerolog.Nop())
	require.NoError(t, err)

	repo := &Repository{pool: pool}
	storetest.Run(t, func(t *testing.T) store.Repository {
		_, err := pool.Exec(ctx, `
			TRUNCATE bank_transactions, bank_statements, invoice_items, invoices, clients, documents
			RESTART IDENTITY CASCADE
		`)
		require.NoError(t, err)
		return repo
	})
}
