package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"users", "admins", "products", "warranties", "service_claims", "notifications"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyPragma(s.db, tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchema_WarrantiesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "warranties")
	expected := []string{
		"warranty_id", "user_id", "product_id", "product_name", "brand",
		"purchase_date", "warranty_period_months", "expiry_date", "invoice_path", "created_at",
		"name_key", "brand_key",
	}
	for _, col := range expected {
		assert.Contains(t, columns, col)
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	assert.Contains(t, getTableIndexes(t, s.db, "warranties"), WarrantyIndexName)
	assert.Contains(t, getTableIndexes(t, s.db, "warranties"), "idx_warranties_expiry")
	assert.Contains(t, getTableIndexes(t, s.db, "notifications"), "idx_notifications_user")
}

func TestMigration_DeferredByLegacyDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	s, err := Open(path)
	require.NoError(t, err)

	// Reproduce a database written before the uniqueness index existed.
	dropWarrantyIndex(t, s)
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	uid := createTestUser(t, s, "Ann", "ann@example.com")
	w := testWarranty(uid, "Fridge", "Acme", testCreatedAt)
	insertTestWarranty(t, s, w)
	insertTestWarranty(t, s, w)
	require.NoError(t, s.Close())

	// Reopen: the index cannot be built, but Open still succeeds.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version, "index migration must be retried on next open")
	assert.NotContains(t, getTableIndexes(t, s.db, "warranties"), WarrantyIndexName)

	err = s.EnsureWarrantyIndex(context.Background())
	assert.ErrorIs(t, err, ErrConflict)
}

// legacySchemaSQL is a warranties table from before the folded key columns,
// still carrying the lower() uniqueness index.
const legacySchemaSQL = `
CREATE TABLE users (
    user_id       INTEGER PRIMARY KEY AUTOINCREMENT,
    full_name     TEXT NOT NULL,
    email         TEXT NOT NULL COLLATE NOCASE UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL
);
CREATE TABLE warranties (
    warranty_id            INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id                INTEGER NOT NULL REFERENCES users(user_id),
    product_id             INTEGER,
    product_name           TEXT NOT NULL,
    brand                  TEXT,
    purchase_date          TEXT NOT NULL,
    warranty_period_months INTEGER NOT NULL,
    expiry_date            TEXT NOT NULL,
    invoice_path           TEXT,
    created_at             TEXT NOT NULL
);
CREATE UNIQUE INDEX ux_warranties_user_prod_brand
    ON warranties(user_id, lower(product_name), lower(coalesce(brand, '')));
INSERT INTO users (full_name, email, password_hash, created_at)
    VALUES ('Ann', 'ann@example.com', 'hash', '2024-03-04T09:00:00Z');
INSERT INTO warranties (user_id, product_name, brand, purchase_date, warranty_period_months, expiry_date, created_at)
    VALUES (1, 'Écran', 'Société', '2024-01-01', 12, '2025-01-01', '2024-03-04T09:00:00Z'),
           (1, 'ÉCRAN', 'SOCIÉTÉ', '2024-01-01', 12, '2025-01-01', '2024-03-04T09:00:00Z'),
           (1, 'Fridge', NULL, '2024-01-01', 12, '2025-01-01', '2024-03-04T09:00:00Z');
PRAGMA user_version = 1;
`

func TestMigration_BackfillsFoldedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(legacySchemaSQL)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	assert.Contains(t, getTableColumns(t, s.db, "warranties"), "name_key")
	indexes := getTableIndexes(t, s.db, "warranties")
	assert.NotContains(t, indexes, legacyWarrantyIndexName)
	assert.NotContains(t, indexes, WarrantyIndexName, "the accented pair collides once folded")

	var nameKey, brandKey string
	require.NoError(t, s.db.QueryRow(`SELECT name_key, brand_key FROM warranties WHERE warranty_id = 2`).Scan(&nameKey, &brandKey))
	assert.Equal(t, "écran", nameKey)
	assert.Equal(t, "société", brandKey)

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	removed, err := s.DedupeWarranties(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	require.NoError(t, s.EnsureWarrantyIndex(ctx))
}

func TestNoIdentifierInterpolation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	uid := createTestUser(t, s, "Mallory", "m@example.com")

	hostile := "x'); DROP TABLE warranties; --"
	id := insertTestWarranty(t, s, testWarranty(uid, hostile, hostile, testCreatedAt))

	got, err := s.GetWarranty(ctx, uid, id)
	require.NoError(t, err)
	assert.Equal(t, hostile, got.ProductName)

	n, err := s.CountWarranties(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// verifyPragma checks that a pragma is set to the expected value.
func verifyPragma(db *sql.DB, name, expected string) error {
	var value string
	if err := db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
