package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Base schema (tables, notification uniqueness)
// 1 - UNIQUE index on warranties(user_id, lower(product_name), lower(brand)), retired by 2
// 2 - warranties.name_key and brand_key, backfilled with Fold
// 3 - UNIQUE index on warranties(user_id, name_key, brand_key)
const currentSchemaVersion = 3

// WarrantyIndexName is the per-user (product, brand) uniqueness index.
const WarrantyIndexName = "ux_warranties_user_keys"

// legacyWarrantyIndexName folded with lower(), which leaves non-ASCII case alone.
const legacyWarrantyIndexName = "ux_warranties_user_prod_brand"

const createWarrantyIndexSQL = `
	CREATE UNIQUE INDEX IF NOT EXISTS ` + WarrantyIndexName + `
	ON warranties(user_id, name_key, brand_key)
`

// Store is the persistence gateway for the warranty tracker. The CLI and
// the reminder scheduler share one Store, and its single connection
// serializes their writes.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path (":memory:" for a
// throwaway one), applies the pragmas, the embedded schema and any pending
// migrations. Opening an existing database again is a no-op beyond
// re-attempting a deferred warranty index.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: a second would see a different :memory: database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the pool for scenario assertions and legacy-data fixtures.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
		if err := setSchemaVersion(db, 2); err != nil {
			return err
		}
	}

	if version < 3 {
		if err := migrateToV3(db); err != nil {
			if !isUniqueViolation(err) {
				return err
			}
			// Legacy duplicates block the index. Leave user_version at 2 so the
			// next Open retries; deduplication also re-creates the index.
			slog.Warn("warranty uniqueness index deferred: duplicate rows present", "error", err)
			return nil
		}
	}

	return setSchemaVersion(db, currentSchemaVersion)
}

func setSchemaVersion(db *sql.DB, version int) error {
	// PRAGMA does not accept bound parameters; the value is an int.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 adds the folded key columns to a warranties table created
// without them, fills them for every row and drops the lower() index.
func migrateToV2(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	defer tx.Rollback()

	columns, err := tableColumns(tx, "warranties")
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	for _, col := range []string{"name_key", "brand_key"} {
		if columns[col] {
			continue
		}
		if _, err := tx.Exec("ALTER TABLE warranties ADD COLUMN " + col + " TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("migrate to v2: add %s: %w", col, err)
		}
	}

	if _, err := tx.Exec("DROP INDEX IF EXISTS " + legacyWarrantyIndexName); err != nil {
		return fmt.Errorf("migrate to v2: drop legacy index: %w", err)
	}
	if err := backfillWarrantyKeys(tx); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return tx.Commit()
}

// backfillWarrantyKeys recomputes name_key and brand_key for every row.
// The rows are read in full first: the pool has a single connection.
func backfillWarrantyKeys(tx *sql.Tx) error {
	type keyRow struct {
		id          int64
		name, brand string
	}

	rows, err := tx.Query(`SELECT warranty_id, product_name, coalesce(brand, '') FROM warranties`)
	if err != nil {
		return fmt.Errorf("read warranties: %w", err)
	}
	var pending []keyRow
	for rows.Next() {
		var r keyRow
		if err := rows.Scan(&r.id, &r.name, &r.brand); err != nil {
			rows.Close()
			return fmt.Errorf("scan warranty: %w", err)
		}
		pending = append(pending, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range pending {
		if _, err := tx.Exec(`UPDATE warranties SET name_key = ?, brand_key = ? WHERE warranty_id = ?`,
			Fold(r.name), Fold(r.brand), r.id); err != nil {
			return fmt.Errorf("backfill warranty %d: %w", r.id, err)
		}
	}
	return nil
}

// tableColumns returns the set of column names of table.
func tableColumns(tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// migrateToV3 adds the per-user (product, brand) uniqueness index.
func migrateToV3(db *sql.DB) error {
	if _, err := db.Exec(createWarrantyIndexSQL); err != nil {
		return fmt.Errorf("migrate to v3: %w", err)
	}
	return nil
}

// EnsureWarrantyIndex creates the warranty uniqueness index if it is missing.
// Returns ErrConflict if duplicate rows still prevent it.
func (s *Store) EnsureWarrantyIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createWarrantyIndexSQL); err != nil {
		return classify("ensure warranty index", err)
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}
