// Package cache provides the embedded SQLite mirror of one user's records.
//
// The cache is the offline-available side of the dual-store design: every
// synchronized entity kind (transactions, meals, ideas) has one table,
// partitioned by a user_id column, queryable without network access. The
// remote store stays authoritative; the cache is rebuilt wholesale from it
// on every live push (SyncFromRemote).
//
// The database runs embedded with WAL mode for concurrent reads. Schema
// creation and column migrations are idempotent and run on every open, so a
// cache file created by an older single-user build is upgraded in place.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection shared by all entity repositories.
// Open it once per process and hand it to the repository constructors.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates the cache database at the given path.
//
// The parent directory is created if missing. The schema is initialized and
// migrated before Open returns, so repositories can assume the tables exist.
// The caller must Close() the database when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the cache tables and indexes if they don't exist and
// applies additive column migrations. Safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
//
// Tables are created first, column migrations run second, indexes last:
// several indexes cover migrated columns, so they cannot exist until the
// migration has run against a legacy cache file.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	tables := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY NOT NULL,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT,
		category TEXT,
		date TEXT,
		date_ts INTEGER NOT NULL,
		amount REAL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meals (
		id TEXT PRIMARY KEY NOT NULL,
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		notes TEXT,
		calories REAL,
		tag TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ideas (
		id TEXT PRIMARY KEY NOT NULL,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT,
		tag TEXT,
		fixed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	`

	if _, err := db.conn.ExecContext(ctx, tables); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	if err := db.migrate(ctx); err != nil {
		return err
	}

	indexes := `
	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_sort ON transactions(user_id, date_ts, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(user_id, category);
	CREATE INDEX IF NOT EXISTS idx_meals_user ON meals(user_id);
	CREATE INDEX IF NOT EXISTS idx_meals_tag ON meals(user_id, tag);
	CREATE INDEX IF NOT EXISTS idx_ideas_user ON ideas(user_id);
	CREATE INDEX IF NOT EXISTS idx_ideas_sort ON ideas(user_id, fixed, created_at);
	CREATE INDEX IF NOT EXISTS idx_ideas_tag ON ideas(user_id, tag);
	`

	if _, err := db.conn.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create cache indexes: %w", err)
	}

	return nil
}

// migrate applies additive, idempotent column migrations for cache files
// created by schema versions that predate them. Each column is checked for
// existence before the ALTER, so rerunning on every startup is safe.
func (db *DB) migrate(ctx context.Context) error {
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		// meals and ideas predate multi-user support
		{"meals", "user_id", "user_id TEXT NOT NULL DEFAULT ''"},
		{"ideas", "user_id", "user_id TEXT NOT NULL DEFAULT ''"},
		// transactions predate the derived sort key
		{"transactions", "date_ts", "date_ts INTEGER NOT NULL DEFAULT 0"},
	}

	for _, m := range migrations {
		if err := db.ensureColumn(ctx, m.table, m.column, m.ddl); err != nil {
			return err
		}
	}
	return nil
}

// ensureColumn adds a column to a table unless it already exists.
func (db *DB) ensureColumn(ctx context.Context, table, column, ddl string) error {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	exists := false
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to scan table info for %s: %w", table, err)
		}
		if name == column {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating table info for %s: %w", table, err)
	}
	if exists {
		return nil
	}

	if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, ddl)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}
