package configstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the sqlite-backed Store, grounded on the teacher's
// internal/store.PersistentStore: one WAL-mode database, one documents
// table keyed by (instance_id, kind), migrated with golang-migrate on
// open the same way the teacher migrates its releases/queue_items
// schema.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the sqlite database at
// dbPath and runs pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("configstore: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("configstore: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("configstore: connect sqlite: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("configstore: migrate: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Get loads the document for (instanceID, kind) into out, which must be
// a pointer. Returns ErrNotFound if none exists.
func (s *SQLiteStore) Get(ctx context.Context, instanceID, kind string, out any) error {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE instance_id = ? AND kind = ?`,
		instanceID, kind,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("configstore: get %s/%s: %w", instanceID, kind, err)
	}
	return json.Unmarshal([]byte(payload), out)
}

// Save upserts the document for (instanceID, kind). The INSERT ... ON
// CONFLICT DO UPDATE is itself the atomic unit — sqlite applies it within a single
// implicit transaction, so a reader never sees a half-written payload.
func (s *SQLiteStore) Save(ctx context.Context, instanceID, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("configstore: marshal %s/%s: %w", instanceID, kind, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (instance_id, kind, payload, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(instance_id, kind) DO UPDATE SET
		   payload = excluded.payload, updated_at = excluded.updated_at`,
		instanceID, kind, string(payload),
	)
	if err != nil {
		return fmt.Errorf("configstore: save %s/%s: %w", instanceID, kind, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
