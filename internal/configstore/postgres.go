package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is an alternate Store backend for multi-instance
// deployments sharing one database server, selected by configuration
// the same way the teacher's internal/store package could target
// either modernc.org/sqlite or, via jackc/pgx, Postgres for its release
// metadata. Schema has the same columns and primary key as SQLiteStore's
// documents table (payload is JSONB and updated_at TIMESTAMPTZ here,
// TEXT and TIMESTAMP there), so the two backends are interchangeable
// behind the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the documents table
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("configstore: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("configstore: ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("configstore: migrate postgres: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			instance_id TEXT NOT NULL,
			kind        TEXT NOT NULL,
			payload     JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (instance_id, kind)
		)`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, instanceID, kind string, out any) error {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM documents WHERE instance_id = $1 AND kind = $2`,
		instanceID, kind,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("configstore: get %s/%s: %w", instanceID, kind, err)
	}
	return json.Unmarshal(payload, out)
}

func (s *PostgresStore) Save(ctx context.Context, instanceID, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("configstore: marshal %s/%s: %w", instanceID, kind, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (instance_id, kind, payload, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (instance_id, kind) DO UPDATE SET
		   payload = excluded.payload, updated_at = excluded.updated_at`,
		instanceID, kind, payload,
	)
	if err != nil {
		return fmt.Errorf("configstore: save %s/%s: %w", instanceID, kind, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
