package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
)

// Record is a single persisted event.
type Record struct {
	Name       string
	Data       telemetry.Data
	Error      bool
	Timestamp  time.Time
	InstanceID string
	SessionID  string
}

// EventStore persists insights records.
type EventStore interface {
	Insert(ctx context.Context, records []Record) error
	Close()
}

const createTableStmt = `CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	data JSONB NOT NULL DEFAULT '{}',
	is_error BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	instance_id TEXT NOT NULL,
	session_id TEXT NOT NULL
)`

const insertStmt = `INSERT INTO %s (name, data, is_error, created_at, instance_id, session_id) VALUES ($1, $2::jsonb, $3, $4, $5, $6)`

// postgresStore writes records with batched inserts.
type postgresStore struct {
	pool   *pgxpool.Pool
	insert string
}

// openPostgresStore connects to the database and makes sure the table exists.
func openPostgresStore(ctx context.Context, connString, table string) (EventStore, error) {
	pool, err := pgxpool.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("openPostgresStore(): unable to connect: %w", err)
	}
	ident := pgx.Identifier{table}.Sanitize()
	if _, err := pool.Exec(ctx, fmt.Sprintf(createTableStmt, ident)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("openPostgresStore(): unable to create table %s: %w", table, err)
	}
	return &postgresStore{
		pool:   pool,
		insert: fmt.Sprintf(insertStmt, ident),
	}, nil
}

// encodeData renders the payload as a JSON object.
func encodeData(data telemetry.Data) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *postgresStore) Insert(ctx context.Context, records []Record) error {
	batch := &pgx.Batch{}
	for _, r := range records {
		data, err := encodeData(r.Data)
		if err != nil {
			return fmt.Errorf("Insert(): unable to encode %s: %w", r.Name, err)
		}
		batch.Queue(s.insert, r.Name, data, r.Error, r.Timestamp, r.InstanceID, r.SessionID)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("Insert(): %w", err)
		}
	}
	return nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}
