package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB opens a Postgres pool and checks it answers within ctx.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{Client: db}, nil
}

// Schema creates the participant and attendance tables. Name uniqueness is
// case-insensitive and a participant attends a session at most once.
const Schema = `
CREATE TABLE IF NOT EXISTS participants (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	address     TEXT,
	gender      CHAR(1) CHECK (gender IN ('L', 'P')),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS participants_name_lower_key ON participants (lower(name));

CREATE TABLE IF NOT EXISTS attendance (
	id              UUID PRIMARY KEY,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	event_date      DATE NOT NULL,
	device_id       TEXT,
	participant_id  UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
	CONSTRAINT attendance_participant_event_key UNIQUE (participant_id, event_date)
);

CREATE INDEX IF NOT EXISTS attendance_event_date_idx ON attendance (event_date);
`

// Migrate applies Schema. Every statement is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Client.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Healthy verifies the database answers.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
