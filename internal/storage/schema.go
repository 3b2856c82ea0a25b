package storage

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_api_keys (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL,
	provider   TEXT NOT NULL,
	api_key    TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, provider)
);

CREATE TABLE IF NOT EXISTS dispatch_records (
	id            UUID PRIMARY KEY,
	user_id       UUID,
	provider      TEXT NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	failures      JSONB,
	message_chars INTEGER NOT NULL DEFAULT 0,
	latency_ms    BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dispatch_records_user_created
	ON dispatch_records (user_id, created_at DESC);
`

// Migrate creates the tables used by the repositories. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
