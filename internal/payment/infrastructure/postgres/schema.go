package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// seq keeps insertion order for GetAll; id and public_id are both indexed.
const schema = `
CREATE TABLE IF NOT EXISTS payments (
	seq               BIGSERIAL,
	id                TEXT PRIMARY KEY,
	public_id         TEXT NOT NULL UNIQUE,
	amount            BIGINT NOT NULL,
	currency          TEXT NOT NULL,
	status            TEXT NOT NULL,
	merchant_order_id TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	version           BIGINT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	payload        JSONB NOT NULL,
	headers        JSONB NOT NULL DEFAULT '{}',
	traceparent    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	relay_id       TEXT,
	lease_until    TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS outbox_status_idx ON outbox (status, id);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
