package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/hms/internal/platform/db"
	"github.com/ehr/hms/internal/platform/store"
)

// Postgres stores snapshots as JSONB rows. It owns the pool it is given.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS hms_snapshots (
		name TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &Postgres{pool: pool, now: time.Now}, nil
}

func (p *Postgres) Save(ctx context.Context, snaps []store.Snapshot) error {
	now := p.now()
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		payload, err := encode(snap, now)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO hms_snapshots (name, payload, saved_at) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
			snap.Name, string(payload), now)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert snapshots: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Load(ctx context.Context) ([]store.Snapshot, error) {
	rows, err := p.pool.Query(ctx, `SELECT payload::text FROM hms_snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer rows.Close()

	var out []store.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap, err := decode([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	_, err := db.Check(ctx, p.pool)
	return err
}

// Stats exposes the pool statistics for the health endpoint.
func (p *Postgres) Stats(ctx context.Context) (db.PoolStats, error) {
	return db.Check(ctx, p.pool)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
