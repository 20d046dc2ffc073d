package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"xroute/pkg/types"
)

const createTransactionsTable = `
	CREATE TABLE IF NOT EXISTS tracked_transactions (
		id           TEXT PRIMARY KEY,
		adapter      TEXT NOT NULL,
		src_tx_hash  TEXT NOT NULL,
		status       TEXT NOT NULL,
		user_address TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		payload      JSONB NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresStore keeps tracked transactions in Postgres
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and ensures the table exists
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTransactionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveTransaction(ctx context.Context, tx types.TrackedTransaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("cannot marshal transaction to JSON: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tracked_transactions (
			id, adapter, src_tx_hash, status, user_address, started_at, completed_at, payload, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id)
		DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			payload = EXCLUDED.payload,
			updated_at = now()
	`,
		tx.ID,
		string(tx.Provider),
		tx.SrcTxHash,
		string(tx.Status),
		tx.UserAddress,
		tx.StartedAt,
		tx.CompletedAt,
		payload,
	)
	return err
}

func (s *PostgresStore) LoadTransactions(ctx context.Context) ([]types.TrackedTransaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM tracked_transactions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.TrackedTransaction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var tx types.TrackedTransaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			return nil, fmt.Errorf("cannot unmarshal transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
