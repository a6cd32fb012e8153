// Package history persists completed private swaps to ClickHouse for
// analytics and the insights agent.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/circuitx-labs/privacy-swap/internal/swap"
)

type Store struct {
	conn driver.Conn
}

type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

func NewStore(opts Options) (*Store, error) {
	if opts.Database == "" {
		opts.Database = "circuitx"
	}
	if opts.Username == "" {
		opts.Username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Store{conn: conn}, nil
}

// EnsureSchema creates the private_swaps table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS private_swaps (
			signature String,
			wallet String,
			path String,
			token_in String,
			token_out String,
			amount_in UInt64,
			amount_out UInt64,
			volume_usd Float64,
			executed_at DateTime
		) ENGINE = MergeTree()
		ORDER BY (executed_at, signature)
	`
	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create private_swaps table: %w", err)
	}
	return nil
}

func (s *Store) RecordSwap(ctx context.Context, rec swap.Record) error {
	query := `
		INSERT INTO private_swaps (
			signature, wallet, path, token_in, token_out,
			amount_in, amount_out, volume_usd, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		rec.Signature,
		rec.Wallet,
		rec.Path,
		rec.InputToken,
		rec.OutputToken,
		rec.InputBase,
		rec.OutputBase,
		rec.VolumeUsd,
		rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert swap record: %w", err)
	}
	return nil
}

// RecentSwaps returns the latest swaps for one wallet, newest first.
// Wallet may be empty to fetch across all wallets.
func (s *Store) RecentSwaps(ctx context.Context, wallet string, limit int) ([]swap.Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT signature, wallet, path, token_in, token_out,
		       amount_in, amount_out, volume_usd, executed_at
		FROM private_swaps
	`
	args := []any{}
	if wallet != "" {
		query += " WHERE wallet = ?"
		args = append(args, wallet)
	}
	query += " ORDER BY executed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query swaps: %w", err)
	}
	defer rows.Close()

	var out []swap.Record
	for rows.Next() {
		var rec swap.Record
		var executedAt time.Time
		if err := rows.Scan(
			&rec.Signature,
			&rec.Wallet,
			&rec.Path,
			&rec.InputToken,
			&rec.OutputToken,
			&rec.InputBase,
			&rec.OutputBase,
			&rec.VolumeUsd,
			&executedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan swap row: %w", err)
		}
		rec.ExecutedAt = executedAt
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading swap rows: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}
