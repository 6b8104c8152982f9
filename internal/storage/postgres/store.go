package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapEngine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for swap receipts, bot ticks and bot state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the journal tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutReceipt inserts a swap receipt. Re-journaling the same transaction is a no-op.
func (s *Store) PutReceipt(ctx context.Context, receipt model.SwapReceipt) error {
	if receipt.TransactionID == "" {
		return fmt.Errorf("receipt transaction hash required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swap_receipts (
			tx_hash, approval_tx_hash, block_number, gas_used, effective_gas_price,
			from_token, to_token, amount_in, estimated_out, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_hash) DO NOTHING
	`,
		receipt.TransactionID,
		receipt.ApprovalTxID,
		int64(receipt.BlockNumber),
		int64(receipt.GasUsed),
		numericOrZero(receipt.EffectiveGasPrice),
		receipt.FromToken.Hex(),
		receipt.ToToken.Hex(),
		numericOrZero(receipt.AmountIn),
		numericOrZero(receipt.EstimatedAmountOut),
		receipt.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// PutTick inserts a tick record, and its receipt when the tick traded.
func (s *Store) PutTick(ctx context.Context, tick model.TickRecord) error {
	batch := &pgx.Batch{}
	var txHash *string
	if tick.Receipt != nil {
		hash := tick.Receipt.TransactionID
		txHash = &hash
	}
	batch.Queue(`
		INSERT INTO bot_ticks (strategy, started_at, duration_ms, decision, tx_hash, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		tick.Strategy,
		tick.StartedAt.UTC(),
		tick.DurationMS,
		string(tick.Decision),
		txHash,
		tick.Error,
	)
	queued := 1
	if tick.Receipt != nil {
		r := tick.Receipt
		batch.Queue(`
			INSERT INTO swap_receipts (
				tx_hash, approval_tx_hash, block_number, gas_used, effective_gas_price,
				from_token, to_token, amount_in, estimated_out, executed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (tx_hash) DO NOTHING
		`,
			r.TransactionID,
			r.ApprovalTxID,
			int64(r.BlockNumber),
			int64(r.GasUsed),
			numericOrZero(r.EffectiveGasPrice),
			r.FromToken.Hex(),
			r.ToToken.Hex(),
			numericOrZero(r.AmountIn),
			numericOrZero(r.EstimatedAmountOut),
			r.ExecutedAt.UTC(),
		)
		queued++
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert tick: %w", err)
		}
	}
	return nil
}

// Receipts returns up to limit receipts, newest first. A non-positive limit returns all.
func (s *Store) Receipts(ctx context.Context, limit int) ([]model.SwapReceipt, error) {
	query := `
		SELECT tx_hash, approval_tx_hash, block_number, gas_used, effective_gas_price::text,
			from_token, to_token, amount_in::text, estimated_out::text, executed_at
		FROM swap_receipts
		ORDER BY executed_at DESC, tx_hash
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var out []model.SwapReceipt
	for rows.Next() {
		var (
			r                 model.SwapReceipt
			blockNum, gasUsed int64
			from, to          string
		)
		if err := rows.Scan(
			&r.TransactionID,
			&r.ApprovalTxID,
			&blockNum,
			&gasUsed,
			&r.EffectiveGasPrice,
			&from,
			&to,
			&r.AmountIn,
			&r.EstimatedAmountOut,
			&r.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		r.BlockNumber = uint64(blockNum)
		r.GasUsed = uint64(gasUsed)
		r.FromToken = common.HexToAddress(from)
		r.ToToken = common.HexToAddress(to)
		r.ExecutedAt = r.ExecutedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read receipts: %w", err)
	}
	return out, nil
}

// LoadState returns the value stored for a name.
func (s *Store) LoadState(ctx context.Context, name string) (string, bool, error) {
	if name == "" {
		return "", false, fmt.Errorf("state name required")
	}
	var value string
	row := s.pool.QueryRow(ctx, `SELECT value FROM bot_state WHERE name=$1`, name)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SaveState upserts the value for a name.
func (s *Store) SaveState(ctx context.Context, name, value string) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bot_state (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()
	`, name, value)
	return err
}

func numericOrZero(value string) string {
	if value == "" {
		return "0"
	}
	return value
}
