package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"swapEngine/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("swapbot"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	// Migrations are idempotent.
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestStoreReceipts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := model.SwapReceipt{
		TransactionID:      "0xaaa",
		ApprovalTxID:       "0xapprove",
		BlockNumber:        100,
		GasUsed:            150000,
		EffectiveGasPrice:  "20000000000",
		FromToken:          common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		ToToken:            common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		AmountIn:           "1000000000000000000",
		EstimatedAmountOut: "3000000000",
		ExecutedAt:         base,
	}
	second := first
	second.TransactionID = "0xbbb"
	second.ApprovalTxID = ""
	second.BlockNumber = 101
	second.ExecutedAt = base.Add(time.Minute)

	require.NoError(t, store.PutReceipt(ctx, first))
	require.NoError(t, store.PutReceipt(ctx, second))
	require.NoError(t, store.PutReceipt(ctx, first))

	all, err := store.Receipts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "0xbbb", all[0].TransactionID)
	assert.Equal(t, first, all[1])

	limited, err := store.Receipts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "0xbbb", limited[0].TransactionID)
}

func TestStorePutTickWithReceipt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	receipt := model.SwapReceipt{
		TransactionID: "0xccc",
		BlockNumber:   7,
		FromToken:     common.HexToAddress("0x01"),
		ToToken:       common.HexToAddress("0x02"),
		AmountIn:      "5",
		ExecutedAt:    time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutTick(ctx, model.TickRecord{
		Strategy:   "price_threshold",
		StartedAt:  receipt.ExecutedAt,
		DurationMS: 12,
		Decision:   model.DecisionBuy,
		Receipt:    &receipt,
	}))
	require.NoError(t, store.PutTick(ctx, model.TickRecord{
		Strategy:  "price_threshold",
		StartedAt: receipt.ExecutedAt.Add(time.Minute),
		Decision:  model.DecisionNone,
		Error:     "price history unavailable",
	}))

	var ticks int
	require.NoError(t, store.pool.QueryRow(ctx, `SELECT count(*) FROM bot_ticks`).Scan(&ticks))
	assert.Equal(t, 2, ticks)

	receipts, err := store.Receipts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "0xccc", receipts[0].TransactionID)
	assert.Equal(t, "0", receipts[0].EstimatedAmountOut)
}

func TestStoreState(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LoadState(ctx, "dca")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveState(ctx, "dca", "100"))
	require.NoError(t, store.SaveState(ctx, "dca", "200"))

	value, ok, err := store.LoadState(ctx, "dca")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "200", value)

	require.Error(t, store.SaveState(ctx, "", "x"))
}
